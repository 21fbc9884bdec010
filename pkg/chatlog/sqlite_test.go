package chatlog_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/chatlog"
)

var _ = Describe("SQLiteSink", func() {
	var (
		sink *chatlog.SQLiteSink
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		sink, err = chatlog.NewSQLiteSink(":memory:", "")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if sink != nil {
			sink.Close()
		}
	})

	It("creates a file database", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "chat.db")

		s, err := chatlog.NewSQLiteSink(dbPath, "")
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects unsafe table names", func() {
		_, err := chatlog.NewSQLiteSink(":memory:", "chat; DROP TABLE x")
		Expect(err).To(MatchError(ContainSubstring("invalid table name")))
	})

	It("appends records and lists them newest first", func() {
		first := chatlog.NewRecord("Hello!", "Hi!", "openai/gpt-oss-20b")
		second := chatlog.NewRecord("What did I just say?", "You said Hello!", "openai/gpt-oss-20b")

		Expect(sink.Append(ctx, first)).To(Succeed())
		Expect(sink.Append(ctx, second)).To(Succeed())

		records, err := sink.Recent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))

		Expect(records[0].ID).To(Equal(second.ID))
		Expect(records[0].Message).To(Equal("What did I just say?"))
		Expect(records[0].Reply).To(Equal("You said Hello!"))
		Expect(records[1].ID).To(Equal(first.ID))
		Expect(records[1].Model).To(Equal("openai/gpt-oss-20b"))
		Expect(records[1].CreatedAt).To(BeTemporally("~", first.CreatedAt, 1e9))
	})

	It("limits the listing", func() {
		for i := 0; i < 5; i++ {
			Expect(sink.Append(ctx, chatlog.NewRecord("m", "r", ""))).To(Succeed())
		}

		records, err := sink.Recent(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(3))

		records, err = sink.Recent(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("refuses duplicate record IDs", func() {
		rec := chatlog.NewRecord("Hello!", "Hi!", "")
		Expect(sink.Append(ctx, rec)).To(Succeed())
		Expect(sink.Append(ctx, rec)).NotTo(Succeed())
	})

	It("uses a custom table", func() {
		s, err := chatlog.NewSQLiteSink(":memory:", "turns")
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.Append(ctx, chatlog.NewRecord("a", "b", ""))).To(Succeed())
		records, err := s.Recent(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})

	It("opens an existing log read-only", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "chat.db")

		w, err := chatlog.NewSQLiteSink(dbPath, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Append(ctx, chatlog.NewRecord("Hello!", "Hi!", ""))).To(Succeed())
		Expect(w.Close()).To(Succeed())

		r, err := chatlog.OpenSQLiteLog(dbPath, "")
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		records, err := r.Recent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(r.Append(ctx, chatlog.NewRecord("a", "b", ""))).NotTo(Succeed())
	})

	It("does not create a missing log when opening for reading", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "missing.db")

		_, err := chatlog.OpenSQLiteLog(dbPath, "")
		Expect(err).To(MatchError(chatlog.ErrNoChatLog))
		Expect(dbPath).NotTo(BeAnExistingFile())
	})

	It("answers pings", func() {
		Expect(sink.Ping(ctx)).To(Succeed())
		Expect(sink.Name()).To(Equal("sqlite"))
	})
})
