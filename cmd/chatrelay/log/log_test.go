package logcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/chatlog"
)

var _ = Describe("Log Command", func() {
	var (
		ctx    context.Context
		tmpDir string
		dbPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-log-test-*")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(tmpDir, "chat.db")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	seed := func(pairs ...[2]string) {
		sink, err := chatlog.NewSQLiteSink(dbPath, "")
		Expect(err).NotTo(HaveOccurred())
		defer sink.Close()
		for _, p := range pairs {
			Expect(sink.Append(ctx, chatlog.NewRecord(p[0], p[1], "test-model"))).To(Succeed())
		}
	}

	It("lists records newest first", func() {
		seed([2]string{"Hello!", "Hi!"}, [2]string{"What did I just say?", "You said Hello!"})

		var out bytes.Buffer
		cmd := NewLogCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--sqlite", dbPath})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
		Expect(lines).To(HaveLen(3))
		Expect(string(lines[0])).To(ContainSubstring("MESSAGE"))
		Expect(string(lines[1])).To(ContainSubstring("What did I just say?"))
		Expect(string(lines[2])).To(ContainSubstring("Hello!"))
	})

	It("prints JSON with a limit", func() {
		seed([2]string{"one", "1"}, [2]string{"two", "2"}, [2]string{"three", "3"})

		var out bytes.Buffer
		cmd := NewLogCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--sqlite", dbPath, "--json", "--limit", "2"})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		var records []chatlog.Record
		Expect(json.Unmarshal(out.Bytes(), &records)).To(Succeed())
		Expect(records).To(HaveLen(2))
		Expect(records[0].Message).To(Equal("three"))
		Expect(records[1].Message).To(Equal("two"))
	})

	It("reports an empty log", func() {
		seed()

		var out bytes.Buffer
		cmd := NewLogCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--sqlite", dbPath})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(Equal("No chat log records.\n"))
	})

	It("does not create a missing database", func() {
		missing := filepath.Join(tmpDir, "typo.db")

		cmd := NewLogCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--sqlite", missing})

		err := cmd.ExecuteContext(ctx)
		Expect(err).To(MatchError(chatlog.ErrNoChatLog))
		Expect(err).To(MatchError(ContainSubstring("no chat log at " + missing)))
		Expect(missing).NotTo(BeAnExistingFile())
	})
})
