package chatlog_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/chatlog"
)

var _ = Describe("SupabaseSink", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		status  int
		gotPath string
		gotHdr  http.Header
		gotBody map[string]any
	)

	BeforeEach(func() {
		ctx = context.Background()
		status = http.StatusCreated
		gotBody = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotHdr = r.Header.Clone()
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotBody)
			w.WriteHeader(status)
			if status >= 400 {
				io.WriteString(w, `{"message":"permission denied"}`)
			}
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires a URL and a key", func() {
		_, err := chatlog.NewSupabaseSink("", "key", "")
		Expect(err).To(HaveOccurred())
		_, err = chatlog.NewSupabaseSink(server.URL, "", "")
		Expect(err).To(HaveOccurred())
	})

	It("inserts message and reply into the table", func() {
		sink, err := chatlog.NewSupabaseSink(server.URL+"/", "anon-key", "")
		Expect(err).NotTo(HaveOccurred())
		defer sink.Close()

		Expect(sink.Append(ctx, chatlog.NewRecord("Hello!", "Hi!", "m"))).To(Succeed())

		Expect(gotPath).To(Equal("/rest/v1/chat_messages"))
		Expect(gotHdr.Get("apikey")).To(Equal("anon-key"))
		Expect(gotHdr.Get("Authorization")).To(Equal("Bearer anon-key"))
		Expect(gotHdr.Get("Prefer")).To(Equal("return=minimal"))
		Expect(gotBody).To(Equal(map[string]any{"message": "Hello!", "reply": "Hi!"}))
	})

	It("reports rejected writes", func() {
		status = http.StatusUnauthorized

		sink, err := chatlog.NewSupabaseSink(server.URL, "bad-key", "chat_messages")
		Expect(err).NotTo(HaveOccurred())

		err = sink.Append(ctx, chatlog.NewRecord("Hello!", "Hi!", ""))
		Expect(err).To(MatchError(ContainSubstring("permission denied")))
	})

	It("rejects malformed project URLs", func() {
		_, err := chatlog.NewSupabaseSink("not a url", "key", "")
		Expect(err).To(MatchError(ContainSubstring("invalid supabase URL")))
	})

	It("gives up when the context ends first", func() {
		release := make(chan struct{})
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			w.WriteHeader(http.StatusCreated)
		}))
		defer slow.Close()
		defer close(release)

		sink, err := chatlog.NewSupabaseSink(slow.URL, "anon-key", "")
		Expect(err).NotTo(HaveOccurred())

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err = sink.Append(cctx, chatlog.NewRecord("Hello!", "Hi!", ""))
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})
