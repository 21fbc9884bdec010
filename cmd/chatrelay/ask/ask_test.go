package askcmder

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// capturingProvider echoes the last message and keeps the turns it saw.
type capturingProvider struct {
	mu    sync.Mutex
	turns []llm.Conversation
}

func (p *capturingProvider) Complete(_ context.Context, req completion.Request) (*completion.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, req.Turns)
	last := req.Turns[len(req.Turns)-1].Content
	return &completion.Completion{Candidates: []string{"You said: " + last}}, nil
}

func (p *capturingProvider) Name() string { return "capturing" }

var _ = Describe("Ask Command", func() {
	var (
		ctx    context.Context
		tmpDir string
		oldWD  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-ask-test-*")
		Expect(err).NotTo(HaveOccurred())
		oldWD, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(oldWD)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	startServer := func(p completion.Provider) (string, func()) {
		service := chat.NewService(completion.NewInvoker(p, "test-model", 0), nil, zap.NewNop())

		srv, err := api.NewServer(api.Config{ListenAddr: ":0"}, service, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		go func() {
			_ = srv.RunWithListener(listener)
		}()

		return "http://" + listener.Addr().String() + "/chat", func() { srv.Shutdown() }
	}

	It("prints the reply from the server", func() {
		p := &capturingProvider{}
		endpoint, cleanup := startServer(p)
		defer cleanup()

		var out bytes.Buffer
		cmd := NewAskCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--api", endpoint, "Hello!"})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(Equal("You said: Hello!\n"))
		Expect(p.turns).To(HaveLen(1))
		Expect(p.turns[0]).To(Equal(llm.Conversation{llm.UserTurn("Hello!")}))
	})

	It("sends history from a file in order", func() {
		p := &capturingProvider{}
		endpoint, cleanup := startServer(p)
		defer cleanup()

		historyPath := filepath.Join(tmpDir, "history.json")
		Expect(os.WriteFile(historyPath, []byte(`[["Hello!", "Hi!"]]`), 0o644)).To(Succeed())

		var out bytes.Buffer
		cmd := NewAskCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--api", endpoint, "--history", historyPath, "What", "did", "I", "just", "say?"})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(p.turns).To(HaveLen(1))
		Expect(p.turns[0]).To(Equal(llm.Conversation{
			llm.UserTurn("Hello!"),
			llm.AssistantTurn("Hi!"),
			llm.UserTurn("What did I just say?"),
		}))
	})

	It("prints the status and fails on HTTP errors", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		var out bytes.Buffer
		cmd := NewAskCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--api", srv.URL + "/chat", "Hello!"})

		err := cmd.ExecuteContext(ctx)
		Expect(err).To(MatchError(ContainSubstring("http_error")))
		Expect(out.String()).To(Equal("Error: API request failed with status 500\n"))
	})

	It("answers directly with the echo provider", func() {
		var out bytes.Buffer
		cmd := NewAskCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--direct", "--provider", "echo", "--log-sink", "none", "Hello!"})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(Equal("You said: Hello!\n"))
	})

	It("hides provider error payloads in direct mode", func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`)
		}))
		defer upstream.Close()

		Expect(os.WriteFile("chatrelay.toml", []byte(`
[provider]
name = "custom"
model = "test-model"
api_key = "bad-key"
base_url = "`+upstream.URL+`"

[log]
sink = "none"
`), 0o644)).To(Succeed())

		var out, errOut bytes.Buffer
		cmd := NewAskCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"--direct", "Hello!"})

		err := cmd.ExecuteContext(ctx)
		Expect(err).To(MatchError("no reply (completion provider failed)"))
		Expect(out.String()).To(Equal("Error: completion provider failed\n"))
		Expect(out.String() + errOut.String()).NotTo(ContainSubstring("Invalid API Key"))
		Expect(out.String() + errOut.String()).NotTo(ContainSubstring(upstream.URL))
	})

	It("rejects unreadable history files", func() {
		historyPath := filepath.Join(tmpDir, "bad.json")
		Expect(os.WriteFile(historyPath, []byte(`{"not": "a list"}`), 0o644)).To(Succeed())

		cmd := NewAskCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--history", historyPath, "Hello!"})

		Expect(cmd.ExecuteContext(ctx)).To(MatchError(ContainSubstring("could not parse history")))
	})
})
