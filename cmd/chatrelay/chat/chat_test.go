package chatcmder

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/chatlog"
	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/provider"
)

var _ = Describe("Chat Command", func() {
	var (
		ctx    context.Context
		tmpDir string
		oldWD  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-chat-test-*")
		Expect(err).NotTo(HaveOccurred())
		oldWD, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(oldWD)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	startServer := func() (string, func()) {
		invoker := completion.NewInvoker(provider.NewEchoProvider(), "echo", 0)
		service := chat.NewService(invoker, nil, zap.NewNop())

		srv, err := api.NewServer(api.Config{ListenAddr: ":0"}, service, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		go func() {
			_ = srv.RunWithListener(listener)
		}()

		return "http://" + listener.Addr().String() + "/chat", func() { srv.Shutdown() }
	}

	It("relays piped lines through a chatrelay server", func() {
		endpoint, cleanup := startServer()
		defer cleanup()

		var out bytes.Buffer
		cmd := NewChatCmd()
		cmd.SetIn(strings.NewReader("Hello!\nWhat did I just say?\n"))
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--api", endpoint})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(Equal("You said: Hello!\nYou said: What did I just say?\n"))
	})

	It("prints a connection diagnostic when no server is running", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := listener.Addr().String()
		Expect(listener.Close()).To(Succeed())

		var out bytes.Buffer
		cmd := NewChatCmd()
		cmd.SetIn(strings.NewReader("Hello!\n"))
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--api", "http://" + addr + "/chat"})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(Equal(
			"Error: Cannot connect to backend API. Make sure the chat server is running on http://" + addr + "\n"))
	})

	It("calls the provider directly and logs each turn", func() {
		dbPath := filepath.Join(tmpDir, "chat.db")
		Expect(os.WriteFile("chatrelay.toml", []byte(`
[log]
sink = "sqlite"
sqlite_path = "`+dbPath+`"
`), 0o644)).To(Succeed())

		var out bytes.Buffer
		cmd := NewChatCmd()
		cmd.SetIn(strings.NewReader("Hello!\n"))
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--direct", "--provider", "echo"})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(Equal("You said: Hello!\n"))

		sink, err := chatlog.NewSQLiteSink(dbPath, "")
		Expect(err).NotTo(HaveOccurred())
		defer sink.Close()

		records, err := sink.Recent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Message).To(Equal("Hello!"))
		Expect(records[0].Reply).To(Equal("You said: Hello!"))
	})
})
