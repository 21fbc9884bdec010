package servecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Serve Command", func() {
	var (
		tmpDir string
		oldWD  string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-serve-test-*")
		Expect(err).NotTo(HaveOccurred())
		oldWD, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		GinkgoT().Setenv("GROQ_API_KEY", "")
		GinkgoT().Setenv("CHATRELAY_PROVIDER_API_KEY", "")
	})

	AfterEach(func() {
		Expect(os.Chdir(oldWD)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	freePort := func() int {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		port := l.Addr().(*net.TCPAddr).Port
		Expect(l.Close()).To(Succeed())
		return port
	}

	It("fails at startup without provider credentials", func() {
		cmd := NewServeCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--log-sink", "none"})

		err := cmd.ExecuteContext(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("GROQ_API_KEY"))
	})

	It("serves chat turns until the context ends", func() {
		addr := fmt.Sprintf("127.0.0.1:%d", freePort())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cmd := NewServeCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--provider", "echo", "--log-sink", "none", "--listen", addr})

		done := make(chan error, 1)
		go func() { done <- cmd.ExecuteContext(ctx) }()

		var resp *http.Response
		Eventually(func() error {
			var err error
			resp, err = http.Post("http://"+addr+"/chat", "application/json",
				strings.NewReader(`{"message": "Hello!", "history": []}`))
			return err
		}, 5*time.Second, 50*time.Millisecond).Should(Succeed())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body["reply"]).To(Equal("You said: Hello!"))

		cancel()
		Eventually(done, 15*time.Second).Should(Receive(BeNil()))
	})
})
