package servecmder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Serve Command", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("GATEWAY_API_KEY", "test-key")
		GinkgoT().Setenv("SCHOOL_FACTS_PATH", "")
	})

	start := func(args ...string) (string, context.CancelFunc, <-chan error) {
		ready := make(chan string, 1)
		cmd := newServeCmd(&serveCommander{ready: ready})
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)

		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)
		go func() { errs <- cmd.ExecuteContext(ctx) }()

		var addr string
		Eventually(ready).Should(Receive(&addr))
		return addr, cancel, errs
	}

	It("serves the health endpoint and shuts down on cancel", func() {
		addr, cancel, errs := start("--listen", "127.0.0.1:0")

		resp, err := http.Get("http://" + addr + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("status", "ok"))

		cancel()
		Eventually(errs).Should(Receive(BeNil()))
	})

	It("fails on a missing facts file", func() {
		cmd := NewServeCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"--listen", "127.0.0.1:0", "--facts", filepath.Join(GinkgoT().TempDir(), "missing.toml")})

		err := cmd.ExecuteContext(context.Background())
		Expect(err).To(MatchError(ContainSubstring("could not create relay")))
	})

	It("lets flags override the environment", func() {
		GinkgoT().Setenv("RELAY_LISTEN_ADDR", ":7000")
		cmder := &serveCommander{}
		cmd := newServeCmd(cmder)
		Expect(cmd.Flags().Set("listen", ":9000")).To(Succeed())

		cfg, err := cmder.config(cmd)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ListenAddr).To(Equal(":9000"))
		Expect(cfg.APIKey).To(Equal("test-key"))
	})
})
