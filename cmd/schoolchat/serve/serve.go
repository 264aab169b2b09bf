package servecmder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/logger"
	"github.com/Bruno-at/uganda-school-kit-sub000/relay"
)

const serveLongDesc string = `Run the school chat relay.

The relay answers POST /chat by forwarding the conversation to an
OpenAI-compatible gateway. Visual requests ("draw", "diagram", ...)
are answered with a generated image when possible; everything else
is streamed back as server-sent events.

Configuration is read from the environment (GATEWAY_API_KEY,
GATEWAY_URL, GATEWAY_TEXT_MODEL, GATEWAY_IMAGE_MODEL,
RELAY_LISTEN_ADDR, SCHOOL_FACTS_PATH, UPSTREAM_TIMEOUT) and may be
overridden with flags.

Examples:
  schoolchat serve
  schoolchat serve --listen :9090 --facts ./facts.toml --debug`

const serveShortDesc string = "Run the chat relay server"

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	listenAddr string
	gatewayURL string
	factsPath  string
	debug      bool
	jsonLogs   bool

	// ready receives the bound address once the listener is open.
	ready chan<- string
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (default $RELAY_LISTEN_ADDR or :8080)")
	cmd.Flags().StringVar(&cmder.gatewayURL, "gateway", "", "Gateway base URL (default $GATEWAY_URL)")
	cmd.Flags().StringVar(&cmder.factsPath, "facts", "", "Path to a school facts TOML file (default $SCHOOL_FACTS_PATH)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Log as JSON")

	return cmd
}

func (c *serveCommander) config(cmd *cobra.Command) (relay.Config, error) {
	cfg, err := relay.LoadConfig()
	if err != nil {
		return relay.Config{}, err
	}

	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr = c.listenAddr
	}
	if cmd.Flags().Changed("gateway") {
		cfg.GatewayURL = c.gatewayURL
	}
	if cmd.Flags().Changed("facts") {
		cfg.FactsPath = c.factsPath
	}
	return cfg, nil
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.config(cmd)
	if err != nil {
		return err
	}

	var opts []logger.Option
	if c.jsonLogs {
		opts = append(opts, logger.WithJSON())
	}
	log := logger.NewLogger(c.debug, append(opts, logger.WithOutput(cmd.ErrOrStderr()))...)
	defer log.Sync()

	if cfg.APIKey == "" {
		log.Warn("GATEWAY_API_KEY is not set; chat requests will fail")
	}

	r, err := relay.New(cfg, log)
	if err != nil {
		return fmt.Errorf("could not create relay: %w", err)
	}
	defer r.Close()

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", cfg.ListenAddr, err)
	}
	if c.ready != nil {
		c.ready <- listener.Addr().String()
	}

	errs := make(chan error, 1)
	go func() {
		errs <- r.RunWithListener(listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
