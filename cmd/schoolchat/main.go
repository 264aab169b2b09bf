package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	askcmder "github.com/Bruno-at/uganda-school-kit-sub000/cmd/schoolchat/ask"
	historycmder "github.com/Bruno-at/uganda-school-kit-sub000/cmd/schoolchat/history"
	servecmder "github.com/Bruno-at/uganda-school-kit-sub000/cmd/schoolchat/serve"
)

const rootLongDesc string = `schoolchat runs and talks to the school assistant relay.

The relay answers questions about the school (fees, admission,
staff, scholarships, facilities) and tutors students, streaming
replies from an OpenAI-compatible gateway.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "schoolchat",
		Short:        "School assistant relay and client",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
