package historycmder

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Bruno-at/uganda-school-kit-sub000/cmd/schoolchat/historypath"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage/sqlite"
)

const historyLongDesc string = `Inspect or clear the local chat history.

The history holds the role and text of every message from previous
"schoolchat ask" runs. Images are never stored.

Assistant replies are rendered as markdown when stdout is a terminal,
or always with --markdown.

Examples:
  schoolchat history show
  schoolchat history show --markdown --width 60
  schoolchat history clear --history /tmp/chat.db`

const historyShortDesc string = "Inspect or clear the local chat history"

const defaultWrapWidth = 80

type historyCommander struct {
	historyPath string
	markdown    bool
	width       int
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}
	cmd.PersistentFlags().StringVar(&cmder.historyPath, "history", "", "Path to the history database")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.show(cmd.Context(), cmd)
		},
	}
	showCmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render assistant replies as markdown even when not writing to a terminal")
	showCmd.Flags().IntVar(&cmder.width, "width", defaultWrapWidth, "Wrap width for rendered replies")
	cmd.AddCommand(showCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.clear(cmd.Context(), cmd)
		},
	})

	return cmd
}

func (c *historyCommander) open(ctx context.Context) (*sqlite.Driver, error) {
	dbPath, err := historypath.ResolveHistoryPath(c.historyPath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve history database: %w", err)
	}
	driver, err := sqlite.NewDriver(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open history database %s: %w", dbPath, err)
	}
	return driver, nil
}

func (c *historyCommander) show(ctx context.Context, cmd *cobra.Command) error {
	driver, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	entries, err := driver.Load(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved history.")
		return nil
	}

	out := cmd.OutOrStdout()
	tty := isTerminal(out)

	var renderer *glamour.TermRenderer
	if c.markdown || tty {
		renderer, err = newRenderer(tty, c.width)
		if err != nil {
			return fmt.Errorf("could not create markdown renderer: %w", err)
		}
	}

	for _, e := range entries {
		if renderer != nil && e.Role == "assistant" {
			rendered, err := renderer.Render(e.Content)
			if err == nil {
				fmt.Fprintf(out, "%s:\n%s", e.Role, rendered)
				continue
			}
		}
		fmt.Fprintf(out, "%s: %s\n", e.Role, e.Content)
	}
	return nil
}

// newRenderer picks the terminal's own style on a tty and a plain ASCII style
// otherwise, so piped output carries no escape codes.
func newRenderer(tty bool, width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = defaultWrapWidth
	}
	style := glamour.WithStandardStyle("notty")
	if tty {
		style = glamour.WithAutoStyle()
	}
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *historyCommander) clear(ctx context.Context, cmd *cobra.Command) error {
	driver, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	if err := driver.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Chat history cleared.")
	return nil
}
