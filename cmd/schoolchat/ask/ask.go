package askcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Bruno-at/uganda-school-kit-sub000/cmd/schoolchat/historypath"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/chat"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/logger"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage/inmemory"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage/sqlite"
)

const askLongDesc string = `Ask the school assistant a question.

Sends the message to a running relay together with the saved
conversation history and prints the reply as it streams in. Image
replies print their caption and may be saved with --download.

Examples:
  schoolchat ask "What are the fees for Primary 4?"
  schoolchat ask --language fr "Quels documents faut-il pour l'admission ?"
  schoolchat ask --download ./images "draw the structure of an eye"`

const askShortDesc string = "Ask the school assistant a question"

// RelayEnvVar sets the default relay URL.
const RelayEnvVar = "SCHOOLCHAT_RELAY"

type askCommander struct {
	relayURL    string
	language    string
	historyPath string
	noHistory   bool
	timeout     time.Duration
	downloadDir string
	debug       bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.relayURL, "relay", "r", "", "Relay base URL (default $SCHOOLCHAT_RELAY or http://localhost:8080)")
	cmd.Flags().StringVarP(&cmder.language, "language", "L", llm.DefaultLanguage, "Reply language code (en, fr, es, ar, zh, sw)")
	cmd.Flags().StringVar(&cmder.historyPath, "history", "", "Path to the history database")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not read or save the conversation history")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", chat.DefaultTimeout, "Give up on a reply after this long")
	cmd.Flags().StringVar(&cmder.downloadDir, "download", "", "Save image replies into this directory")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, message string) error {
	log := logger.NewLogger(c.debug, logger.WithOutput(cmd.ErrOrStderr()))
	defer log.Sync()

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	st := newStyles(isTerminal(cmd.OutOrStdout()))
	out := &replyPrinter{out: cmd.OutOrStdout(), styles: st, current: -1}

	relayURL := c.relayURL
	if relayURL == "" {
		relayURL = os.Getenv(RelayEnvVar)
	}

	consumer := chat.New(chat.Config{
		Endpoint: relayURL,
		Language: c.language,
		Timeout:  c.timeout,
	},
		chat.WithStore(store),
		chat.WithLogger(log),
		chat.WithNotifier(chat.NotifierFunc(func(msg string) {
			fmt.Fprintln(cmd.ErrOrStderr(), st.notice.Render("! "+msg))
		})),
		chat.WithObserver(out.observe),
	)
	defer consumer.Close()

	if err := consumer.Load(ctx); err != nil {
		return fmt.Errorf("could not load history: %w", err)
	}
	out.skip = len(consumer.Messages()) + 1
	out.active = true

	fmt.Fprint(cmd.OutOrStdout(), st.label.Render("assistant")+" ")
	sendErr := consumer.Send(ctx, message)
	fmt.Fprintln(cmd.OutOrStdout())

	if sendErr != nil {
		return fmt.Errorf("chat turn failed: %w", sendErr)
	}

	messages := consumer.Messages()
	reply := messages[len(messages)-1]
	if !reply.HasImage() {
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), st.image.Render("[image] "+summarizeImage(reply.Image)))
	if c.downloadDir == "" {
		return nil
	}
	path, err := consumer.DownloadImage(ctx, reply.ImageID, c.downloadDir)
	if err != nil {
		return fmt.Errorf("could not save image: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "saved "+path)
	return nil
}

func (c *askCommander) openStore(ctx context.Context) (storage.HistoryStore, error) {
	if c.noHistory {
		return inmemory.NewDriver(), nil
	}

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

// replyPrinter writes the streamed reply as it grows.
type replyPrinter struct {
	out    io.Writer
	styles styles

	// skip is the number of messages that existed before the reply.
	skip    int
	active  bool
	current int
	printed int
}

func (p *replyPrinter) observe(messages []llm.ConversationMessage, _ bool) {
	if !p.active || len(messages) <= p.skip {
		return
	}
	i := len(messages) - 1
	reply := messages[i]
	if reply.Role != llm.RoleAssistant {
		return
	}

	if i != p.current {
		if p.current >= 0 {
			fmt.Fprintln(p.out)
		}
		p.current = i
		p.printed = 0
	}
	if len(reply.Content) > p.printed {
		fmt.Fprint(p.out, p.styles.reply.Render(reply.Content[p.printed:]))
		p.printed = len(reply.Content)
	}
}

type styles struct {
	label  lipgloss.Style
	reply  lipgloss.Style
	image  lipgloss.Style
	notice lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{label: plain, reply: plain, image: plain, notice: plain}
	}
	return styles{
		label:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		reply:  lipgloss.NewStyle(),
		image:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		notice: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#FFA500")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func summarizeImage(src string) string {
	if strings.HasPrefix(src, "data:") {
		header, _, _ := strings.Cut(src, ",")
		return header + ",..."
	}
	return src
}
