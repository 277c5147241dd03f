package args

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/spf13/cobra"

	"github.com/markis/difychat/internal/config"
)

// ErrHelpShown is returned when cobra printed help or version output and
// there is nothing left to do.
var ErrHelpShown = errors.New("help shown")

// Action is what the user asked the CLI to do.
type Action int

const (
	ActionChat Action = iota
	ActionOutline
	ActionHealth
	ActionStop
)

// Outline holds the outline subcommand flags.
type Outline struct {
	Title    string
	Keywords string
	Field    string
	Type     string
	Language string
}

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Action         Action
	Prompts        []string
	Command        string
	AppID          string
	User           string
	ConversationID string
	BaseURL        string
	Mode           string
	Timeout        time.Duration
	UsePlainText   bool
	Debug          bool
	TaskID         string
	Outline        Outline
}

// Query joins the collected prompts into the text sent to the service.
func (a Arguments) Query() string {
	return strings.Join(a.Prompts, "\n\n")
}

// ParseArgs parses argv and optional piped stdin, returning an Arguments struct.
// It uses Cobra to handle commands and flags, allowing for predefined prompt
// commands, the outline/health/stop utilities and direct prompts.
func ParseArgs(ctx context.Context, cfg config.Config, argv []string, stdin io.Reader) (Arguments, error) {
	args := Arguments{}
	ran := false

	rootCmd := &cobra.Command{
		Use:   "difychat [command] [flags] [prompt]",
		Short: "Chat with a Dify app from the terminal",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			ran = true
			args.Action = ActionChat
			// Handle direct prompts (when no command is specified)
			if len(cmdArgs) > 0 {
				args.Prompts = append(args.Prompts, strings.Join(cmdArgs, " "))
			}
			return nil
		},
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&args.AppID, "app", "a", cfg.AppID, "The app id to chat with")
	flags.StringVarP(&args.User, "user", "u", cfg.User, "User identifier sent with each request")
	flags.StringVarP(&args.ConversationID, "conversation", "c", "", "Continue an existing conversation")
	flags.StringVar(&args.BaseURL, "base-url", cfg.BaseURL, "Chat service base URL")
	flags.StringVar(&args.Mode, "mode", cfg.Mode, "Response mode: sse or block")
	flags.DurationVar(&args.Timeout, "timeout", cfg.Timeout, "Overall request timeout")
	flags.BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg), "Disable markdown rendering")
	flags.BoolVar(&args.Debug, "debug", false, "Log stream decoding details to stderr")

	// Add predefined commands
	for name, prompt := range cfg.Prompts {
		cmdPrompt := prompt // Create a local copy for the closure
		cmd := &cobra.Command{
			Use:   name + " [input]",
			Short: summarizePrompt(cmdPrompt.Prompt),
			RunE: func(cmd *cobra.Command, cmdArgs []string) error {
				ran = true
				args.Action = ActionChat
				args.Command = name
				if len(cmdArgs) > 0 {
					args.Prompts = append(args.Prompts, strings.Join(cmdArgs, " "))
				}
				args.Prompts = append(args.Prompts, cmdPrompt.Prompt)
				if cmdPrompt.AppID != "" && !cmd.Flags().Changed("app") {
					args.AppID = cmdPrompt.AppID
				}
				return nil
			},
		}
		rootCmd.AddCommand(cmd)
	}

	outlineCmd := &cobra.Command{
		Use:   "outline",
		Short: "Generate a document outline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ran = true
			args.Action = ActionOutline
			if strings.TrimSpace(args.Outline.Title) == "" {
				return errors.New("--title is required")
			}
			return nil
		},
	}
	outlineCmd.Flags().StringVar(&args.Outline.Title, "title", "", "Document title")
	outlineCmd.Flags().StringVar(&args.Outline.Keywords, "keywords", "", "Comma separated keywords")
	outlineCmd.Flags().StringVar(&args.Outline.Field, "field", "science", "Research field")
	outlineCmd.Flags().StringVar(&args.Outline.Type, "type", "paper", "Kind of document")
	outlineCmd.Flags().StringVar(&args.Outline.Language, "language", "English", "Language of the outline")
	rootCmd.AddCommand(outlineCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check that the chat service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ran = true
			args.Action = ActionHealth
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop a running generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			ran = true
			args.Action = ActionStop
			args.TaskID = cmdArgs[0]
			return nil
		},
	})

	// Read from stdin if available
	if stdin != nil {
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max buffer
		var buf strings.Builder
		for scanner.Scan() {
			buf.WriteString(scanner.Text())
			buf.WriteByte('\n')
		}
		if err := scanner.Err(); err != nil {
			return Arguments{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		if prompt := strings.TrimSpace(buf.String()); prompt != "" {
			args.Prompts = append(args.Prompts, prompt)
		}
	}

	// Execute the command
	rootCmd.SetArgs(argv)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return Arguments{}, err
	}
	if !ran {
		return Arguments{}, ErrHelpShown
	}

	switch args.Mode {
	case "sse", "block":
	default:
		return Arguments{}, fmt.Errorf("--mode must be sse or block, got %q", args.Mode)
	}

	// Check if we have any prompts
	if args.Action == ActionChat && len(args.Prompts) == 0 {
		return Arguments{}, errors.New("no prompt provided")
	}

	return args, nil
}

// PipedStdin returns os.Stdin when input is being piped in, nil otherwise.
func PipedStdin() io.Reader {
	if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		return os.Stdin
	}
	return nil
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == "plain" {
		return true
	}

	// Check if output is being redirected, or color is disabled (NO_COLOR, CLICOLOR=0)
	t := term.FromEnv()
	if !t.IsTerminalOutput() || !t.IsColorEnabled() {
		return true
	}

	// Check for TERM=dumb
	if term := os.Getenv("TERM"); term == "dumb" {
		return true
	}

	return false
}

func summarizePrompt(prompt string) string {
	// Trim and limit the length of the prompt summary
	summary := strings.TrimSpace(prompt)
	if len(summary) > 60 {
		summary = summary[:57] + "..."
	}
	return summary
}
