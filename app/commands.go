package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"switchboard/core/provider"
	"time"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the switchboard command tree.
func NewRootCommand() *cobra.Command {
	var opts Options

	root := &cobra.Command{
		Use:           "switchboard",
		Short:         "Talk to Bedrock, Anthropic, OpenAI and Ollama models through one interface",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.switchboard/config.toml)")
	flags.StringVarP(&opts.Backend, "backend", "b", "", "backend: bedrock, anthropic, openai, ollama")
	flags.StringVarP(&opts.Model, "model", "m", "", "model ID or resource locator")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newChatCommand(&opts),
		newResolveCommand(&opts),
		newModelsCommand(&opts),
		newPricingCommand(&opts),
		newPlansCommand(&opts),
	)
	return root
}

func newChatCommand(opts *Options) *cobra.Command {
	var (
		chat        ChatOptions
		images      []string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Stream a reply to a prompt (reads stdin when no prompt is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Stderr = cmd.ErrOrStderr()
			app, err := Bootstrap(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			conv := &Conversation{}
			if interactive {
				return runInteractive(cmd.Context(), app, conv, cmd.InOrStdin(), out, chat)
			}

			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading prompt: %w", err)
				}
				prompt = string(data)
			}
			content, err := buildContent(prompt, images)
			if err != nil {
				return err
			}
			_, err = conv.Ask(cmd.Context(), app, content, out, chat)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&chat.System, "system", "s", "", "system prompt")
	f.BoolVar(&chat.ShowReasoning, "reasoning", false, "print reasoning output")
	f.BoolVar(&chat.Markdown, "markdown", false, "render the reply as markdown once complete")
	f.IntVar(&chat.Width, "width", 100, "wrap width for markdown rendering")
	f.StringArrayVarP(&images, "image", "i", nil, "attach an image file (repeatable)")
	f.BoolVar(&interactive, "interactive", false, "keep a multi-turn conversation on stdin")
	f.StringVar(&opts.SessionID, "session", "", "session ID for cache plan carry-over (default: new session)")
	return cmd
}

// runInteractive reads one prompt per line until EOF or "/exit".
func runInteractive(ctx context.Context, app *Application, conv *Conversation, in io.Reader, out io.Writer, opts ChatOptions) error {
	st := newStyles(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, st.accent.Render("> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" {
			break
		}
		if _, err := conv.Ask(ctx, app, []provider.ContentBlock{provider.TextBlock(line)}, out, opts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			app.Log.Error().Err(err).Msg("request failed")
		}
	}
	return scanner.Err()
}

// buildContent turns a prompt and image paths into content blocks.
func buildContent(prompt string, imagePaths []string) ([]provider.ContentBlock, error) {
	var content []provider.ContentBlock
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		mediaType := http.DetectContentType(data)
		switch mediaType {
		case "image/png", "image/jpeg", "image/gif", "image/webp":
		default:
			return nil, fmt.Errorf("%s: unsupported image type %s", filepath.Base(path), mediaType)
		}
		content = append(content, provider.ContentBlock{Type: provider.BlockImage, MediaType: mediaType, Data: data})
	}
	if prompt = strings.TrimSpace(prompt); prompt != "" {
		content = append(content, provider.TextBlock(prompt))
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("empty prompt")
	}
	return content, nil
}

func newResolveCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <address>",
		Short: "Show how a model ID or resource locator resolves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Stderr = cmd.ErrOrStderr()
			app, err := setup(*opts)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.loadCatalog(cmd.Context()); err != nil {
				return err
			}
			res, err := app.Resolve(args[0])
			if err != nil {
				return err
			}
			PrintResolution(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newModelsCommand(opts *Options) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available from the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Stderr = cmd.ErrOrStderr()
			var (
				app *Application
				err error
			)
			if offline {
				app, err = setup(*opts)
				if err == nil {
					err = app.loadCatalog(cmd.Context())
				}
			} else {
				app, err = Bootstrap(cmd.Context(), *opts)
			}
			if app != nil {
				defer app.Close()
			}
			if err != nil {
				return err
			}

			models, err := app.Models(cmd.Context(), offline)
			if err != nil {
				return err
			}
			PrintModels(cmd.OutOrStdout(), models)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "catalog", false, "list the built-in catalog instead of querying the backend")
	return cmd
}

func newPricingCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "pricing",
		Short: "Fetch current Bedrock prices from the AWS Pricing API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Stderr = cmd.ErrOrStderr()
			app, err := setup(*opts)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.loadCatalog(cmd.Context()); err != nil {
				return err
			}

			overrides, err := app.RefreshPricing(cmd.Context(), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d models priced\n", len(overrides))
			PrintModels(cmd.OutOrStdout(), app.Catalog.Models())
			return nil
		},
	}
}

func newPlansCommand(opts *Options) *cobra.Command {
	plans := &cobra.Command{
		Use:   "plans",
		Short: "Manage stored cache plans",
	}

	var (
		days   int
		dryRun bool
	)
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete cache plans of sessions idle for longer than the max age",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Stderr = cmd.ErrOrStderr()
			app, err := setup(*opts)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.openStore(cmd.Context()); err != nil {
				return err
			}

			if !cmd.Flags().Changed("older-than") {
				days = app.Config.PlanMaxAgeDays
			}
			result, err := app.PrunePlans(cmd.Context(), time.Duration(days)*24*time.Hour, dryRun)
			if err != nil {
				return err
			}
			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d plans\n", verb, result.Deleted)
			return nil
		},
	}
	prune.Flags().IntVar(&days, "older-than", 0, "max age in days (default plan_max_age_days)")
	prune.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")

	plans.AddCommand(prune)
	return plans
}
