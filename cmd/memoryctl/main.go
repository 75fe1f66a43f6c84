package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/client"
)

const requestTimeout = 90 * time.Second

var (
	apiURL string
	debug  bool
)

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "memoryctl",
		Short:         "Talk to the conversational memory service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				_ = os.Setenv("MEMORY_CLIENT_DEBUG", "true")
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", getEnv("MEMORY_SERVICE_URL", "http://localhost:8000"), "Base URL of the memory service")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Log HTTP traffic")

	rootCmd.AddCommand(
		newGenerateCmd(),
		newHistoryCmd(),
		newStatsCmd(),
		newSummaryCmd(),
		newFactsCmd(),
		newClearCmd(),
		newHealthCmd(),
	)
	return rootCmd
}

// conversationFlags are shared by every conversation-scoped subcommand.
type conversationFlags struct {
	user, conversation string
}

func (f *conversationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "User ID (required)")
	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "Conversation ID (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("conversation")
}

func newGenerateCmd() *cobra.Command {
	var (
		f              conversationFlags
		message        string
		temperature    float64
		responseLength string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Send a message and print the memory-aware reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
				opts := map[string]any{}
				if cmd.Flags().Changed("temperature") {
					opts["temperature"] = temperature
				}
				if responseLength != "" {
					opts["response_length"] = responseLength
				}
				log.Debug().Str("user", f.user).Str("conversation", f.conversation).Msg("generating")
				return c.Generate(ctx, client.GenerateRequest{
					UserID:         f.user,
					ConversationID: f.conversation,
					Message:        message,
					Options:        opts,
				})
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&message, "message", "m", "", "User message (required)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().StringVar(&responseLength, "length", "", "Response length: short, medium or long")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		f     conversationFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored turns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
				h, err := c.History(ctx, f.user, f.conversation, limit)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"history": h, "count": len(h)}, nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Only the last N turns (0 = all)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var f conversationFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print conversation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.Stats(ctx, f.user, f.conversation)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var f conversationFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the conversation summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
				s, ok, err := c.Summary(ctx, f.user, f.conversation)
				if err != nil {
					return nil, err
				}
				if !ok {
					return map[string]interface{}{"summary": nil}, nil
				}
				return map[string]interface{}{"summary": s}, nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newFactsCmd() *cobra.Command {
	var f conversationFlags
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Extract key facts from the stored conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
				facts, err := c.KeyFacts(ctx, f.user, f.conversation)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"key_facts": facts, "count": len(facts)}, nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newClearCmd() *cobra.Command {
	var f conversationFlags
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a conversation's turns and summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
				if err := c.Clear(ctx, f.user, f.conversation); err != nil {
					return nil, err
				}
				return map[string]interface{}{"success": true}, nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) (interface{}, error) {
				return c.Health(ctx)
			})
		},
	}
}

func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) (interface{}, error)) error {
	c, err := client.New(apiURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	start := time.Now()
	out, err := fn(ctx, c)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	log.Debug().Dur("took", time.Since(start)).Str("command", cmd.Name()).Msg("done")
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
