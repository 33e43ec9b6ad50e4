package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-news/pkg/simplenews/config"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile string
	token   string
	verbose bool
	asJSON  bool
}

func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "newsctl",
		Short: "Manage news items, slides and media",
		Long: `newsctl talks to the record store and blob store configured through the
same environment variables as the news server (see "newsctl env").

Mutations require an admin credential, passed with --token or NEWS_ADMIN_TOKEN.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "load variables from this .env file (default ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&g.token, "token", os.Getenv("NEWS_ADMIN_TOKEN"), "admin token or JWT")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log core activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&g.asJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		NewListCommand(g),
		NewShowCommand(g),
		NewCreateCommand(g),
		NewUpdateCommand(g),
		NewDeleteCommand(g),
		NewLikeCommand(g),
		NewViewCommand(g),
		NewSlideCommand(g),
		NewSweepCommand(g),
		NewTokenCommand(g),
		NewEnvCommand(),
	)

	return rootCmd
}

// withApp loads configuration, builds the core and hands it to fn.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, app *config.App) error) error {
	cfg, err := config.Load(config.WithDotEnv(g.envFile), config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var w io.Writer = io.Discard
	if g.verbose {
		w = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := cfg.Build(ctx, logger, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
