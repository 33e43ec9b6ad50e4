package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-news/pkg/simplenews"
	"github.com/tendant/simple-news/pkg/simplenews/config"
	"github.com/tendant/simple-news/pkg/simplenews/scan"
)

// NewSlideCommand creates the slide command group
func NewSlideCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slide",
		Short: "Manage carousel slides",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List slides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				entries, err := app.Repository.ListSliderEntries(ctx)
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tKIND\tMEDIA")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.MediaKind, e.MediaRef)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <file>",
		Short: "Upload a file and add it to the carousel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, closeFile, err := openUpload(args[0])
			if err != nil {
				return err
			}
			defer closeFile()

			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				entry, err := app.Portal.CreateSliderEntry(ctx, g.token, simplenews.CreateSliderEntryRequest{File: upload})
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), entry)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created slide %s (%s)\n", entry.ID, entry.MediaKind)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Remove a slide and its media",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}
			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				if err := app.Portal.DeleteSliderEntry(ctx, g.token, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted slide %s\n", id)
				return nil
			})
		},
	})

	return cmd
}

// NewSweepCommand creates the sweep command
func NewSweepCommand(g *globalFlags) *cobra.Command {
	var opts scan.SweepOptions

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stored media that no record references",
		Long: `Lists the news_ and slider_ objects in the blob store and deletes those that
no news item or slide references. Objects younger than --grace are skipped
because their record insert may still be in flight.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				res, err := app.Sweeper.Sweep(ctx, opts)
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), res)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned:    %d\n", res.TotalScanned)
				fmt.Fprintf(out, "Referenced: %d\n", res.TotalReferenced)
				fmt.Fprintf(out, "Recent:     %d\n", res.TotalRecent)
				fmt.Fprintf(out, "Orphaned:   %d\n", res.TotalOrphaned)
				if opts.DryRun {
					for _, key := range res.OrphanedKeys {
						fmt.Fprintf(out, "  would delete %s\n", key)
					}
					return nil
				}
				fmt.Fprintf(out, "Deleted:    %d\n", res.TotalDeleted)
				if res.TotalFailed > 0 {
					return fmt.Errorf("%d objects could not be deleted", res.TotalFailed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report orphans without deleting them")
	cmd.Flags().DurationVar(&opts.GracePeriod, "grace", scan.DefaultGracePeriod, "skip objects modified more recently than this")
	cmd.Flags().StringSliceVar(&opts.Prefixes, "prefix", nil, "key prefixes to scan (default news_, slider_)")
	return cmd
}

// NewTokenCommand creates the token command group
func NewTokenCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create admin credentials",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "digest <token>",
		Short: "Print the ADMIN_TOKEN_SHA256 value for a static admin token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), simplenews.TokenDigest(args[0]))
			return nil
		},
	})

	var subject string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an admin JWT signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithDotEnv(g.envFile), config.WithEnv())
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := simplenews.IssueAdminToken([]byte(cfg.JWTSecret), cfg.JWTIssuer, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&subject, "subject", "newsctl", "token subject")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.AddCommand(issue)

	return cmd
}

// NewEnvCommand creates the env command
func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Describe the supported environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := config.Usage()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), usage)
			return nil
		},
	}
}
