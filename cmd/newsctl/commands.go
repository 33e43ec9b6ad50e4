package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-news/pkg/simplenews"
	"github.com/tendant/simple-news/pkg/simplenews/config"
)

// NewListCommand creates the list command
func NewListCommand(g *globalFlags) *cobra.Command {
	var term, category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List news items, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				if err := app.Portal.Refresh(ctx); err != nil {
					return fmt.Errorf("failed to load catalog: %w", err)
				}
				items := app.Portal.Search(term, category)
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), items)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tVIEWS\tLIKES\tMEDIA")
				for _, it := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\n", it.ID, it.Category, it.Title, it.ViewCount, it.LikeCount, it.HasMedia())
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&term, "query", "q", "", "case-insensitive title/description search")
	cmd.Flags().StringVar(&category, "category", "", "category filter (All matches every category)")
	return cmd
}

// NewShowCommand creates the show command
func NewShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a news item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}
			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				item, err := app.Repository.GetContentItem(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), item)
			})
		},
	}
}

// NewCreateCommand creates the create command
func NewCreateCommand(g *globalFlags) *cobra.Command {
	var fields simplenews.ContentFields
	var category, mediaPath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a news item, uploading its media first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields.Category = simplenews.Category(category)
			req := simplenews.CreateContentItemRequest{Fields: fields}

			if mediaPath != "" {
				upload, closeFile, err := openUpload(mediaPath)
				if err != nil {
					return err
				}
				defer closeFile()
				req.File = upload
			}

			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				item, err := app.Portal.CreateContentItem(ctx, g.token, req)
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", item.ID)
				if item.HasMedia() {
					fmt.Fprintf(cmd.OutOrStdout(), "Media: %s\n", *item.MediaRef)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fields.Title, "title", "", "headline (required)")
	cmd.Flags().StringVar(&fields.Description, "description", "", "summary (required)")
	cmd.Flags().StringVar(&fields.Body, "body", "", "article body")
	cmd.Flags().StringVar(&category, "category", "", "one of the fixed categories (required)")
	cmd.Flags().StringVar(&mediaPath, "media", "", "image or video file to attach")
	return cmd
}

// NewUpdateCommand creates the update command
func NewUpdateCommand(g *globalFlags) *cobra.Command {
	var title, description, body, category string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the text fields of a news item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}

			var patch simplenews.ContentPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("body") {
				patch.Body = &body
			}
			if flags.Changed("category") {
				c := simplenews.Category(category)
				patch.Category = &c
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update")
			}

			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				item, err := app.Portal.UpdateContentItem(ctx, g.token, id, patch)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), item)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new headline")
	cmd.Flags().StringVar(&description, "description", "", "new summary")
	cmd.Flags().StringVar(&body, "body", "", "new article body")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a news item and its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}
			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				if err := app.Portal.DeleteContentItem(ctx, g.token, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	}
}

// NewLikeCommand creates the like command
func NewLikeCommand(g *globalFlags) *cobra.Command {
	return newIncrementCommand(g, "like", "Add a like to a news item", (*simplenews.Portal).IncrementLike)
}

// NewViewCommand creates the view command
func NewViewCommand(g *globalFlags) *cobra.Command {
	return newIncrementCommand(g, "view", "Record a view of a news item", (*simplenews.Portal).IncrementView)
}

func newIncrementCommand(g *globalFlags, use, short string, fn func(*simplenews.Portal, context.Context, uuid.UUID) (int64, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}
			return withApp(cmd, g, func(ctx context.Context, app *config.App) error {
				n, err := fn(app.Portal, ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

// openUpload opens a local file for upload. The content type is taken from
// the extension; when unknown the media store sniffs it.
func openUpload(path string) (*simplenews.Upload, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open media file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat media file: %w", err)
	}
	return &simplenews.Upload{
		FileName:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Size:        info.Size(),
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
