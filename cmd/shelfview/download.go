package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/ShelfView/internal/download"
)

func newDownloadCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download <book-id>",
		Short: "Save the PDF of a book",
		Example: `  # Save into the configured download directory
  shelfview download 3f1c0d2e-8a4b-4c55-9f1e-2b7d6a0c9e11

  # Save into ~/Books
  shelfview download 3f1c0d2e-8a4b-4c55-9f1e-2b7d6a0c9e11 --dir ~/Books`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.client()
			if err != nil {
				return err
			}
			book, err := c.Book(ctx, args[0])
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Client.DownloadDir
			}
			saver := download.NewSaver(c, afero.NewOsFs(), dir, slog.Default())
			path, err := saver.Save(ctx, *book)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Target directory (defaults to SHELFVIEW_CLIENT_DOWNLOAD_DIR)")
	return cmd
}
