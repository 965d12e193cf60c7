package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/ShelfView/internal/client"
	"github.com/dharsanguruparan/ShelfView/internal/config"
)

// app carries what every subcommand needs once the root command has loaded
// the configuration.
type app struct {
	cfg       *config.Config
	serverURL string
}

func (a *app) client() (*client.Client, error) {
	url := a.serverURL
	if url == "" {
		url = a.cfg.Client.ServerURL
	}
	return client.NewFromURL(url)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "shelfview",
		Short: "Browse, preview and download books from a ShelfView library",
		Long: `ShelfView talks to a ShelfView server to list and search the catalog,
page through book previews and save full documents locally.

Settings are read from SHELFVIEW_* environment variables and an optional .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			slog.SetDefault(cfg.Logger.New(cmd.ErrOrStderr()))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&a.serverURL, "server", "s", "", "Server URL (overrides SHELFVIEW_CLIENT_SERVER_URL)")

	cmd.AddCommand(
		newBooksCmd(a),
		newDownloadCmd(a),
		newPreviewCmd(a),
		newDevCmd(),
	)
	return cmd
}
