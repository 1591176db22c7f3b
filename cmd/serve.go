// =============================================================================
// FBR Invoicer - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   invoicer serve [--addr :8080]
//
// Starts the HTTP API. Ctrl+C shuts it down gracefully.
//
// =============================================================================

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbr-invoicer/internal/fbr"
	"github.com/ginjaninja78/fbr-invoicer/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSellers()
		if err != nil {
			return err
		}
		defer store.Close()

		addr := serveAddr
		if addr == "" {
			addr = mainConfig.Server.Addr
		}

		srv := server.New(server.Options{
			Sellers:        store,
			FBR:            fbr.NewClient(mainConfig.FBR),
			MaxConcurrency: mainConfig.MaxConcurrency,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
}
