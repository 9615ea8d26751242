package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/lostfound-admin/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server",
	Long: `Start the JSON admin API, health check and Prometheus /metrics endpoint.

Examples:
  lostfound-admin serve                  # Listen on LFADMIN_ADDR (default :8080)
  lostfound-admin serve --addr :3000     # Override the listen address`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Address to listen on (overrides LFADMIN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(app *AppContext) error {
		addr := app.Config.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		server := web.NewServer(app.Service, web.Config{
			Addr:            addr,
			ShutdownTimeout: app.Config.ShutdownTimeout,
			APIToken:        app.Config.APIToken,
			IngestRate:      app.Config.IngestRate,
			IngestBurst:     app.Config.IngestBurst,
		}, app.Metrics, app.Logger)

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.Start(gCtx)
		})
		g.Go(func() error {
			<-gCtx.Done()
			if ctx.Err() != nil {
				app.Logger.Info("shutting down", slog.String("reason", context.Cause(ctx).Error()))
			}
			return nil
		})
		return g.Wait()
	})
}
