package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/josephgoksu/dayplan/internal/config"
	"github.com/josephgoksu/dayplan/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the task HTTP API",
	Long: `Start the JSON HTTP API. Every request must carry the caller's identity in
the X-User-ID header, normally set by an authenticating proxy in front of dayplan.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		sweepCtx, cancelSweep := context.WithCancel(context.Background())
		defer cancelSweep()
		go svc.cache.Run(sweepCtx)

		srv := server.New(svc.cfg.Server, svc.tasks, svc.log)

		var wg sync.WaitGroup
		errChan := make(chan error, 1)
		srv.Start(&wg, errChan)
		svc.log.Info("dayplan started",
			"backend", svc.store.Backend(),
			"position", svc.store.PositionSupport().String(),
			"cache", svc.cfg.Cache.Enabled)

		select {
		case err = <-errChan:
		case <-ctx.Done():
			svc.log.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), svc.cfg.Server.ShutdownTimeout)
		defer cancel()
		if shutErr := srv.Shutdown(shutdownCtx); shutErr != nil {
			svc.log.Error("shutdown failed", "error", shutErr)
		}
		wg.Wait()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
