package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	echoapi "go.pilab.hu/feelscape/api/echo"
	"go.pilab.hu/feelscape/internal/server"
	"go.pilab.hu/feelscape/mongodb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session state and account operations over HTTP for a UI shell",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close(context.WithoutCancel(ctx))

		checks := map[string]echoapi.HealthCheck{"mongo": mongodb.Ping}
		if rt.redis != nil {
			checks["redis"] = func(ctx context.Context) error { return rt.redis.Ping(ctx).Err() }
		}

		authAPI := echoapi.NewAuthAPI(rt.controller, promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}), checks)
		httpServer := server.NewHTTPServer(cfg.HTTPAddr, server.NewRouter(appLogger, authAPI))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			appLogger.Info(gctx, "HTTP server listening", map[string]interface{}{"addr": cfg.HTTPAddr})
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			appLogger.Info(context.Background(), "Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}
