package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/adjudication"
	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
	"github.com/ziadkadry99/claimdesk/internal/notifications"
	"github.com/ziadkadry99/claimdesk/internal/server"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the claims HTTP and websocket server",
	Long:  `Starts the claimdesk server with the claim processing API, the streaming websocket, the member ledger and review queue, sessions, operator notifications and the audit trail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: a.cfg.Server.AllowAllOrigins,
		}, a.db, logger.Named("http"))

		registerAllRoutes(srv, a)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			if err := a.notifier.Run(ctx); err != nil {
				logger.Error("notification dispatcher stopped", zap.Error(err))
			}
		}()

		go func() {
			<-ctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown", zap.Error(err))
			}
		}()

		fmt.Fprintf(os.Stderr, "claimdesk server v%s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", a.db.Path())
		fmt.Fprintf(os.Stderr, "  Provider: %s\n", a.cfg.Provider)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// registerAllRoutes wires every feature's routes onto the server.
func registerAllRoutes(srv *server.Server, a *app) {
	r := srv.Router()

	adjudication.RegisterRoutes(r, a.pipeline, logger.Named("pipeline"))
	ledger.RegisterRoutes(r, a.ledger, a.audit, logger.Named("ledger"))
	sessions.RegisterRoutes(r, a.sessions)
	audit.RegisterRoutes(r, a.audit)
	notifications.RegisterRoutes(r, a.alerts, a.notifier)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
