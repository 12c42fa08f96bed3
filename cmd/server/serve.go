package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/votepay/backend/docs"
	"github.com/votepay/backend/internal/database"
	"github.com/votepay/backend/internal/handlers"
	"github.com/votepay/backend/internal/services"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the provider health checks and the expiry sweep",
		RunE:  runServe,
	}
	cmd.Flags().Bool("migrate", true, "apply the embedded schema before serving")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the bare root command has no --migrate flag and always migrates
	if migrate, err := cmd.Flags().GetBool("migrate"); migrate || err != nil {
		if err := database.Migrate(ctx, a.db); err != nil {
			return err
		}
	}

	publicURL := viper.GetString("server.public_url")
	docs.SwaggerInfo.Host = trimScheme(publicURL)

	a.selector.Start(ctx, a.payments.HealthInterval)
	defer a.selector.Close()

	go a.reconciler.Run(ctx, a.payments.SweepInterval)

	router := handlers.NewRouter(handlers.RouterConfig{
		Intents:     handlers.NewIntentHandler(a.intents, a.confirmer, services.NewStatusReportService()),
		Webhooks:    handlers.NewWebhookHandler(a.ingestor),
		Results:     handlers.NewResultsHandler(a.results),
		Admin:       handlers.NewAdminHandler(a.selector, a.reconciler, a.intents),
		AdminSecret: viper.GetString("jwt.secret_key"),
		Metrics:     promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		SwaggerURL:  publicURL + "/swagger/doc.json",
	})

	server := &http.Server{
		Addr:         ":" + viper.GetString("server.port"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Println("Server stopped")
	return nil
}

func trimScheme(url string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(url) > len(prefix) && url[:len(prefix)] == prefix {
			return url[len(prefix):]
		}
	}
	return url
}
