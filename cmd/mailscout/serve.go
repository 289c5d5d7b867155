package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"mailscout/internal/ingest"
	"mailscout/internal/ingest/handler"
	ingestmetrics "mailscout/internal/ingest/metrics"
	"mailscout/internal/platform/httpserver"
	"mailscout/internal/platform/metrics"
	httptransport "mailscout/internal/transport/http"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server that collects enrichment results",
		Long: `Serve accepts enrichment callbacks on POST /webhook, merges them into the
result CSV and exposes /results.csv, /status, /health and /metrics.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().String("store", "", "result CSV path (default results.csv)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := loadApp(cmd, bindings{
		"addr":  "server.addr",
		"store": "store.path",
	})
	if err != nil {
		return err
	}
	defer a.Close()

	rs, err := a.resultStore()
	if err != nil {
		return err
	}
	pub, err := a.publisher(ctx)
	if err != nil {
		return err
	}

	svc := ingest.New(rs, a.logger,
		ingest.WithPublisher(pub),
		ingest.WithMetrics(ingestmetrics.New(a.registry)),
		ingest.WithConcurrency(a.cfg.Webhook.Concurrency),
	)
	validator := a.tokenValidator()
	router := httptransport.NewRouter(httptransport.Deps{
		Webhook:  handler.New(svc, a.logger, a.cfg.Webhook.MaxBodyBytes, validator),
		Store:    rs,
		Metrics:  metrics.New(a.registry),
		Gatherer: a.registry,
		Logger:   a.logger,
	})

	srv := httpserver.New(a.cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting mailscout",
			"addr", a.cfg.Server.Addr,
			"store", rs.Path(),
			"webhook_auth", validator != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
