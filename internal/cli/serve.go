package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/family-ledger/internal/api"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/dvloznov/family-ledger/internal/jobs/inmemory"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background sync worker",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	ctx = a.context(ctx)
	log := a.log

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		a.cfg.Server.Addr = addr
	}

	importer, err := a.importer(ctx)
	if err != nil {
		return err
	}

	exporter, err := a.exporter(ctx)
	if err != nil {
		return err
	}

	// Initialize job infrastructure
	var jobStore jobs.JobStore
	var jobQueue *inmemory.Queue
	// Workers outlive the signal so jobs published by draining requests still run.
	workerCtx, cancelWorker := context.WithCancel(a.context(context.Background()))
	defer cancelWorker()

	if exporter != nil {
		store := inmemory.NewStore()
		jobStore = store
		jobQueue = inmemory.NewQueue(a.cfg.Jobs.BufferSize, a.cfg.Jobs.Workers, a.cfg.Jobs.MaxRetries, store)
		jobQueue.SetLogger(log)
		if err := jobQueue.Start(workerCtx, exporter.Handle); err != nil {
			return err
		}
		importer.SetPublisher(jobQueue)
		log.Info().Int("workers", a.cfg.Jobs.Workers).Msg("Sync worker started")
	}

	srv := api.NewServer(a.db, importer, jobStore, api.Options{
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		SummaryDays:    a.cfg.Summary.Days,
		PayeeUPI:       a.cfg.Summary.PayeeUPI,
		PayeeName:      a.cfg.Summary.PayeeName,
		Metrics:        a.cfg.Server.Metrics,
	}, log)

	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  a.cfg.Server.IdleTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("classifier", importer.Strategy()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Requests are drained; let running jobs finish, then cancel the rest.
	if jobQueue != nil {
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
	}
	cancelWorker()

	log.Info().Msg("Server exited")
	return nil
}
