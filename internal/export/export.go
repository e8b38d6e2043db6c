// Package export pushes imported ledger rows to downstream sinks from the
// background job queue.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/dvloznov/family-ledger/internal/metrics"
	"github.com/rs/zerolog"
)

// Sink receives ledger rows. Implementations return domain.ErrDuplicate when
// the row is already present.
type Sink interface {
	Name() string
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
}

// TransactionReader loads ledger rows by id.
type TransactionReader interface {
	GetTransactions(ctx context.Context, ids []int64) ([]domain.Transaction, error)
}

// Exporter handles sync jobs.
type Exporter struct {
	reader TransactionReader
	sinks  []Sink
	log    zerolog.Logger
}

// NewExporter creates an Exporter writing to sinks in order.
func NewExporter(reader TransactionReader, log zerolog.Logger, sinks ...Sink) *Exporter {
	return &Exporter{reader: reader, sinks: sinks, log: log}
}

// Sinks returns the configured sink names.
func (e *Exporter) Sinks() []string {
	names := make([]string, 0, len(e.sinks))
	for _, s := range e.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Handle implements jobs.JobHandler. Rows already present in a sink count as
// skipped. Any other sink error fails the job so the queue retries it; retried
// rows that landed the first time come back as duplicates.
func (e *Exporter) Handle(ctx context.Context, job jobs.Job) error {
	syncJob, ok := job.(*jobs.SyncJob)
	if !ok {
		return fmt.Errorf("Handle: unexpected job type: %T", job)
	}

	log := e.log.With().
		Str("job_id", syncJob.JobID).
		Str("household_id", syncJob.HouseholdID).
		Str("upload_id", syncJob.UploadID).
		Logger()

	if len(e.sinks) == 0 || len(syncJob.TransactionIDs) == 0 {
		log.Debug().Msg("Nothing to export")
		return nil
	}

	txs, err := e.reader.GetTransactions(ctx, syncJob.TransactionIDs)
	if err != nil {
		return fmt.Errorf("Handle: loading transactions: %w", err)
	}

	var failed []error
	for _, sink := range e.sinks {
		pushed, skipped, errs := e.push(ctx, sink, txs)
		log.Info().
			Str("sink", sink.Name()).
			Int("pushed", pushed).
			Int("skipped", skipped).
			Int("failed", len(errs)).
			Msg("Export to sink completed")
		failed = append(failed, errs...)
	}

	if len(failed) > 0 {
		return fmt.Errorf("Handle: %d rows failed: %w", len(failed), errors.Join(failed...))
	}
	return nil
}

func (e *Exporter) push(ctx context.Context, sink Sink, txs []domain.Transaction) (pushed, skipped int, errs []error) {
	for i := range txs {
		tx := &txs[i]
		err := sink.InsertTransaction(ctx, tx)
		switch {
		case err == nil:
			pushed++
			metrics.SyncPushesTotal.WithLabelValues(sink.Name(), metrics.OutcomeSucceeded).Inc()
		case errors.Is(err, domain.ErrDuplicate):
			skipped++
			metrics.SyncPushesTotal.WithLabelValues(sink.Name(), metrics.OutcomeSkipped).Inc()
		default:
			e.log.Warn().Err(err).Str("sink", sink.Name()).Int64("transaction_id", tx.ID).Msg("Export failed")
			metrics.SyncPushesTotal.WithLabelValues(sink.Name(), metrics.OutcomeFailed).Inc()
			errs = append(errs, fmt.Errorf("%s: transaction %d: %w", sink.Name(), tx.ID, err))
		}
	}
	return pushed, skipped, errs
}
