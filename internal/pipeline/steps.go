package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/family-ledger/internal/categorize"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/dvloznov/family-ledger/internal/metrics"
	"github.com/rs/zerolog"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *ImportState) error
}

// ImportState holds the shared state across all pipeline steps.
type ImportState struct {
	Upload     Upload
	UploadID   string
	ArchiveURI string
	Detection  Detection
	Result     domain.ImportResult
}

// ArchiveStep stores the raw bytes before parsing. Failures are logged only.
type ArchiveStep struct {
	Archiver Archiver
	Log      zerolog.Logger
}

func (s *ArchiveStep) Execute(ctx context.Context, state *ImportState) error {
	if s.Archiver == nil {
		return nil
	}
	uri, err := s.Archiver.Archive(ctx, state.Upload.Identity.HouseholdID, state.UploadID, state.Upload.Filename, state.Upload.Content)
	if err != nil {
		s.Log.Warn().Err(err).Str("upload_id", state.UploadID).Msg("Failed to archive upload")
		return nil
	}
	state.ArchiveURI = uri
	return nil
}

// DetectStep picks the format and extracts raw records.
type DetectStep struct {
	Detector *Detector
}

func (s *DetectStep) Execute(ctx context.Context, state *ImportState) error {
	detection, err := s.Detector.Detect(ctx, state.Upload.Content)
	state.Detection = detection
	if err != nil {
		return err
	}
	return nil
}

// PersistStep normalizes, fingerprints, classifies and inserts each record in
// source order. No per-record failure aborts the batch.
type PersistStep struct {
	Store      Store
	Rules      RuleSource
	Strategy   string
	Normalizer *Normalizer
	Log        zerolog.Logger
}

func (s *PersistStep) Execute(ctx context.Context, state *ImportState) error {
	classifier, err := s.classifier(ctx, state.Upload.Identity.HouseholdID)
	if err != nil {
		return err
	}

	for i, raw := range state.Detection.Records {
		c := s.Normalizer.Normalize(raw)
		tx := &domain.Transaction{
			UserID:      state.Upload.Identity.UserID,
			HouseholdID: state.Upload.Identity.HouseholdID,
			ExternalID:  c.ExternalID,
			Fingerprint: Fingerprint(c),
			Date:        c.Date,
			Amount:      c.Amount,
			Merchant:    c.Merchant,
			Category:    classifier.Classify(c.Merchant),
		}
		metrics.ClassificationsTotal.WithLabelValues(classifier.Name(), tx.Category).Inc()

		err := s.Store.InsertTransaction(ctx, tx)
		switch {
		case err == nil:
			state.Result.Imported++
			state.Result.NewIDs = append(state.Result.NewIDs, tx.ID)
			metrics.RecordsTotal.WithLabelValues(metrics.OutcomeImported).Inc()
		case errors.Is(err, domain.ErrDuplicate):
			state.Result.Duplicates++
			metrics.RecordsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		default:
			s.Log.Warn().Err(err).
				Str("upload_id", state.UploadID).
				Int("record", i).
				Msg("Insert failed, counting record as duplicate")
			state.Result.Duplicates++
			metrics.RecordsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		}
	}
	return nil
}

func (s *PersistStep) classifier(ctx context.Context, householdID string) (categorize.Classifier, error) {
	var rules []domain.Rule
	if categorize.NeedsRules(s.Strategy) && s.Rules != nil {
		loaded, err := s.Rules.ListRules(ctx, householdID)
		if err != nil {
			return nil, fmt.Errorf("PersistStep: loading rules: %w", err)
		}
		rules = loaded
	}
	return categorize.New(s.Strategy, rules)
}

// PublishStep enqueues a sync job for the rows this upload created.
type PublishStep struct {
	Publisher jobs.Publisher
	Log       zerolog.Logger
}

func (s *PublishStep) Execute(ctx context.Context, state *ImportState) error {
	if s.Publisher == nil || len(state.Result.NewIDs) == 0 {
		return nil
	}
	job := &jobs.SyncJob{
		HouseholdID:    state.Upload.Identity.HouseholdID,
		UploadID:       state.UploadID,
		TransactionIDs: state.Result.NewIDs,
	}
	if err := s.Publisher.PublishSync(ctx, job); err != nil {
		s.Log.Warn().Err(err).Str("upload_id", state.UploadID).Msg("Failed to enqueue sync job")
		return nil
	}
	s.Log.Debug().Str("job_id", job.JobID).Str("upload_id", state.UploadID).Msg("Sync job enqueued")
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *ImportState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
