package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/family-ledger/internal/categorize"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/dvloznov/family-ledger/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Upload is one file handed to the importer.
type Upload struct {
	Identity domain.Identity
	Filename string
	Content  []byte
}

// Service imports uploaded statements into a Store.
type Service struct {
	store     Store
	rules     RuleSource
	archiver  Archiver
	publisher jobs.Publisher
	extractor TextExtractor
	model     StatementModel
	strategy  string
	clock     func() time.Time
	log       zerolog.Logger
}

// NewService creates an import service using the keyword classifier.
// rules may be nil when only the keyword strategy is used.
func NewService(store Store, rules RuleSource, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		rules:    rules,
		strategy: categorize.StrategyKeywords,
		log:      log,
	}
}

// SetArchiver enables raw upload archiving.
func (s *Service) SetArchiver(a Archiver) { s.archiver = a }

// SetPublisher enables sync jobs for newly imported rows.
func (s *Service) SetPublisher(p jobs.Publisher) { s.publisher = p }

// SetModel enables the statement model fallback for PDFs.
func (s *Service) SetModel(m StatementModel) { s.model = m }

// SetExtractor replaces the PDF text extractor.
func (s *Service) SetExtractor(e TextExtractor) { s.extractor = e }

// SetClock replaces the clock used for records without a usable date.
func (s *Service) SetClock(now func() time.Time) { s.clock = now }

// SetStrategy selects the classifier strategy by name.
func (s *Service) SetStrategy(strategy string) error {
	if _, err := categorize.New(strategy, nil); err != nil {
		return fmt.Errorf("SetStrategy: %w", err)
	}
	s.strategy = strategy
	return nil
}

// Strategy returns the configured classifier strategy.
func (s *Service) Strategy() string { return s.strategy }

// Import detects, normalizes, classifies and stores every record in the
// upload. It fails only when no records can be extracted at all; records the
// store rejects are counted as duplicates.
func (s *Service) Import(ctx context.Context, upload Upload) (domain.ImportResult, error) {
	start := time.Now()
	if upload.Filename == "" {
		upload.Filename = DefaultFilename
	}

	state := &ImportState{
		Upload:   upload,
		UploadID: uuid.New().String(),
	}
	log := s.log.With().
		Str("upload_id", state.UploadID).
		Str("household_id", upload.Identity.HouseholdID).
		Str("filename", upload.Filename).
		Logger()

	normalizer := NewNormalizer()
	if s.clock != nil {
		normalizer.Now = s.clock
	}

	p := NewPipeline(
		&ArchiveStep{Archiver: s.archiver, Log: log},
		&DetectStep{Detector: NewDetector(s.extractor, s.model, log)},
		&PersistStep{
			Store:      s.store,
			Rules:      s.rules,
			Strategy:   s.strategy,
			Normalizer: normalizer,
			Log:        log,
		},
		&PublishStep{Publisher: s.publisher, Log: log},
	)

	err := p.Execute(ctx, state)
	format := string(state.Detection.Format)
	metrics.UploadDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UploadsTotal.WithLabelValues(format, metrics.OutcomeRejected).Inc()
		if errors.Is(err, domain.ErrUnparsableFile) {
			log.Info().Int("bytes", len(upload.Content)).Msg("Upload could not be parsed")
			return domain.ImportResult{}, domain.ErrUnparsableFile
		}
		log.Error().Err(err).Msg("Import failed")
		return domain.ImportResult{}, fmt.Errorf("Import: %w", err)
	}

	result := state.Result
	result.Format = format
	result.UploadID = state.UploadID
	metrics.UploadsTotal.WithLabelValues(format, metrics.OutcomeAccepted).Inc()

	log.Info().
		Str("format", format).
		Int("records", len(state.Detection.Records)).
		Int("imported", result.Imported).
		Int("duplicates", result.Duplicates).
		Str("archive_uri", state.ArchiveURI).
		Dur("duration", time.Since(start)).
		Msg("Upload imported")

	return result, nil
}
