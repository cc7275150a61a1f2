package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/extract"
	"github.com/omerfdemir/docvalidator/internal/match"
	"github.com/omerfdemir/docvalidator/internal/repository"
	"github.com/omerfdemir/docvalidator/internal/resilience"
	"github.com/omerfdemir/docvalidator/internal/score"
	"github.com/omerfdemir/docvalidator/internal/sigdetect"
)

// Task is the queued unit of work: the job record id plus everything the
// pipeline needs that is not persisted (raw bytes live only as long as
// the job runs).
type Task struct {
	JobID      uuid.UUID
	DocumentID string
	Template   entity.DocumentTemplate
	Data       []byte
	Format     string
	// CustomerData holds caller-supplied expected values for the
	// cross-check, keyed by field id. Optional.
	CustomerData map[string]string
	SubmittedAt  time.Time
}

// Orchestrator drives one job through extract, analyze, and score, and
// is the only writer of job records.
type Orchestrator struct {
	jobs      repository.JobRepository
	templates repository.TemplateRepository
	engine    extract.Engine
	matcher   *match.Matcher
	detector  *sigdetect.Detector
	retry     resilience.RetryConfig
	extractTO time.Duration
	log       *zap.Logger
}

type OrchestratorConfig struct {
	Retry          resilience.RetryConfig
	ExtractTimeout time.Duration
}

func NewOrchestrator(
	jobs repository.JobRepository,
	templates repository.TemplateRepository,
	engine extract.Engine,
	matcher *match.Matcher,
	detector *sigdetect.Detector,
	cfg OrchestratorConfig,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.ExtractTimeout == 0 {
		cfg.ExtractTimeout = 60 * time.Second
	}
	return &Orchestrator{
		jobs:      jobs,
		templates: templates,
		engine:    engine,
		matcher:   matcher,
		detector:  detector,
		retry:     cfg.Retry,
		extractTO: cfg.ExtractTimeout,
		log:       log,
	}
}

// Run executes the full lifecycle of one queued task. The job always
// reaches a terminal state: failures are recorded on the record, never
// swallowed.
func (o *Orchestrator) Run(ctx context.Context, task Task) {
	log := o.log.With(zap.String("job_id", task.JobID.String()), zap.String("document_id", task.DocumentID))
	ctx = common.WithJobID(ctx, task.JobID.String())

	j, err := o.jobs.GetByID(ctx, task.JobID)
	if err != nil {
		log.Error("job record missing, dropping task", zap.Error(err))
		return
	}

	j, err = o.transition(ctx, j, Event{Type: EventStartExtraction, Now: time.Now()})
	if err != nil {
		log.Error("cannot start extraction", zap.Error(err))
		return
	}

	ex, err := o.extract(ctx, task)
	if err != nil {
		// Extraction errors are fatal and never retried: the file will
		// not become valid on a second read.
		o.fail(ctx, j, common.ExtractionReason(err), log.With(zap.Error(err)))
		return
	}
	log.Info("extraction complete",
		zap.String("method", ex.Method),
		zap.Int("pages", len(ex.Pages)),
		zap.Duration("duration", ex.Duration))

	j, err = o.transition(ctx, j, Event{Type: EventStartAnalysis, Now: time.Now()})
	if err != nil {
		log.Error("cannot start analysis", zap.Error(err))
		return
	}

	matches, isolation, err := o.analyze(ctx, &j, ex, task.Template, log)
	if err != nil {
		o.fail(ctx, j, common.ErrAnalysisUnavailable.Error(), log.With(zap.Error(err)))
		return
	}

	result := score.Aggregate(matches, task.Template.Fields, score.Options{
		OCRCeilingApplied:  ex.HasOCRPages(),
		ExtractionWarnings: append(ex.Warnings, isolation...),
		Now:                time.Now(),
	})
	o.enrich(ctx, &result, ex, task)

	if _, err := o.transition(ctx, j, Event{Type: EventComplete, Result: &result, Now: time.Now()}); err != nil {
		log.Error("cannot complete job", zap.Error(err))
		return
	}
	log.Info("job completed",
		zap.Float64("overall_score", result.OverallScore),
		zap.Bool("is_valid", result.IsValid),
		zap.Int("attempt_count", j.AttemptCount))
}

func (o *Orchestrator) extract(ctx context.Context, task Task) (entity.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.extractTO)
	defer cancel()

	var hints []entity.RegionHint
	for _, f := range task.Template.VisualFields() {
		if f.RegionHint != nil {
			hints = append(hints, *f.RegionHint)
		}
	}
	return o.engine.Extract(ctx, task.Data, task.Format, hints)
}

// analyze fans out the field matcher and the signature detector. The two
// are isolated: one side failing yields empty matches and a warning, not
// a failed job. Only transient-exhaustion from the matcher (the analysis
// service staying down past the retry cap) fails the job.
func (o *Orchestrator) analyze(ctx context.Context, j *entity.ValidationJob, ex entity.ExtractionResult, tpl entity.DocumentTemplate, log *zap.Logger) ([]entity.FieldMatch, []string, error) {
	var (
		textMatches   []entity.FieldMatch
		visualMatches []entity.FieldMatch
		warnings      []string
	)

	retry := o.retry
	retry.OnRetry = func(attempt int, err error) {
		log.Warn("analysis attempt failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		next, applyErr := o.transition(ctx, *j, Event{Type: EventAnalysisRetry, Now: time.Now()})
		if applyErr != nil {
			log.Error("cannot record analysis retry", zap.Error(applyErr))
			return
		}
		*j = next
	}

	// Plain group, no shared cancellation: one side failing must not
	// abort the other.
	var g errgroup.Group

	g.Go(func() error {
		ms, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]entity.FieldMatch, error) {
			return o.matcher.Match(ctx, ex, tpl.TextFields(), tpl.Name)
		})
		if err != nil {
			return err
		}
		textMatches = ms
		return nil
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("signature detection panicked", zap.Any("panic", r))
				warnings = append(warnings, "signature detection failed; visual fields were not evaluated")
			}
		}()
		visualMatches = o.detector.Detect(ex, tpl.VisualFields())
		for _, fm := range visualMatches {
			log.Debug("visual field evaluated", zap.String("detail", sigdetect.Describe(fm)))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return append(textMatches, visualMatches...), warnings, nil
}

// enrich applies the supplementary checks that ride on a completed
// result: template-mismatch guess and the customer-data cross-check.
func (o *Orchestrator) enrich(ctx context.Context, result *entity.ValidationResult, ex entity.ExtractionResult, task Task) {
	if !result.IsValid && len(result.MissingFields()) > len(task.Template.Fields)/2 {
		if all, err := o.templates.List(ctx); err == nil {
			if guess := repository.GuessTemplateID(all, ex.FullText); guess != "" && guess != task.Template.ID {
				result.Recommendations = append(result.Recommendations,
					fmt.Sprintf("document content resembles template %q rather than the declared %q; verify the document type", guess, task.Template.ID))
			}
		}
	}

	if len(task.CustomerData) > 0 {
		cc := score.CompareWithCustomerData(*result, task.CustomerData)
		for _, mm := range cc.Mismatches {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("field %q value %q differs from customer record %q", mm.FieldID, mm.Value, mm.Expected))
		}
		if cc.MatchRate < 100 {
			result.Recommendations = append(result.Recommendations,
				fmt.Sprintf("extracted values agree with the customer record at %.0f%%; reconcile the mismatched fields", cc.MatchRate))
		}
	}
}

// transition applies one event and persists the new state.
func (o *Orchestrator) transition(ctx context.Context, j entity.ValidationJob, e Event) (entity.ValidationJob, error) {
	next, err := Apply(j, e)
	if err != nil {
		return j, err
	}
	if err := o.jobs.Update(ctx, next); err != nil {
		return j, err
	}
	return next, nil
}

func (o *Orchestrator) fail(ctx context.Context, j entity.ValidationJob, reason string, log *zap.Logger) {
	if _, err := o.transition(ctx, j, Event{Type: EventFail, Err: reason, Now: time.Now()}); err != nil {
		log.Error("cannot record job failure", zap.Error(err))
		return
	}
	log.Warn("job failed", zap.String("last_error", reason))
}
