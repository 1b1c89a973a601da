// Package session holds the per-user state of the predictor: the uploaded
// sample set and the model fitted from it. Nothing is shared between
// sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
	"github.com/MikeSquared-Agency/Potency/internal/hermes"
	"github.com/MikeSquared-Agency/Potency/internal/metrics"
	"github.com/MikeSquared-Agency/Potency/internal/predictor"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

var (
	ErrNoModel   = errors.New("no model fitted yet")
	ErrNoDataset = errors.New("no dataset uploaded")
)

type Options struct {
	DefaultKind   predictor.Kind
	TestRatio     float64
	Seed          int64
	SkipMalformed bool
	PreviewRows   int
	CurvePoints   int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		DefaultKind:   predictor.KindLinear,
		TestRatio:     predictor.DefaultTestRatio,
		Seed:          predictor.DefaultSeed,
		PreviewRows:   5,
		CurvePoints:   predictor.DefaultCurvePoints,
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Session serializes every interaction under one mutex. The sample set and
// model are swapped together, and only after a fit succeeds.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	opts   Options
	models store.ModelStore
	events *hermes.Publisher
	logger *slog.Logger
	now    func() time.Time

	lastActive atomic.Int64

	mu       sync.Mutex
	samples  *dataset.SampleSet
	model    predictor.Model
	fittedAt time.Time
}

func New(opts Options, models store.ModelStore, events *hermes.Publisher, logger *slog.Logger) *Session {
	s := &Session{
		ID:     uuid.New(),
		opts:   opts,
		models: models,
		events: events,
		logger: logger,
		now:    time.Now,
	}
	s.CreatedAt = s.now()
	s.touch()
	return s
}

func (s *Session) touch() { s.lastActive.Store(s.now().UnixNano()) }

func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

type UploadResult struct {
	Strategy    predictor.Kind               `json:"strategy"`
	Accepted    int                          `json:"accepted"`
	Rejected    []dataset.RowError           `json:"rejected,omitempty"`
	Preview     []dataset.Sample             `json:"preview"`
	DatasetHash string                       `json:"dataset_hash"`
	Model       predictor.Model              `json:"model"`
	Formula     string                       `json:"formula,omitempty"`
	Metrics     *predictor.EvaluationMetrics `json:"metrics,omitempty"`
	SavedTo     string                       `json:"saved_to,omitempty"`
	SaveError   string                       `json:"save_error,omitempty"`
}

// Upload parses a CSV payload and fits it with the given strategy (the
// session default when kind is empty). On any error the previous dataset and
// model stay in place. A failed save of a linear model is reported in the
// result, not as an error.
func (s *Session) Upload(ctx context.Context, r io.Reader, kind predictor.Kind) (*UploadResult, error) {
	if kind == "" {
		kind = s.opts.DefaultKind
	}
	start := time.Now()
	defer func() {
		metrics.FitDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	strategy, err := predictor.NewStrategy(kind, s.opts.TestRatio, s.opts.Seed)
	if err != nil {
		return nil, err
	}

	set, err := dataset.Parse(r, dataset.ParseOptions{SkipMalformed: s.opts.SkipMalformed})
	if err != nil {
		var ve *dataset.ValidationError
		if errors.As(err, &ve) {
			metrics.RowsRejectedTotal.Add(float64(len(ve.Rows)))
		}
		s.fitFailed(kind, err)
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	metrics.RowsRejectedTotal.Add(float64(len(set.Rejected)))

	model, err := strategy.Fit(set)
	if err != nil {
		s.fitFailed(kind, err)
		return nil, fmt.Errorf("fit %s: %w", kind, err)
	}

	s.samples, s.model, s.fittedAt = set, model, s.now()
	metrics.FitsTotal.WithLabelValues(string(kind), metrics.OutcomeOK).Inc()

	res := &UploadResult{
		Strategy:    kind,
		Accepted:    set.Len(),
		Rejected:    set.Rejected,
		Preview:     set.Preview(s.opts.PreviewRows),
		DatasetHash: set.Fingerprint(),
		Model:       model,
	}
	event := hermes.ModelFittedEvent{
		SessionID:   s.ID.String(),
		Strategy:    string(kind),
		Samples:     set.Len(),
		Rejected:    len(set.Rejected),
		DatasetHash: res.DatasetHash,
		FittedAt:    s.fittedAt,
	}

	if lm, ok := model.(*predictor.LinearModel); ok {
		res.Formula = lm.Formula()
		res.Metrics = &lm.Metrics
		event.Slope, event.Intercept = &lm.Slope, &lm.Intercept
		event.MSE, event.R2 = &lm.Metrics.MSE, &lm.Metrics.R2
		res.SavedTo, res.SaveError = s.save(ctx, lm)
	}

	s.logger.Info("model fitted",
		"session_id", s.ID,
		"strategy", kind,
		"samples", set.Len(),
		"rejected", len(set.Rejected),
		"dataset_hash", res.DatasetHash,
	)
	s.events.Publish(hermes.SubjectModelFitted(s.ID.String()), event)
	return res, nil
}

func (s *Session) save(ctx context.Context, lm *predictor.LinearModel) (location, saveErr string) {
	if s.models == nil {
		return "", ""
	}
	loc, err := s.models.Save(ctx, lm)
	ev := hermes.ModelSavedEvent{SessionID: s.ID.String(), Location: loc}
	if err != nil {
		metrics.ModelSavesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.logger.Error("failed to save model", "session_id", s.ID, "location", s.models.Location(), "error", err)
		ev.Location, ev.Error = s.models.Location(), err.Error()
		s.events.Publish(hermes.SubjectModelSaved, ev)
		return "", err.Error()
	}
	metrics.ModelSavesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	s.logger.Info("model saved", "session_id", s.ID, "location", loc)
	s.events.Publish(hermes.SubjectModelSaved, ev)
	return loc, ""
}

func (s *Session) fitFailed(kind predictor.Kind, err error) {
	metrics.FitsTotal.WithLabelValues(string(kind), metrics.OutcomeFailed).Inc()
	s.logger.Warn("fit rejected", "session_id", s.ID, "strategy", kind, "error", err)
	s.events.Publish(hermes.SubjectFitFailed(s.ID.String()), hermes.FitFailedEvent{
		SessionID: s.ID.String(),
		Strategy:  string(kind),
		Error:     err.Error(),
	})
}

type Prediction struct {
	EC50nM   float64        `json:"ec50"`
	Potency  float64        `json:"potency"`
	Strategy predictor.Kind `json:"strategy"`
	Message  string         `json:"message"`
}

// Predict validates a user-entered EC50 and evaluates the current model.
func (s *Session) Predict(raw string) (*Prediction, error) {
	ec50, err := predictor.ValidateEC50Input(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.model == nil {
		return nil, ErrNoModel
	}
	potency := s.model.Predict(ec50)
	kind := s.model.Kind()
	metrics.PredictionsTotal.WithLabelValues(string(kind)).Inc()

	s.events.Publish(hermes.SubjectPredicted(s.ID.String()), hermes.PredictionEvent{
		SessionID: s.ID.String(),
		Strategy:  string(kind),
		EC50nM:    ec50,
		Potency:   potency,
	})
	return &Prediction{
		EC50nM:   ec50,
		Potency:  potency,
		Strategy: kind,
		Message:  predictor.FormatPrediction(potency),
	}, nil
}

// Plot returns the observed points and a sampled curve of the current model.
func (s *Session) Plot() (*predictor.PlotData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.model == nil {
		return nil, ErrNoModel
	}
	if s.samples == nil {
		return nil, ErrNoDataset
	}
	p := predictor.BuildPlot(s.samples, s.model, s.opts.CurvePoints)
	return &p, nil
}

// LoadPersisted replaces the session model with the persisted linear model.
// The dataset is dropped because it did not produce the loaded model.
func (s *Session) LoadPersisted(ctx context.Context) (*predictor.LinearModel, error) {
	if s.models == nil {
		return nil, store.ErrModelNotFound
	}
	lm, err := s.models.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.samples, s.model, s.fittedAt = nil, lm, s.now()
	s.logger.Info("persisted model loaded", "session_id", s.ID, "location", s.models.Location())
	return lm, nil
}

type Summary struct {
	ID         uuid.UUID       `json:"session_id"`
	CreatedAt  time.Time       `json:"created_at"`
	LastActive time.Time       `json:"last_active"`
	Strategy   predictor.Kind  `json:"strategy,omitempty"`
	Samples    int             `json:"samples"`
	FittedAt   *time.Time      `json:"fitted_at,omitempty"`
	Model      predictor.Model `json:"model,omitempty"`
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive(),
		Samples:    s.samples.Len(),
	}
	if s.model != nil {
		fitted := s.fittedAt
		out.Strategy = s.model.Kind()
		out.FittedAt = &fitted
		out.Model = s.model
	}
	return out
}
