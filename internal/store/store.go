package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Potency/internal/predictor"
)

// ErrModelNotFound is returned by Load when nothing has been saved yet.
var ErrModelNotFound = errors.New("no persisted model")

type PersistenceOp string

const (
	WriteFailed PersistenceOp = "write_failed"
	ReadFailed  PersistenceOp = "read_failed"
)

type PersistenceError struct {
	Op       PersistenceOp
	Location string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ModelStore keeps exactly one linear model. Save overwrites whatever was
// there; there is no versioning and no locking.
type ModelStore interface {
	Save(ctx context.Context, m *predictor.LinearModel) (location string, err error)
	Load(ctx context.Context) (*predictor.LinearModel, error)
	Location() string
	Close() error
}

// ModelDocument is the persisted form of a linear model.
type ModelDocument struct {
	Kind      predictor.Kind              `json:"kind"`
	Slope     float64                     `json:"slope"`
	Intercept float64                     `json:"intercept"`
	Metrics   predictor.EvaluationMetrics `json:"metrics"`
	FittedAt  time.Time                   `json:"fitted_at"`
}

func encodeModel(m *predictor.LinearModel, now time.Time) ([]byte, error) {
	return json.MarshalIndent(ModelDocument{
		Kind:      predictor.KindLinear,
		Slope:     m.Slope,
		Intercept: m.Intercept,
		Metrics:   m.Metrics,
		FittedAt:  now.UTC(),
	}, "", "  ")
}

func decodeModel(data []byte) (*predictor.LinearModel, error) {
	var doc ModelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if doc.Kind != predictor.KindLinear {
		return nil, fmt.Errorf("decode model: unsupported kind %q", doc.Kind)
	}
	return &predictor.LinearModel{
		Slope:     doc.Slope,
		Intercept: doc.Intercept,
		Metrics:   doc.Metrics,
	}, nil
}

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Options selects and configures a ModelStore backend.
type Options struct {
	Backend     string
	Name        string
	Path        string
	DatabaseURL string
	SQLiteDSN   string
}

func Open(ctx context.Context, o Options) (ModelStore, error) {
	switch o.Backend {
	case "", BackendFile:
		fs, err := NewFileStore(o.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case BackendPostgres:
		if o.DatabaseURL == "" {
			return nil, errors.New("postgres model store requires a database url")
		}
		ps, err := NewPostgresStore(ctx, o.DatabaseURL, o.Name)
		if err != nil {
			return nil, err
		}
		return ps, nil
	case BackendSQLite:
		ss, err := NewSQLiteStore(ctx, o.SQLiteDSN, o.Name)
		if err != nil {
			return nil, err
		}
		return ss, nil
	}
	return nil, fmt.Errorf("unknown model store backend %q", o.Backend)
}
