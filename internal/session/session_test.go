package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
	"github.com/MikeSquared-Agency/Potency/internal/hermes"
	"github.com/MikeSquared-Agency/Potency/internal/predictor"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

const threeRows = "Substance,EC50_nM,Potency\nA,10,1\nB,20,2\nC,30,3\n"

type memStore struct {
	mu      sync.Mutex
	saved   *predictor.LinearModel
	saveErr error
	saves   int
}

func (m *memStore) Save(_ context.Context, lm *predictor.LinearModel) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return "", m.saveErr
	}
	cp := *lm
	m.saved = &cp
	return "mem:model", nil
}

func (m *memStore) Load(context.Context) (*predictor.LinearModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return nil, store.ErrModelNotFound
	}
	cp := *m.saved
	return &cp, nil
}

func (m *memStore) Location() string { return "mem:model" }
func (m *memStore) Close() error     { return nil }

type recordingClient struct {
	mu       sync.Mutex
	subjects []string
}

func (c *recordingClient) Publish(subject string, _ interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return nil
}

func (c *recordingClient) Close() {}

func (c *recordingClient) has(subject string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, ms store.ModelStore) (*Session, *recordingClient) {
	t.Helper()
	rc := &recordingClient{}
	s := New(DefaultOptions(), ms, hermes.NewPublisher(rc, testLogger()), testLogger())
	return s, rc
}

func TestUploadInterpolationThenPredict(t *testing.T) {
	s, rc := newTestSession(t, &memStore{})

	res, err := s.Upload(context.Background(), strings.NewReader(threeRows), predictor.KindInterpolation)
	require.NoError(t, err)
	assert.Equal(t, predictor.KindInterpolation, res.Strategy)
	assert.Equal(t, 3, res.Accepted)
	assert.Len(t, res.Preview, 3)
	assert.Nil(t, res.Metrics)
	assert.Empty(t, res.SavedTo)
	assert.NotEmpty(t, res.DatasetHash)
	assert.True(t, rc.has(hermes.SubjectModelFitted(s.ID.String())))

	p, err := s.Predict("25")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, p.Potency, 1e-9)
	assert.Equal(t, "The predicted potency relative to DAMGO is: 2.50x", p.Message)
	assert.True(t, rc.has(hermes.SubjectPredicted(s.ID.String())))
}

func TestUploadLinearSavesModel(t *testing.T) {
	ms := &memStore{}
	s, rc := newTestSession(t, ms)

	csv := "Substance,EC50_nM,Potency\n"
	for i := 1; i <= 10; i++ {
		csv += "S," + strconv.Itoa(i*10) + "," + strconv.Itoa(i) + "\n"
	}
	res, err := s.Upload(context.Background(), strings.NewReader(csv), predictor.KindLinear)
	require.NoError(t, err)
	require.NotNil(t, res.Metrics)
	assert.Equal(t, 8, res.Metrics.TrainSize)
	assert.Equal(t, 2, res.Metrics.TestSize)
	assert.Equal(t, "mem:model", res.SavedTo)
	assert.Empty(t, res.SaveError)
	assert.NotEmpty(t, res.Formula)
	assert.Equal(t, 1, ms.saves)
	require.NotNil(t, ms.saved)
	assert.InDelta(t, 0.1, ms.saved.Slope, 1e-9)
	assert.True(t, rc.has(hermes.SubjectModelSaved))

	p, err := s.Predict("55")
	require.NoError(t, err)
	assert.InDelta(t, 5.5, p.Potency, 1e-9)
}

func TestUploadDefaultsToSessionStrategy(t *testing.T) {
	s, _ := newTestSession(t, nil)
	res, err := s.Upload(context.Background(), strings.NewReader(threeRows), "")
	require.NoError(t, err)
	assert.Equal(t, predictor.KindLinear, res.Strategy)
	assert.Empty(t, res.SavedTo)
	assert.Empty(t, res.SaveError)
}

func TestUploadSaveFailureIsNotFatal(t *testing.T) {
	ms := &memStore{saveErr: errors.New("disk full")}
	s, _ := newTestSession(t, ms)

	res, err := s.Upload(context.Background(), strings.NewReader(threeRows), predictor.KindLinear)
	require.NoError(t, err)
	assert.Empty(t, res.SavedTo)
	assert.Equal(t, "disk full", res.SaveError)

	_, err = s.Predict("10")
	assert.NoError(t, err)
}

func TestFailedUploadKeepsPreviousModel(t *testing.T) {
	s, rc := newTestSession(t, nil)

	_, err := s.Upload(context.Background(), strings.NewReader(threeRows), predictor.KindInterpolation)
	require.NoError(t, err)

	tests := []struct {
		name   string
		csv    string
		kind   predictor.Kind
		target error
	}{
		{"missing column", "Substance,EC50_nM\nA,10\n", predictor.KindInterpolation, dataset.ErrMissingColumn},
		{"malformed row", "Substance,EC50_nM,Potency\nA,abc,1\nB,20,2\n", predictor.KindInterpolation, dataset.ErrMalformedRow},
		{"duplicate x", "Substance,EC50_nM,Potency\nA,10,1\nB,10,2\nC,20,3\n", predictor.KindInterpolation, dataset.ErrDuplicateX},
		{"single row", "Substance,EC50_nM,Potency\nA,10,1\n", predictor.KindLinear, predictor.ErrInsufficientData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Upload(context.Background(), strings.NewReader(tt.csv), tt.kind)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			p, err := s.Predict("25")
			require.NoError(t, err)
			assert.InDelta(t, 2.5, p.Potency, 1e-9)
			assert.Equal(t, 3, s.Summary().Samples)
		})
	}
	assert.True(t, rc.has(hermes.SubjectFitFailed(s.ID.String())))
}

func TestUploadUnknownStrategy(t *testing.T) {
	s, _ := newTestSession(t, nil)
	_, err := s.Upload(context.Background(), strings.NewReader(threeRows), predictor.Kind("cubic"))
	assert.ErrorIs(t, err, predictor.ErrUnknownStrategy)
}

func TestPredictErrors(t *testing.T) {
	s, _ := newTestSession(t, nil)

	_, err := s.Predict("12")
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = s.Predict("abc")
	assert.ErrorIs(t, err, predictor.ErrNotANumber)

	_, err = s.Predict("-3")
	assert.ErrorIs(t, err, predictor.ErrNonPositive)
}

func TestPlot(t *testing.T) {
	s, _ := newTestSession(t, nil)

	_, err := s.Plot()
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = s.Upload(context.Background(), strings.NewReader(threeRows), predictor.KindInterpolation)
	require.NoError(t, err)

	p, err := s.Plot()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, p.XObserved)
	assert.Len(t, p.XCurve, predictor.DefaultCurvePoints)
	assert.InDelta(t, 10, p.XCurve[0], 1e-9)
	assert.InDelta(t, 30, p.XCurve[len(p.XCurve)-1], 1e-9)
}

func TestLoadPersisted(t *testing.T) {
	ms := &memStore{}
	s, _ := newTestSession(t, ms)

	_, err := s.LoadPersisted(context.Background())
	assert.ErrorIs(t, err, store.ErrModelNotFound)

	ms.saved = &predictor.LinearModel{Slope: 2, Intercept: 1}
	lm, err := s.LoadPersisted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, lm.Slope)

	p, err := s.Predict("3")
	require.NoError(t, err)
	assert.InDelta(t, 7, p.Potency, 1e-9)

	_, err = s.Plot()
	assert.ErrorIs(t, err, ErrNoDataset)

	sum := s.Summary()
	assert.Equal(t, predictor.KindLinear, sum.Strategy)
	assert.Equal(t, 0, sum.Samples)
	assert.NotNil(t, sum.FittedAt)
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(DefaultOptions(), nil, nil, testLogger())
	a, b := m.Create(), m.Create()
	assert.NotEqual(t, a.ID, b.ID)

	_, err := a.Upload(context.Background(), strings.NewReader(threeRows), predictor.KindInterpolation)
	require.NoError(t, err)

	_, err = b.Predict("25")
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestManagerCreateGetDelete(t *testing.T) {
	m := NewManager(DefaultOptions(), nil, nil, testLogger())
	s := m.Create()
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, s.ID, list[0].ID)

	assert.True(t, m.Delete(s.ID))
	assert.False(t, m.Delete(s.ID))
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestManagerReapIdle(t *testing.T) {
	rc := &recordingClient{}
	opts := DefaultOptions()
	opts.IdleTimeout = time.Minute
	m := NewManager(opts, nil, hermes.NewPublisher(rc, testLogger()), testLogger())

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale := m.Create()
	now = now.Add(50 * time.Second)
	fresh := m.Create()
	now = now.Add(20 * time.Second)

	assert.Equal(t, 1, m.reapIdle())
	_, ok := m.Get(stale.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
	assert.True(t, rc.has(hermes.SubjectSessionExpired(stale.ID.String())))

	// Activity pushes expiry out.
	now = now.Add(30 * time.Second)
	_, _ = fresh.Predict("1")
	now = now.Add(45 * time.Second)
	assert.Equal(t, 0, m.reapIdle())
}

func TestManagerStartStop(t *testing.T) {
	opts := DefaultOptions()
	opts.IdleTimeout = time.Millisecond
	opts.SweepInterval = 5 * time.Millisecond
	m := NewManager(opts, nil, nil, testLogger())
	s := m.Create()

	m.Start(context.Background())
	defer m.Stop()

	assert.Eventually(t, func() bool {
		_, ok := m.Get(s.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m := NewManager(DefaultOptions(), nil, nil, testLogger())
	m.Start(context.Background())
	m.Stop()
	m.Stop()
}
