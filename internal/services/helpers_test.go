package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/mirror"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "fitplan.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return store.New(db)
}

func ptr[T any](v T) *T {
	return &v
}

func completeUser(email string) *models.User {
	return &models.User{
		Email:  email,
		Age:    ptr(30),
		Weight: ptr(70.0),
		Height: ptr(1.75),
		Goal:   ptr(models.GoalLoseWeight),
	}
}

// samplePlan builds a plan whose every row carries marker, so readers can tell plans apart.
func samplePlan(marker int) *models.DailyPlan {
	content := fmt.Sprintf("plan-%d", marker)
	return &models.DailyPlan{
		Goal: &models.CalorieGoal{Intake: float64(marker), Burn: 400},
		Fitness: []models.FitnessPlanItem{
			{Type: "warmup", Content: content, Calories: 50},
			{Type: "cardio", Content: content, Calories: 300},
		},
		Diet: []models.DietPlanItem{
			{Type: "breakfast", Content: content, Calories: 400},
			{Type: "lunch", Content: content, Calories: 650},
		},
	}
}

// fakeGenerator counts calls. When release is set, Generate blocks until it is closed.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	err     error
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerationRequest, date string) (*models.DailyPlan, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	err := g.err
	g.mu.Unlock()

	if g.started != nil {
		select {
		case g.started <- struct{}{}:
		default:
		}
	}
	if g.release != nil {
		<-g.release
	}
	if err != nil {
		return nil, err
	}
	plan := samplePlan(1000 + n)
	plan.Stamp(req.Email, date)
	return plan, nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

var errRemoteDown = errors.New("remote unavailable")

// fakeMirror keeps JSON documents in memory and fails upserts for the keys in failKeys.
type fakeMirror struct {
	mu       sync.Mutex
	docs     map[string][]byte
	upserts  int
	failKeys map[string]bool
	getErr   error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{docs: make(map[string][]byte), failKeys: make(map[string]bool)}
}

func docID(collection, key string) string {
	return collection + "/" + key
}

func (m *fakeMirror) Upsert(ctx context.Context, collection, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failKeys[docID(collection, key)] {
		return fmt.Errorf("%w: upsert: %w", mirror.ErrMirror, errRemoteDown)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.docs[docID(collection, key)] = b
	m.upserts++
	return nil
}

func (m *fakeMirror) Get(ctx context.Context, collection, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, m.getErr
	}
	b, ok := m.docs[docID(collection, key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *fakeMirror) Close() error {
	return nil
}

func (m *fakeMirror) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func (m *fakeMirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *fakeMirror) Raw(collection, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[docID(collection, key)]
	return b, ok
}
