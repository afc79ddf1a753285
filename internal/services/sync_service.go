package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/mirror"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ErrSyncFailure wraps every row that could not be pushed to the mirror.
var ErrSyncFailure = errors.New("sync failure")

const defaultSyncConcurrency = 8

// SyncFailure records one row (or a whole collection, when Key is empty) that failed.
type SyncFailure struct {
	Collection string `json:"collection"`
	Key        string `json:"key,omitempty"`
	Error      string `json:"error"`
	err        error
}

// SyncReport is the outcome of a sync pass. Failures never abort the pass.
type SyncReport struct {
	mu         sync.Mutex
	Synced     map[string]int `json:"synced"`
	Failures   []SyncFailure  `json:"failures"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func newSyncReport() *SyncReport {
	return &SyncReport{
		Synced:    make(map[string]int),
		Failures:  []SyncFailure{},
		StartedAt: time.Now().UTC(),
	}
}

func (r *SyncReport) success(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Synced[collection]++
}

func (r *SyncReport) fail(collection, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, SyncFailure{
		Collection: collection,
		Key:        key,
		Error:      err.Error(),
		err:        err,
	})
}

func (r *SyncReport) finish() *SyncReport {
	r.FinishedAt = time.Now().UTC()
	return r
}

// OK reports whether every row was pushed.
func (r *SyncReport) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures) == 0
}

// Total returns the number of rows pushed successfully.
func (r *SyncReport) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Synced {
		n += c
	}
	return n
}

// Err joins every failure, each wrapping ErrSyncFailure. Nil when the pass was clean.
func (r *SyncReport) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%w: %s/%s: %w", ErrSyncFailure, f.Collection, f.Key, f.err))
	}
	return errors.Join(errs...)
}

// SyncService pushes the local store to the remote mirror and serves profile lookups
// that fall back to the mirror.
type SyncService struct {
	store       *store.Store
	mirror      mirror.Mirror
	concurrency int
}

// NewSyncService creates a SyncService. concurrency bounds in-flight mirror upserts.
func NewSyncService(st *store.Store, m mirror.Mirror, concurrency int) *SyncService {
	if concurrency < 1 {
		concurrency = defaultSyncConcurrency
	}
	return &SyncService{store: st, mirror: m, concurrency: concurrency}
}

// SyncUser mirrors one profile. A profile missing locally is a no-op.
func (s *SyncService) SyncUser(ctx context.Context, email string) *SyncReport {
	report := newSyncReport()

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return report.finish()
	}
	if err != nil {
		slog.Error("sync user: local read failed", "email", email, "collection", mirror.CollectionUsers, "error", err)
		report.fail(mirror.CollectionUsers, email, err)
		return report.finish()
	}

	s.upsert(ctx, report, mirror.CollectionUsers, mirror.UserKey(user.Email), user)
	return report.finish()
}

// calorieGoalDocument is the mirrored goal row plus the item counts of its day. Item
// documents at or past a count are left over from an earlier, longer plan. A count of -1
// means the items could not be read in that pass.
type calorieGoalDocument struct {
	*models.CalorieGoal
	FitnessItems int `json:"fitness_items"`
	DietItems    int `json:"diet_items"`
}

// SyncAll pushes every user, calorie goal, fitness item and diet item. Rows are upserted
// concurrently; a failing row or collection never stops the others.
func (s *SyncService) SyncAll(ctx context.Context) *SyncReport {
	ctx, span := startSpan(ctx, "sync.SyncAll")
	report := newSyncReport()

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	if users, err := s.store.ListUsers(ctx); err != nil {
		s.collectionFailed(report, mirror.CollectionUsers, err)
	} else {
		for i := range users {
			u := &users[i]
			s.schedule(ctx, g, report, mirror.CollectionUsers, mirror.UserKey(u.Email), u)
		}
	}

	fitness, fitnessErr := s.store.ListFitnessItems(ctx)
	diet, dietErr := s.store.ListDietItems(ctx)

	if goals, err := s.store.ListCalorieGoals(ctx); err != nil {
		s.collectionFailed(report, mirror.CollectionCalorieGoals, err)
	} else {
		fitnessCounts, dietCounts := make(map[string]int), make(map[string]int)
		for _, it := range fitness {
			fitnessCounts[planKey(it.Email, it.Date)]++
		}
		for _, it := range diet {
			dietCounts[planKey(it.Email, it.Date)]++
		}
		for i := range goals {
			goal := &goals[i]
			key := planKey(goal.Email, goal.Date)
			d := &calorieGoalDocument{CalorieGoal: goal, FitnessItems: -1, DietItems: -1}
			if fitnessErr == nil {
				d.FitnessItems = fitnessCounts[key]
			}
			if dietErr == nil {
				d.DietItems = dietCounts[key]
			}
			s.schedule(ctx, g, report, mirror.CollectionCalorieGoals, mirror.CalorieGoalKey(goal.Email, goal.Date), d)
		}
	}

	if fitnessErr != nil {
		s.collectionFailed(report, mirror.CollectionFitnessPlans, fitnessErr)
	} else {
		for i := range fitness {
			it := &fitness[i]
			s.schedule(ctx, g, report, mirror.CollectionFitnessPlans, mirror.ItemKey(it.Email, it.Date, it.Position), it)
		}
	}

	if dietErr != nil {
		s.collectionFailed(report, mirror.CollectionDietPlans, dietErr)
	} else {
		for i := range diet {
			it := &diet[i]
			s.schedule(ctx, g, report, mirror.CollectionDietPlans, mirror.ItemKey(it.Email, it.Date, it.Position), it)
		}
	}

	_ = g.Wait()
	report.finish()

	span.SetAttributes(
		attribute.Int("sync.synced", report.Total()),
		attribute.Int("sync.failures", len(report.Failures)),
	)
	endSpan(span, report.Err())

	slog.Info("sync pass finished",
		"action", "sync_all",
		"synced", report.Total(),
		"failures", len(report.Failures),
		"latency_ms", float64(report.FinishedAt.Sub(report.StartedAt).Milliseconds()),
	)
	return report
}

// Where a looked-up profile came from.
const (
	SourceLocal  = "local"
	SourceMirror = "mirror"
)

// GetUserByEmail reads the local profile and falls back to the mirror on a local miss.
// A mirror hit is returned as-is and not written back. A miss in both returns (nil, nil).
func (s *SyncService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, _, err := s.LookupUser(ctx, email)
	return user, err
}

// LookupUser is GetUserByEmail that also reports which side answered.
func (s *SyncService) LookupUser(ctx context.Context, email string) (*models.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, SourceLocal, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, "", err
	}

	var remote models.User
	found, err := s.mirror.Get(ctx, mirror.CollectionUsers, mirror.UserKey(email), &remote)
	if err != nil {
		slog.Warn("mirror lookup failed", "email", email, "collection", mirror.CollectionUsers, "error", err)
		return nil, "", nil
	}
	if !found {
		return nil, "", nil
	}
	return &remote, SourceMirror, nil
}

func (s *SyncService) schedule(ctx context.Context, g *errgroup.Group, report *SyncReport, collection, key string, value any) {
	g.Go(func() error {
		s.upsert(ctx, report, collection, key, value)
		return nil
	})
}

func (s *SyncService) upsert(ctx context.Context, report *SyncReport, collection, key string, value any) {
	if err := s.mirror.Upsert(ctx, collection, key, value); err != nil {
		slog.Warn("mirror upsert failed", "collection", collection, "key", key, "error", err)
		syncRowsTotal.WithLabelValues(collection, "error").Inc()
		report.fail(collection, key, err)
		return
	}
	syncRowsTotal.WithLabelValues(collection, "ok").Inc()
	report.success(collection)
}

func (s *SyncService) collectionFailed(report *SyncReport, collection string, err error) {
	slog.Error("sync: local read failed", "collection", collection, "action", "sync_all", "error", err)
	report.fail(collection, "", err)
}

// StartPeriodicSync runs SyncAll on a ticker until done is closed.
func StartPeriodicSync(svc *SyncService, interval time.Duration, done chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				report := svc.SyncAll(ctx)
				cancel()
				if !report.OK() {
					slog.Error("periodic sync finished with failures", "action", "sync_all", "failures", len(report.Failures), "error", report.Err())
				}
			case <-done:
				return
			}
		}
	}()
}
