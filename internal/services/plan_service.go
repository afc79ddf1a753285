package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

var (
	ErrProfileIncomplete = errors.New("profile is missing height or weight")
	ErrInvalidPlan       = errors.New("plan must carry a calorie goal")
)

// PlanState is the cache state of one (email, date) key.
type PlanState int

const (
	PlanEmpty PlanState = iota
	PlanFetching
	PlanPopulated
)

func (s PlanState) String() string {
	switch s {
	case PlanFetching:
		return "fetching"
	case PlanPopulated:
		return "populated"
	default:
		return "empty"
	}
}

// PlanService owns the one-plan-per-(email, date) invariant. Reads never trigger
// generation; Replace is the only operation that writes plan rows.
type PlanService struct {
	store     *store.Store
	generator Generator
	locks     *keyLocks
	flight    singleflight.Group
	now       func() time.Time

	fetchMu  sync.Mutex
	fetching map[string]int
}

// NewPlanService creates a PlanService.
func NewPlanService(st *store.Store, generator Generator) *PlanService {
	return &PlanService{
		store:     st,
		generator: generator,
		locks:     newKeyLocks(),
		now:       time.Now,
		fetching:  make(map[string]int),
	}
}

func planKey(email, date string) string {
	return email + "|" + date
}

// Today returns the service's current local calendar date.
func (s *PlanService) Today() string {
	return s.now().Format(models.DateLayout)
}

// GetOrEmpty returns whatever is stored for the key. A miss is a plan with a nil Goal.
func (s *PlanService) GetOrEmpty(ctx context.Context, email, date string) (*models.DailyPlan, error) {
	unlock := s.locks.RLock(planKey(email, date))
	defer unlock()
	return s.store.PlanForDay(ctx, email, date)
}

// Replace swaps the stored plan for the key with a copy of plan re-tagged with the key.
// plan itself is not modified. On failure the key is left empty, never partially populated.
func (s *PlanService) Replace(ctx context.Context, email, date string, plan *models.DailyPlan) error {
	_, err := s.replace(ctx, email, date, plan)
	return err
}

// replace returns the rows it stored.
func (s *PlanService) replace(ctx context.Context, email, date string, plan *models.DailyPlan) (rows *models.DailyPlan, err error) {
	if plan == nil || plan.Goal == nil {
		return nil, ErrInvalidPlan
	}
	rows = plan.NewRowsFor(email, date)

	ctx, span := startSpan(ctx, "plan.Replace")
	span.SetAttributes(attribute.String("plan.date", date))
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		planReplaceTotal.WithLabelValues(result).Inc()
		endSpan(span, err)
	}()

	unlock := s.locks.Lock(planKey(email, date))
	defer unlock()

	if err := s.store.ReplacePlan(ctx, rows); err != nil {
		slog.Error("plan replace failed", "email", email, "date", date, "action", "replace", "error", err)
		if delErr := s.store.DeletePlan(context.WithoutCancel(ctx), email, date); delErr != nil {
			slog.Error("plan cleanup after failed replace failed", "email", email, "date", date, "action", "replace_cleanup", "error", delErr)
			return nil, errors.Join(err, delErr)
		}
		return nil, err
	}
	return rows, nil
}

// Regenerate generates a fresh plan for the profile and stores it under (email, date).
// Concurrent calls for the same key share one generation call. When generation fails the
// stored plan, if any, is left untouched.
func (s *PlanService) Regenerate(ctx context.Context, profile *models.User, date string) (*models.DailyPlan, error) {
	if profile == nil || !profile.IsComplete() {
		return nil, ErrProfileIncomplete
	}
	key := planKey(profile.Email, date)

	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		s.markFetching(key, 1)
		defer s.markFetching(key, -1)

		start := time.Now()
		plan, err := s.generator.Generate(ctx, GenerationRequestFromUser(profile), date)
		if err != nil {
			return nil, err
		}
		plan, err = s.replace(ctx, profile.Email, date, plan)
		if err != nil {
			return nil, err
		}
		slog.Info("plan regenerated",
			"email", profile.Email,
			"date", date,
			"fitness_items", len(plan.Fitness),
			"diet_items", len(plan.Diet),
			"latency_ms", float64(time.Since(start).Milliseconds()),
		)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("regenerate coalesced", "email", profile.Email, "date", date)
	}
	// Coalesced callers each get their own copy.
	return v.(*models.DailyPlan).Clone(), nil
}

// Ensure returns the stored plan for the key, generating one only on a miss. generated
// reports whether the generation service was called.
func (s *PlanService) Ensure(ctx context.Context, profile *models.User, date string) (plan *models.DailyPlan, generated bool, err error) {
	if profile == nil {
		return nil, false, ErrProfileIncomplete
	}
	plan, err = s.GetOrEmpty(ctx, profile.Email, date)
	if err != nil {
		return nil, false, err
	}
	if !plan.IsEmpty() {
		return plan, false, nil
	}
	plan, err = s.Regenerate(ctx, profile, date)
	if err != nil {
		return nil, true, err
	}
	return plan, true, nil
}

// State reports whether the key is empty, populated, or has a generation in flight.
func (s *PlanService) State(ctx context.Context, email, date string) (PlanState, error) {
	s.fetchMu.Lock()
	inFlight := s.fetching[planKey(email, date)] > 0
	s.fetchMu.Unlock()
	if inFlight {
		return PlanFetching, nil
	}

	plan, err := s.GetOrEmpty(ctx, email, date)
	if err != nil {
		return PlanEmpty, fmt.Errorf("read plan state: %w", err)
	}
	if plan.IsEmpty() {
		return PlanEmpty, nil
	}
	return PlanPopulated, nil
}

func (s *PlanService) markFetching(key string, delta int) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	s.fetching[key] += delta
	if s.fetching[key] <= 0 {
		delete(s.fetching, key)
	}
}
