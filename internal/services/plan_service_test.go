package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testEmail = "a@b.com"
	testDate  = "2024-05-01"
)

func newTestPlanService(t *testing.T) (*PlanService, *fakeGenerator, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	gen := &fakeGenerator{}
	svc := NewPlanService(st, gen)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return svc, gen, st
}

func requirePlanMarker(t *testing.T, plan *models.DailyPlan, marker int) {
	t.Helper()
	require.False(t, plan.IsEmpty())
	assert.Equal(t, float64(marker), plan.Goal.Intake)
	want := fmt.Sprintf("plan-%d", marker)
	require.Len(t, plan.Fitness, 2)
	require.Len(t, plan.Diet, 2)
	for _, it := range plan.Fitness {
		assert.Equal(t, want, it.Content)
	}
	for _, it := range plan.Diet {
		assert.Equal(t, want, it.Content)
	}
}

func TestPlanService_Today(t *testing.T) {
	svc, _, _ := newTestPlanService(t)
	assert.Equal(t, "2024-05-01", svc.Today())
}

func TestPlanService_GetOrEmptyMissDoesNotGenerate(t *testing.T) {
	svc, gen, _ := newTestPlanService(t)

	plan, err := svc.GetOrEmpty(context.Background(), testEmail, testDate)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
	assert.Empty(t, plan.Fitness)
	assert.Empty(t, plan.Diet)
	assert.Equal(t, 0, gen.Calls())
}

func TestPlanService_ReplaceThenGet(t *testing.T) {
	ctx := context.Background()
	svc, gen, _ := newTestPlanService(t)

	require.NoError(t, svc.Replace(ctx, testEmail, testDate, samplePlan(1)))

	plan, err := svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	requirePlanMarker(t, plan, 1)
	assert.Equal(t, testEmail, plan.Goal.Email)
	for i, it := range plan.Diet {
		assert.Equal(t, testEmail, it.Email)
		assert.Equal(t, testDate, it.Date)
		assert.Equal(t, i, it.Position)
	}

	// A second read is still a cache hit.
	_, err = svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	assert.Equal(t, 0, gen.Calls())
}

func TestPlanService_ReplaceOverwritesWholePlan(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newTestPlanService(t)

	require.NoError(t, svc.Replace(ctx, testEmail, testDate, samplePlan(1)))
	second := samplePlan(2)
	second.Diet = second.Diet[:1]
	second.Diet = append(second.Diet, models.DietPlanItem{Type: "dinner", Content: "plan-2", Calories: 500})
	require.NoError(t, svc.Replace(ctx, testEmail, testDate, second))

	plan, err := svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	requirePlanMarker(t, plan, 2)
	assert.Equal(t, "dinner", plan.Diet[1].Type)

	goals, err := st.ListCalorieGoals(ctx)
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}

func TestPlanService_ReplaceRetagsRows(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestPlanService(t)

	plan := samplePlan(3)
	plan.Stamp("other@b.com", "1999-01-01")
	require.NoError(t, svc.Replace(ctx, testEmail, testDate, plan))

	got, err := svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	requirePlanMarker(t, got, 3)

	other, err := svc.GetOrEmpty(ctx, "other@b.com", "1999-01-01")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
}

func TestPlanService_ReplaceRejectsPlanWithoutGoal(t *testing.T) {
	svc, _, _ := newTestPlanService(t)

	err := svc.Replace(context.Background(), testEmail, testDate, &models.DailyPlan{})
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.ErrorIs(t, svc.Replace(context.Background(), testEmail, testDate, nil), ErrInvalidPlan)
}

func TestPlanService_ReplaceWithStoredPlanFromAnotherDay(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestPlanService(t)

	require.NoError(t, svc.Replace(ctx, testEmail, "2024-01-01", samplePlan(1)))
	require.NoError(t, svc.Replace(ctx, testEmail, "2024-01-02", samplePlan(2)))

	src, err := svc.GetOrEmpty(ctx, testEmail, "2024-01-01")
	require.NoError(t, err)
	require.NoError(t, svc.Replace(ctx, testEmail, "2024-01-02", src))

	copied, err := svc.GetOrEmpty(ctx, testEmail, "2024-01-02")
	require.NoError(t, err)
	requirePlanMarker(t, copied, 1)
	assert.NotEqual(t, src.Goal.ID, copied.Goal.ID)
	assert.Equal(t, "2024-01-02", copied.Goal.Date)

	original, err := svc.GetOrEmpty(ctx, testEmail, "2024-01-01")
	require.NoError(t, err)
	requirePlanMarker(t, original, 1)
	assert.Equal(t, src.Goal.ID, original.Goal.ID)
}

func TestPlanService_ReplaceDoesNotModifyArgument(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestPlanService(t)

	plan := samplePlan(4)
	plan.Stamp("other@b.com", "1999-01-01")
	require.NoError(t, svc.Replace(ctx, testEmail, testDate, plan))

	assert.Equal(t, "other@b.com", plan.Email)
	assert.Equal(t, "1999-01-01", plan.Goal.Date)
	assert.Equal(t, uuid.Nil, plan.Goal.ID)
	for _, it := range plan.Fitness {
		assert.Equal(t, "other@b.com", it.Email)
		assert.Equal(t, uuid.Nil, it.ID)
	}
}

func TestPlanService_FailedReplaceLeavesEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newTestPlanService(t)

	require.NoError(t, svc.Replace(ctx, testEmail, testDate, samplePlan(1)))

	var failDiet atomic.Bool
	require.NoError(t, st.DB().Callback().Create().Before("gorm:create").Register("test:fail_diet", func(tx *gorm.DB) {
		if failDiet.Load() && tx.Statement.Schema != nil && tx.Statement.Schema.Table == "diet_plan_items" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))
	failDiet.Store(true)

	err := svc.Replace(ctx, testEmail, testDate, samplePlan(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorage)

	plan, err := svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
	assert.Empty(t, plan.Fitness)
	assert.Empty(t, plan.Diet)

	failDiet.Store(false)
	require.NoError(t, svc.Replace(ctx, testEmail, testDate, samplePlan(3)))
	plan, err = svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	requirePlanMarker(t, plan, 3)
}

func TestPlanService_ConcurrentReplaceAndReadNeverMix(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestPlanService(t)

	var wg sync.WaitGroup
	for w := 1; w <= 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				assert.NoError(t, svc.Replace(ctx, testEmail, testDate, samplePlan(w*100+i)))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				plan, err := svc.GetOrEmpty(ctx, testEmail, testDate)
				if !assert.NoError(t, err) || plan.IsEmpty() {
					continue
				}
				want := fmt.Sprintf("plan-%d", int(plan.Goal.Intake))
				assert.Len(t, plan.Fitness, 2)
				assert.Len(t, plan.Diet, 2)
				for _, it := range plan.Fitness {
					assert.Equal(t, want, it.Content)
				}
				for _, it := range plan.Diet {
					assert.Equal(t, want, it.Content)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, svc.locks.size())
}

func TestPlanService_RegenerateStoresGeneratedPlan(t *testing.T) {
	ctx := context.Background()
	svc, gen, _ := newTestPlanService(t)

	plan, err := svc.Regenerate(ctx, completeUser(testEmail), testDate)
	require.NoError(t, err)
	requirePlanMarker(t, plan, 1001)
	assert.Equal(t, 1, gen.Calls())

	stored, err := svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	requirePlanMarker(t, stored, 1001)
}

func TestPlanService_RegenerateRequiresCompleteProfile(t *testing.T) {
	svc, gen, _ := newTestPlanService(t)

	_, err := svc.Regenerate(context.Background(), &models.User{Email: testEmail, Height: ptr(1.8)}, testDate)
	assert.ErrorIs(t, err, ErrProfileIncomplete)
	_, err = svc.Regenerate(context.Background(), nil, testDate)
	assert.ErrorIs(t, err, ErrProfileIncomplete)
	assert.Equal(t, 0, gen.Calls())
}

func TestPlanService_FailedRegenerateKeepsStoredPlan(t *testing.T) {
	ctx := context.Background()
	svc, gen, _ := newTestPlanService(t)
	require.NoError(t, svc.Replace(ctx, testEmail, testDate, samplePlan(7)))

	gen.err = unavailable(errors.New("connection refused"))
	_, err := svc.Regenerate(ctx, completeUser(testEmail), testDate)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	plan, err := svc.GetOrEmpty(ctx, testEmail, testDate)
	require.NoError(t, err)
	requirePlanMarker(t, plan, 7)
}

func TestPlanService_EnsureGeneratesOnlyOnMiss(t *testing.T) {
	ctx := context.Background()
	svc, gen, _ := newTestPlanService(t)
	user := completeUser(testEmail)

	plan, generated, err := svc.Ensure(ctx, user, testDate)
	require.NoError(t, err)
	assert.True(t, generated)
	requirePlanMarker(t, plan, 1001)

	plan, generated, err = svc.Ensure(ctx, user, testDate)
	require.NoError(t, err)
	assert.False(t, generated)
	requirePlanMarker(t, plan, 1001)
	assert.Equal(t, 1, gen.Calls())
}

func TestPlanService_ConcurrentRegenerateCoalesces(t *testing.T) {
	ctx := context.Background()
	svc, gen, _ := newTestPlanService(t)
	gen.started = make(chan struct{}, 1)
	gen.release = make(chan struct{})
	user := completeUser(testEmail)

	const callers = 5
	var ready, done sync.WaitGroup
	results := make([]*models.DailyPlan, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		ready.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			ready.Done()
			results[i], errs[i] = svc.Regenerate(ctx, user, testDate)
		}(i)
	}

	ready.Wait()
	<-gen.started
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	done.Wait()

	assert.Equal(t, 1, gen.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		requirePlanMarker(t, results[i], 1001)
		assert.NotEqual(t, uuid.Nil, results[i].Goal.ID)
	}

	// Each caller owns its copy.
	results[0].Fitness[0].Content = "edited"
	for i := 1; i < callers; i++ {
		assert.Equal(t, "plan-1001", results[i].Fitness[0].Content)
	}
}

func TestPlanService_State(t *testing.T) {
	ctx := context.Background()
	svc, gen, _ := newTestPlanService(t)
	gen.started = make(chan struct{}, 1)
	gen.release = make(chan struct{})

	state, err := svc.State(ctx, testEmail, testDate)
	require.NoError(t, err)
	assert.Equal(t, PlanEmpty, state)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Regenerate(ctx, completeUser(testEmail), testDate)
		errCh <- err
	}()
	<-gen.started

	state, err = svc.State(ctx, testEmail, testDate)
	require.NoError(t, err)
	assert.Equal(t, PlanFetching, state)
	assert.Equal(t, "fetching", state.String())

	close(gen.release)
	require.NoError(t, <-errCh)

	state, err = svc.State(ctx, testEmail, testDate)
	require.NoError(t, err)
	assert.Equal(t, PlanPopulated, state)
}

func TestPlanService_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestPlanService(t)

	require.NoError(t, svc.Replace(ctx, testEmail, "2024-05-01", samplePlan(1)))
	require.NoError(t, svc.Replace(ctx, testEmail, "2024-05-02", samplePlan(2)))
	require.NoError(t, svc.Replace(ctx, "c@d.com", "2024-05-01", samplePlan(3)))

	for _, tc := range []struct {
		email, date string
		marker      int
	}{
		{testEmail, "2024-05-01", 1},
		{testEmail, "2024-05-02", 2},
		{"c@d.com", "2024-05-01", 3},
	} {
		plan, err := svc.GetOrEmpty(ctx, tc.email, tc.date)
		require.NoError(t, err)
		requirePlanMarker(t, plan, tc.marker)
	}
}
