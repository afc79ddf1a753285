// Package mirror implements the remote document store that replicates the local store
// for cross-device durability.
//
// Documents are addressed by (collection, key) and stored as JSON. Every write is an
// upsert, so replaying the same document is idempotent.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/database"
	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
)

// Collection names shared with every other client of the mirror.
const (
	CollectionUsers        = "users"
	CollectionFitnessPlans = "fitness_plans"
	CollectionDietPlans    = "diet_plans"
	CollectionCalorieGoals = "daily_calorie_goals"
)

const (
	BackendBadger = "badger"
	BackendGCS    = "gcs"
	BackendSQL    = "sql"
)

// ErrMirror wraps every failure to reach or use the remote store.
var ErrMirror = errors.New("mirror failure")

// Mirror is a keyed document store.
type Mirror interface {
	// Upsert inserts or overwrites the document at (collection, key).
	Upsert(ctx context.Context, collection, key string, value any) error
	// Get decodes the document at (collection, key) into dst. found is false when the
	// document does not exist; that is not an error.
	Get(ctx context.Context, collection, key string, dst any) (found bool, err error)
	Close() error
}

// UserKey is the document key of a user profile.
func UserKey(email string) string {
	return email
}

// CalorieGoalKey is the document key of the single calorie goal of a user-day.
func CalorieGoalKey(email, date string) string {
	return email + "_" + date
}

// ItemKey is the document key of one fitness or diet item. The position keeps items of
// the same user-day from overwriting each other.
func ItemKey(email, date string, position int) string {
	return fmt.Sprintf("%s_%s_%d", email, date, position)
}

func mirrorErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMirror, op, err)
}

// Open builds the backend selected by cfg.MirrorBackend, wrapped with metrics and the
// configured write rate limit.
func Open(ctx context.Context, cfg *config.Config) (Mirror, error) {
	var (
		m   Mirror
		err error
	)
	switch cfg.MirrorBackend {
	case BackendBadger:
		m, err = NewBadgerMirror(BadgerConfig{Path: cfg.MirrorBadgerPath, SyncWrites: true})
	case BackendGCS:
		m, err = NewGCSMirror(ctx, cfg.MirrorGCSBucket, cfg.MirrorGCSCredentials)
	case BackendSQL:
		if cfg.MirrorSQLDSN == "" {
			return nil, errors.New("MIRROR_SQL_DSN is required for the sql mirror backend")
		}
		db, openErr := database.Open(postgres.Open(cfg.MirrorSQLDSN))
		if openErr != nil {
			return nil, openErr
		}
		m, err = NewSQLMirror(db)
	default:
		return nil, fmt.Errorf("unsupported MIRROR_BACKEND %q", cfg.MirrorBackend)
	}
	if err != nil {
		return nil, err
	}

	m = WithMetrics(m, cfg.MirrorBackend)
	if cfg.MirrorRateLimit > 0 {
		m = WithRateLimit(m, rate.Limit(cfg.MirrorRateLimit), cfg.MirrorBurst)
	}
	return m, nil
}

// defaultOpTimeout bounds a single remote call when the caller's context has no deadline.
const defaultOpTimeout = 15 * time.Second

func withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultOpTimeout)
}
