// Package store is the local, authoritative store for user profiles and daily plans.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrStorage wraps every other local read/write failure.
	ErrStorage = errors.New("storage failure")
	// ErrEmailTaken is returned when creating a profile whose email already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// Store wraps the GORM handle for the four plan collections.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	var existing models.User
	err := s.db.WithContext(ctx).Scopes(ForEmail(user.Email)).First(&existing).Error
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return storageErr("lookup user", err)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return storageErr("create user", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Scopes(ForEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get user", err)
	}
	return &user, nil
}

// UpdateUserProfile overwrites the profile attributes of the user identified by u.Email.
func (s *Store) UpdateUserProfile(ctx context.Context, u *models.User) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Scopes(ForEmail(u.Email)).
		Updates(map[string]interface{}{
			"name":   u.Name,
			"age":    u.Age,
			"height": u.Height,
			"weight": u.Weight,
			"goal":   u.Goal,
			"bmi":    u.BMI,
		})
	if result.Error != nil {
		return storageErr("update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("email").Find(&users).Error; err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}

// --- Plans ---

// PlanForDay reads the calorie goal and both item lists for a key inside one read
// transaction. A missing goal yields a plan with a nil Goal.
func (s *Store) PlanForDay(ctx context.Context, email, date string) (*models.DailyPlan, error) {
	plan := &models.DailyPlan{Email: email, Date: date}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var goals []models.CalorieGoal
		if err := tx.Scopes(ForDay(email, date)).Order("created_at DESC").Limit(1).Find(&goals).Error; err != nil {
			return err
		}
		if len(goals) > 0 {
			plan.Goal = &goals[0]
		}
		if err := tx.Scopes(ForDay(email, date)).Order("position").Find(&plan.Fitness).Error; err != nil {
			return err
		}
		return tx.Scopes(ForDay(email, date)).Order("position").Find(&plan.Diet).Error
	}, s.readTxOptions()...)
	if err != nil {
		return nil, storageErr("read plan", err)
	}
	return plan, nil
}

// ReplacePlan deletes every row for the plan's key and inserts the new rows in one
// transaction.
func (s *Store) ReplacePlan(ctx context.Context, plan *models.DailyPlan) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteDay(tx, plan.Email, plan.Date); err != nil {
			return err
		}
		if plan.Goal != nil {
			if err := tx.Create(plan.Goal).Error; err != nil {
				return fmt.Errorf("insert calorie goal: %w", err)
			}
		}
		if len(plan.Fitness) > 0 {
			if err := tx.Create(&plan.Fitness).Error; err != nil {
				return fmt.Errorf("insert fitness items: %w", err)
			}
		}
		if len(plan.Diet) > 0 {
			if err := tx.Create(&plan.Diet).Error; err != nil {
				return fmt.Errorf("insert diet items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("replace plan", err)
	}
	return nil
}

// DeletePlan removes every row for (email, date).
func (s *Store) DeletePlan(ctx context.Context, email, date string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteDay(tx, email, date)
	})
	if err != nil {
		return storageErr("delete plan", err)
	}
	return nil
}

func deleteDay(tx *gorm.DB, email, date string) error {
	if err := tx.Scopes(ForDay(email, date)).Delete(&models.CalorieGoal{}).Error; err != nil {
		return fmt.Errorf("delete calorie goal: %w", err)
	}
	if err := tx.Scopes(ForDay(email, date)).Delete(&models.FitnessPlanItem{}).Error; err != nil {
		return fmt.Errorf("delete fitness items: %w", err)
	}
	if err := tx.Scopes(ForDay(email, date)).Delete(&models.DietPlanItem{}).Error; err != nil {
		return fmt.Errorf("delete diet items: %w", err)
	}
	return nil
}

func (s *Store) ListCalorieGoals(ctx context.Context) ([]models.CalorieGoal, error) {
	var goals []models.CalorieGoal
	if err := s.db.WithContext(ctx).Order("email, date").Find(&goals).Error; err != nil {
		return nil, storageErr("list calorie goals", err)
	}
	return goals, nil
}

func (s *Store) ListFitnessItems(ctx context.Context) ([]models.FitnessPlanItem, error) {
	var items []models.FitnessPlanItem
	if err := s.db.WithContext(ctx).Order("email, date, position").Find(&items).Error; err != nil {
		return nil, storageErr("list fitness items", err)
	}
	return items, nil
}

func (s *Store) ListDietItems(ctx context.Context) ([]models.DietPlanItem, error) {
	var items []models.DietPlanItem
	if err := s.db.WithContext(ctx).Order("email, date, position").Find(&items).Error; err != nil {
		return nil, storageErr("list diet items", err)
	}
	return items, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storageErr("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// readTxOptions pins plan reads to one snapshot on PostgreSQL. SQLite transactions are
// already serializable.
func (s *Store) readTxOptions() []*sql.TxOptions {
	if s.db.Dialector.Name() == "postgres" {
		return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
	}
	return nil
}
