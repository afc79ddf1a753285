package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/store"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// ProfileInput carries the editable profile attributes. Nil fields are stored as unset.
type ProfileInput struct {
	Name   *string  `json:"name" validate:"omitempty,max=255"`
	Age    *int     `json:"age" validate:"omitempty,gte=1,lte=130"`
	Height *float64 `json:"height" validate:"omitempty,gt=0,lt=3"`
	Weight *float64 `json:"weight" validate:"omitempty,gt=0,lt=700"`
	Goal   *string  `json:"goal" validate:"omitempty,max=100"`
}

// UserService manages profiles in the local store and pushes changes to the mirror.
type UserService struct {
	store    *store.Store
	sync     *SyncService
	validate *validator.Validate
}

func NewUserService(st *store.Store, sync *SyncService) *UserService {
	return &UserService{store: st, sync: sync, validate: validator.New()}
}

// Validate checks the profile attributes against their allowed ranges.
func (s *UserService) Validate(in *ProfileInput) error {
	return s.validate.Struct(in)
}

// CreateUser stores a new profile. A non-empty password is kept only as a bcrypt hash.
// The mirror push is best-effort; its outcome is logged, never returned.
func (s *UserService) CreateUser(ctx context.Context, email, password string, in *ProfileInput) (*models.User, error) {
	if in == nil {
		in = &ProfileInput{}
	}
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	user := &models.User{Email: email}
	applyProfile(user, in)

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hash)
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	slog.Info("user created", "email", email, "action", "create_user")

	if report := s.sync.SyncUser(ctx, email); !report.OK() {
		slog.Warn("user created but not mirrored", "email", email, "error", report.Err())
	}
	return user, nil
}

// GetUser returns the local profile.
func (s *UserService) GetUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// UpdateUserProfile overwrites the profile attributes, recomputes BMI, then mirrors the
// profile. The local write is authoritative: a failed mirror push shows up only in the
// returned report.
func (s *UserService) UpdateUserProfile(ctx context.Context, email string, in *ProfileInput) (*models.User, *SyncReport, error) {
	if in == nil {
		in = &ProfileInput{}
	}
	if err := s.Validate(in); err != nil {
		return nil, nil, err
	}

	user := &models.User{Email: email}
	applyProfile(user, in)

	if err := s.store.UpdateUserProfile(ctx, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	report := s.sync.SyncUser(ctx, email)
	if !report.OK() {
		slog.Warn("profile updated but not mirrored", "email", email, "action", "update_profile", "error", report.Err())
	}

	updated, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, report, err
	}
	return updated, report, nil
}

func applyProfile(u *models.User, in *ProfileInput) {
	u.Name = in.Name
	u.Age = in.Age
	u.Height = in.Height
	u.Weight = in.Weight
	u.Goal = in.Goal
	u.BMI = models.ComputeBMI(in.Height, in.Weight)
}
