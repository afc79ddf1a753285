package logging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func TestDBHandler_StoresErrorsOnly(t *testing.T) {
	db := newTestDB(t)
	h := newDBHandler(db, time.Hour)
	logger := slog.New(h).With("email", "a@b.com")

	logger.Info("plan regenerated", "date", "2024-05-01")
	logger.Error("mirror upsert failed",
		"collection", "diet_plans",
		"action", "sync_all",
		"error", errors.New("deadline exceeded"),
		"latency_ms", 12.6,
		"key", "a@b.com_2024-05-01_0",
	)
	h.Stop()
	h.Stop()

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "mirror upsert failed", entry.Message)
	require.NotNil(t, entry.Email)
	assert.Equal(t, "a@b.com", *entry.Email)
	assert.Equal(t, "diet_plans", entry.Collection)
	assert.Equal(t, "sync_all", entry.Action)
	assert.Equal(t, "deadline exceeded", entry.Error)
	assert.Equal(t, 13, entry.LatencyMs)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(entry.Extra, &extra))
	assert.Equal(t, "a@b.com_2024-05-01_0", extra["key"])
}

func TestMultiHandler_FansOut(t *testing.T) {
	db := newTestDB(t)
	dbHandler := newDBHandler(db, time.Hour)
	rec := &recordingHandler{}
	logger := slog.New(NewMultiHandler(rec, dbHandler))

	logger.Warn("slow mirror")
	logger.Error("replace failed")
	dbHandler.Stop()

	assert.Equal(t, []string{"slow mirror", "replace failed"}, rec.messages)
	var n int64
	require.NoError(t, db.Model(&models.SystemLog{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestPurgeBefore(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.Create(&[]models.SystemLog{
		{ID: uuid.New(), Timestamp: now.AddDate(0, 0, -45), Level: "ERROR", Message: "old"},
		{ID: uuid.New(), Timestamp: now.AddDate(0, 0, -1), Level: "ERROR", Message: "recent"},
	}).Error)

	deleted, err := PurgeBefore(db, now.Add(-logRetention))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var left []models.SystemLog
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "recent", left[0].Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

type recordingHandler struct {
	messages []string
}

func (r *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (r *recordingHandler) Handle(_ context.Context, rec slog.Record) error {
	r.messages = append(r.messages, rec.Message)
	return nil
}

func (r *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recordingHandler) WithGroup(string) slog.Handler      { return r }
