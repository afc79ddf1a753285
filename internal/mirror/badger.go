package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for an embedded BadgerDB mirror.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger

	// GCInterval is how often value log garbage collection runs. Zero disables it.
	GCInterval time.Duration
}

// InMemoryBadgerConfig returns a configuration suited to tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerMirror stores documents in an embedded BadgerDB under "collection/key".
type BadgerMirror struct {
	db   *badger.DB
	done chan struct{}
}

func NewBadgerMirror(cfg BadgerConfig) (*BadgerMirror, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger mirror: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create mirror directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger mirror: %w", err)
	}

	m := &BadgerMirror{db: db, done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go m.gcLoop(cfg.GCInterval)
	}
	return m, nil
}

func badgerKey(collection, key string) []byte {
	return []byte(collection + "/" + key)
}

func (m *BadgerMirror) Upsert(ctx context.Context, collection, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return mirrorErr("upsert", err)
	}
	body, err := json.Marshal(value)
	if err != nil {
		return mirrorErr("encode document", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(collection, key), body)
	})
	if err != nil {
		return mirrorErr("upsert", err)
	}
	return nil
}

func (m *BadgerMirror) Get(ctx context.Context, collection, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, mirrorErr("get", err)
	}
	var body []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(collection, key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, mirrorErr("get", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, mirrorErr("decode document", err)
	}
	return true, nil
}

// Count returns the number of documents in a collection.
func (m *BadgerMirror) Count(collection string) (int, error) {
	n := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(collection + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (m *BadgerMirror) Close() error {
	close(m.done)
	return m.db.Close()
}

func (m *BadgerMirror) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for m.db.RunValueLogGC(0.5) == nil {
			}
		case <-m.done:
			return
		}
	}
}
