package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"escrowOracle/internal/model"
)

// IndexState is the persisted part of the store used for warm starts.
// Usernames are not persisted; they are cheap to refetch and may change.
type IndexState struct {
	LastIndexedBlock uint64            `json:"last_indexed_block"`
	Events           model.EventSet    `json:"events"`
	MarketQuestions  map[string]string `json:"market_questions"`
	UpdatedAt        string            `json:"updated_at,omitempty"`
}

// StateStore loads and saves IndexState. Save receives the full state and
// every event added since the last successful save.
type StateStore interface {
	Load(ctx context.Context) (IndexState, bool, error)
	Save(ctx context.Context, state IndexState, added []model.LifecycleEvent) error
}

// FileStateStore keeps IndexState in a single JSON file.
type FileStateStore struct {
	path string
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

func (f *FileStateStore) Load(_ context.Context) (IndexState, bool, error) {
	stat, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return IndexState{}, false, nil
		}
		return IndexState{}, false, fmt.Errorf("stat state file: %w", err)
	}
	if stat.IsDir() {
		return IndexState{}, false, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return IndexState{}, false, fmt.Errorf("read state file: %w", err)
	}

	var state IndexState
	if err := json.Unmarshal(data, &state); err != nil {
		return IndexState{}, false, fmt.Errorf("parse state file: %w", err)
	}
	return state, true, nil
}

// Save rewrites the whole file through a temp file and rename.
func (f *FileStateStore) Save(_ context.Context, state IndexState, _ []model.LifecycleEvent) error {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// StateDB is the persistence surface of postgres.Store used for warm starts.
type StateDB interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	LoadEvents(ctx context.Context) (model.EventSet, error)
	LoadMarketQuestions(ctx context.Context) (map[string]string, error)
	SaveIndexState(ctx context.Context, name string, lastBlock uint64, events []model.LifecycleEvent, questions map[string]string) error
}

// DBStateStore keeps IndexState in Postgres. Only unsaved events are
// written; existing rows are left untouched.
type DBStateStore struct {
	db   StateDB
	name string
}

func NewDBStateStore(db StateDB, name string) *DBStateStore {
	if name == "" {
		name = "escrow-indexer"
	}
	return &DBStateStore{db: db, name: name}
}

func (d *DBStateStore) Load(ctx context.Context) (IndexState, bool, error) {
	lastBlock, ok, err := d.db.LoadState(ctx, d.name)
	if err != nil || !ok {
		return IndexState{}, false, err
	}
	events, err := d.db.LoadEvents(ctx)
	if err != nil {
		return IndexState{}, false, err
	}
	questions, err := d.db.LoadMarketQuestions(ctx)
	if err != nil {
		return IndexState{}, false, err
	}
	return IndexState{
		LastIndexedBlock: lastBlock,
		Events:           events,
		MarketQuestions:  questions,
	}, true, nil
}

func (d *DBStateStore) Save(ctx context.Context, state IndexState, unsaved []model.LifecycleEvent) error {
	return d.db.SaveIndexState(ctx, d.name, state.LastIndexedBlock, unsaved, state.MarketQuestions)
}
