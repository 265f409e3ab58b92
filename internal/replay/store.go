package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lendingScope/internal/state"
	"lendingScope/internal/storage/postgres"
)

// Snapshot is a serialized state valid through LastBlock.
type Snapshot struct {
	RunID     uuid.UUID       `json:"run_id"`
	Protocol  string          `json:"protocol"`
	LastBlock int64           `json:"last_block"`
	SavedAt   time.Time       `json:"saved_at"`
	State     json.RawMessage `json:"state"`
}

// NewSnapshot serializes st as processed through lastBlock.
func NewSnapshot(runID uuid.UUID, st *state.State, lastBlock int64) (Snapshot, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal state: %w", err)
	}
	return Snapshot{
		RunID:     runID,
		Protocol:  st.Protocol,
		LastBlock: lastBlock,
		SavedAt:   time.Now().UTC(),
		State:     data,
	}, nil
}

// Decode restores the state and binds it to reg.
func (s Snapshot) Decode(reg state.Registries) (*state.State, error) {
	if len(s.State) == 0 {
		return nil, fmt.Errorf("snapshot %s: empty state", s.RunID)
	}
	return state.Decode(s.State, reg)
}

// StateStore persists replay snapshots.
type StateStore interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snap Snapshot) error
}

// FileStateStore stores the snapshot in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (Snapshot, bool, error) {
	if s == nil || s.Path == "" {
		return Snapshot{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("read state: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("parse state: %w", err)
	}
	return snap, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// DBStateStore stores the snapshot in the replay_state table under Name.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (Snapshot, bool, error) {
	if s == nil || s.Store == nil {
		return Snapshot{}, false, nil
	}
	row, ok, err := s.Store.LoadSnapshot(ctx, s.Name)
	if err != nil || !ok {
		return Snapshot{}, ok, err
	}
	return Snapshot{
		RunID:     row.RunID,
		Protocol:  row.Protocol,
		LastBlock: row.LastBlock,
		SavedAt:   row.SavedAt,
		State:     row.State,
	}, true, nil
}

func (s *DBStateStore) Save(ctx context.Context, snap Snapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(ctx, postgres.Snapshot{
		Name:      s.Name,
		RunID:     snap.RunID,
		Protocol:  snap.Protocol,
		LastBlock: snap.LastBlock,
		SavedAt:   snap.SavedAt,
		State:     snap.State,
	})
}
