package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/parish-explorer/internal/utils"
)

// DefaultSession is used by the CLI when no session id is given.
const DefaultSession = "default"

// ErrInvalidSession is returned for session ids unusable as storage keys.
var ErrInvalidSession = errors.New("invalid session id")

// Store keeps the committed parish selection per session. Load returns nil
// when nothing was committed. Saving an empty list clears the selection.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]string, error)
	Save(ctx context.Context, sessionID string, parishes []string) error
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string { return uuid.NewString() }

// Commit persists res.Commit when the resolution carried an Apply.
func Commit(ctx context.Context, s Store, sessionID string, res *Resolution) error {
	if res == nil || res.Commit == nil {
		return nil
	}
	return s.Save(ctx, sessionID, res.Commit)
}

func checkSession(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !utils.ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return id, nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string][]string{}}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]string, error) {
	id, err := checkSession(sessionID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), v...), nil
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, parishes []string) error {
	id, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(parishes) == 0 {
		delete(m.byID, id)
		return nil
	}
	m.byID[id] = append([]string(nil), parishes...)
	return nil
}

// FileStore keeps one JSON document per session under Dir. Loads and saves
// through one FileStore are serialized.
type FileStore struct {
	Dir string

	mu sync.RWMutex
}

type sessionFile struct {
	Session   string    `json:"session"`
	Parishes  []string  `json:"parishes"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (f *FileStore) path(id string) string { return filepath.Join(f.Dir, id+".json") }

func (f *FileStore) Load(_ context.Context, sessionID string) ([]string, error) {
	id, err := checkSession(sessionID)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	b, err := os.ReadFile(f.path(id))
	f.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sf sessionFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sf.Parishes, nil
}

func (f *FileStore) Save(_ context.Context, sessionID string, parishes []string) error {
	id, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	var b []byte
	if len(parishes) > 0 {
		b, err = utils.PrettyJSON(sessionFile{Session: id, Parishes: parishes, UpdatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b == nil {
		if err := os.Remove(f.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	}
	return utils.SafeWriteFile(f.path(id), b)
}
