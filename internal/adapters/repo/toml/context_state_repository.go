package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bnema/openclaw-memory/internal/adapters/atomicfile"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	StateDirKey   = "state.dir"
	stateFileMode = 0o600
	stateFileExt  = ".toml"
)

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

// ContextStateRepository stores one file per session so concurrent polls of
// different sessions never rewrite a shared file.
type ContextStateRepository struct {
	dir string
}

var _ ports.ContextStateRepository = (*ContextStateRepository)(nil)

func NewContextStateRepository(cfg *viper.Viper) (*ContextStateRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	dir := cfg.GetString(StateDirKey)
	if dir == "" {
		return nil, errors.New("context state directory is empty")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve context state directory: %w", err)
	}

	return &ContextStateRepository{dir: filepath.Clean(absDir)}, nil
}

func (r *ContextStateRepository) Get(ctx context.Context, sessionID string) (domain.ContextState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContextState{}, err
	}

	path, err := r.pathFor(sessionID)
	if err != nil {
		return domain.ContextState{}, err
	}

	mu := lockForPath(path)
	mu.RLock()
	defer mu.RUnlock()

	return readStateFile(path)
}

func (r *ContextStateRepository) List(ctx context.Context) ([]domain.ContextState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.ContextState{}, nil
		}
		return nil, fmt.Errorf("list context states: %w", err)
	}

	states := make([]domain.ContextState, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), stateFileExt) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		mu := lockForPath(path)
		mu.RLock()
		state, err := readStateFile(path)
		mu.RUnlock()
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].SessionID < states[j].SessionID })

	return states, nil
}

func (r *ContextStateRepository) Save(ctx context.Context, state domain.ContextState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := r.pathFor(state.SessionID)
	if err != nil {
		return err
	}

	mu := lockForPath(path)
	mu.Lock()
	defer mu.Unlock()

	data, err := toml.Marshal(toContextStateSchema(state))
	if err != nil {
		return fmt.Errorf("encode context state: %w", err)
	}
	if err := atomicfile.Write(path, data, stateFileMode); err != nil {
		return fmt.Errorf("write context state: %w", err)
	}

	return nil
}

func (r *ContextStateRepository) pathFor(sessionID string) (string, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return "", fmt.Errorf("%w: %q", err, sessionID)
	}

	return filepath.Join(r.dir, sessionID+stateFileExt), nil
}

func readStateFile(path string) (domain.ContextState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ContextState{}, domain.ErrStateNotFound
		}
		return domain.ContextState{}, fmt.Errorf("read context state: %w", err)
	}

	var file contextStateSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.ContextState{}, fmt.Errorf("decode context state: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.ContextState{}, err
	}
	file.applyDefaults()

	return fromContextStateSchema(file)
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
