package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	FileName     = ".consolidate.lock"
	lockFileMode = 0o600
	lockDirMode  = 0o700
	lockVersion  = 1
)

var errLockLost = errors.New("lock no longer held by this process")

type record struct {
	Version    int       `toml:"version"`
	Token      string    `toml:"token"`
	Owner      string    `toml:"owner"`
	PID        int       `toml:"pid"`
	Host       string    `toml:"host"`
	AcquiredAt time.Time `toml:"acquired_at"`
}

// Lock is an exclusive-create lock file. A holder older than staleAfter is
// presumed dead and may be reclaimed.
type Lock struct {
	path       string
	staleAfter time.Duration
	clock      ports.Clock
	logger     *slog.Logger
	newToken   func() string
}

var _ ports.RunLock = (*Lock)(nil)

func NewLock(path string, staleAfter time.Duration, clock ports.Clock, logger *slog.Logger) *Lock {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Lock{
		path:       filepath.Clean(path),
		staleAfter: staleAfter,
		clock:      clock,
		logger:     logger,
		newToken:   uuid.NewString,
	}
}

func (l *Lock) Path() string {
	return l.path
}

func (l *Lock) Acquire(ctx context.Context, owner string) (ports.LockHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), lockDirMode); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	handle, err := l.create(owner)
	if err == nil {
		return handle, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	holder, err := l.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l.retry(owner)
		}
		return nil, err
	}
	if !l.isStale(holder) {
		return nil, fmt.Errorf("%w: held by %s (pid %d on %s) since %s",
			domain.ErrConsolidationBusy, holder.Owner, holder.PID, holder.Host, holder.AcquiredAt.Format(time.RFC3339))
	}

	if err := l.reclaim(holder); err != nil {
		return nil, err
	}
	l.logger.Warn("reclaimed stale consolidation lock",
		"path", l.path,
		"previous_owner", holder.Owner,
		"previous_pid", holder.PID,
		"acquired_at", holder.AcquiredAt,
	)

	return l.retry(owner)
}

func (l *Lock) retry(owner string) (ports.LockHandle, error) {
	handle, err := l.create(owner)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: lost lock race", domain.ErrConsolidationBusy)
	}

	return handle, err
}

func (l *Lock) create(owner string) (*Handle, error) {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, lockFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, err
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	host, _ := os.Hostname()
	rec := record{
		Version:    lockVersion,
		Token:      l.newToken(),
		Owner:      owner,
		PID:        os.Getpid(),
		Host:       host,
		AcquiredAt: l.clock.Now().UTC(),
	}
	data, err := toml.Marshal(rec)
	if err == nil {
		_, err = f.Write(data)
	}
	if err == nil {
		err = f.Sync()
	}
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(l.path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Handle{lock: l, token: rec.Token}, nil
}

func (l *Lock) read() (record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record{}, err
		}
		return record{}, fmt.Errorf("read lock file: %w", err)
	}

	var rec record
	if err := toml.Unmarshal(data, &rec); err != nil || rec.AcquiredAt.IsZero() {
		// Half-written or foreign content: fall back to the file age.
		info, statErr := os.Stat(l.path)
		if statErr != nil {
			return record{}, fmt.Errorf("stat lock file: %w", statErr)
		}
		return record{Token: rec.Token, Owner: "unknown", AcquiredAt: info.ModTime()}, nil
	}

	return rec, nil
}

func (l *Lock) isStale(rec record) bool {
	if l.staleAfter <= 0 {
		return false
	}

	return l.clock.Now().Sub(rec.AcquiredAt) > l.staleAfter
}

// reclaim moves the stale file aside. If another process replaced it between
// the read and the rename, the live lock is linked back and the caller is
// reported busy.
func (l *Lock) reclaim(stale record) error {
	aside := fmt.Sprintf("%s.stale-%s", l.path, l.newToken())
	if err := os.Rename(l.path, aside); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("move stale lock aside: %w", err)
	}
	defer os.Remove(aside)

	data, err := os.ReadFile(aside)
	if err != nil {
		return fmt.Errorf("read reclaimed lock: %w", err)
	}
	var moved record
	if err := toml.Unmarshal(data, &moved); err == nil && moved.Token != stale.Token {
		_ = os.Link(aside, l.path)
		return fmt.Errorf("%w: lock changed hands during reclaim", domain.ErrConsolidationBusy)
	}

	return nil
}

type Handle struct {
	lock  *Lock
	token string
	once  sync.Once
	err   error
}

var _ ports.LockHandle = (*Handle)(nil)

func (h *Handle) Token() string {
	return h.token
}

// Release removes the lock file only while it still carries this handle's
// token. Repeated calls return the first result.
func (h *Handle) Release() error {
	h.once.Do(func() {
		rec, err := h.lock.read()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				h.err = errLockLost
				return
			}
			h.err = err
			return
		}
		if rec.Token != h.token {
			h.err = errLockLost
			return
		}
		if err := os.Remove(h.lock.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.err = fmt.Errorf("remove lock file: %w", err)
		}
	})

	return h.err
}
