// Package lock provides a single-writer advisory lock file so two runs for
// the same branch never process the same intake folder at once.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/spf13/afero"
)

// Owner is written into the lock file.
type Owner struct {
	PID        int       `json:"pid"`
	RunID      string    `json:"run_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

type Lock struct {
	fs    afero.Fs
	path  string
	owner Owner
}

// Acquire creates the lock file exclusively. A lock older than staleAfter is
// taken over once; staleAfter <= 0 never treats a lock as stale.
func Acquire(fs afero.Fs, path, runID string, staleAfter time.Duration, now time.Time) (*Lock, error) {
	owner := Owner{PID: os.Getpid(), RunID: runID, AcquiredAt: now.UTC()}

	err := create(fs, path, owner)
	if errors.Is(err, os.ErrExist) && staleAfter > 0 {
		var held Owner
		held, err = read(fs, path)
		stale := err != nil || now.Sub(held.AcquiredAt) > staleAfter
		if !stale {
			return nil, fmt.Errorf("%w: %s held by run %s (pid %d) since %s",
				common.ErrLocked, path, held.RunID, held.PID, held.AcquiredAt.Format(time.RFC3339))
		}
		if rerr := fs.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock %s: %w", path, rerr)
		}
		err = create(fs, path, owner)
	}
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	return &Lock{fs: fs, path: path, owner: owner}, nil
}

func create(fs afero.Fs, path string, owner Owner) error {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(owner); err != nil {
		_ = f.Close()
		_ = fs.Remove(path)
		return err
	}
	return f.Close()
}

func read(fs afero.Fs, path string) (Owner, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return Owner{}, err
	}
	var o Owner
	if err := json.Unmarshal(b, &o); err != nil {
		return Owner{}, err
	}
	return o, nil
}

func (l *Lock) Path() string { return l.path }

func (l *Lock) Owner() Owner { return l.owner }

// Release removes the lock file if it is still ours.
func (l *Lock) Release() error {
	held, err := read(l.fs, l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && held.RunID != l.owner.RunID {
		return fmt.Errorf("lock %s was taken over by run %s", l.path, held.RunID)
	}
	if err := l.fs.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
