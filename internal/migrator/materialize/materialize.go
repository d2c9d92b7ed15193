// Package materialize turns a remote item into a complete local artifact:
// native documents are exported, everything else is downloaded in ranged
// chunks.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/logging"
	"github.com/dmitrijs2005/boletaje/internal/migrator/drive"
	"github.com/dmitrijs2005/boletaje/internal/migrator/naming"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"
)

// Artifact is a fully written local copy of a remote item.
type Artifact struct {
	Path        string
	Size        int64
	ContentType string
	Exported    bool
}

// Error is a transfer failure for a single item.
type Error struct {
	FileID string
	Name   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("materialize %q (%s): %v", e.Name, e.FileID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == common.ErrMaterialize }

var errEmptyChunk = errors.New("empty chunk")

type Options struct {
	// Dir is where artifacts are written.
	Dir string
	// ChunkSize is the byte length of one ranged request; <= 0 downloads in
	// one request.
	ChunkSize int64
	// Retries bounds the attempts per chunk after the first one.
	Retries uint64
	// RetryBase is the first backoff delay.
	RetryBase time.Duration
	// Timeout bounds each remote call; <= 0 leaves it unbounded.
	Timeout time.Duration
	// Log receives chunk progress at debug level.
	Log logging.Logger
}

const defaultRetryBase = 500 * time.Millisecond

type Materializer struct {
	store drive.Store
	fs    afero.Fs
	opts  Options
}

func New(store drive.Store, fs afero.Fs, opts Options) *Materializer {
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	if opts.Log == nil {
		opts.Log = logging.NewNop()
	}
	return &Materializer{store: store, fs: fs, opts: opts}
}

// Materialize writes f under the work dir. Native types without an export
// mapping yield common.ErrUnsupportedItemType; any transfer failure yields
// an *Error and leaves nothing behind.
func (m *Materializer) Materialize(ctx context.Context, f drive.File) (Artifact, error) {
	name := naming.Sanitize(f.Name)
	if name == "" {
		name = f.ID
	}

	if f.IsNative() {
		exp, ok := ExportFor(f.MimeType)
		if !ok {
			return Artifact{}, fmt.Errorf("%w: %s (%s)", common.ErrUnsupportedItemType, f.MimeType, f.Name)
		}
		path := filepath.Join(m.opts.Dir, naming.ReplaceExt(name, exp.Extension))
		size, err := m.write(path, func(w io.Writer) (int64, error) {
			return m.export(ctx, f.ID, exp.MimeType, w)
		})
		if err != nil {
			return Artifact{}, &Error{FileID: f.ID, Name: f.Name, Err: err}
		}
		return Artifact{Path: path, Size: size, ContentType: exp.MimeType, Exported: true}, nil
	}

	path := filepath.Join(m.opts.Dir, name)
	size, err := m.write(path, func(w io.Writer) (int64, error) {
		return m.download(ctx, f, w)
	})
	if err != nil {
		return Artifact{}, &Error{FileID: f.ID, Name: f.Name, Err: err}
	}
	return Artifact{Path: path, Size: size, ContentType: Classify(m.fs, path)}, nil
}

// write fills a temp file next to path and renames it into place once fill
// succeeds.
func (m *Materializer) write(path string, fill func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := afero.TempFile(m.fs, filepath.Dir(path), ".boletaje-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := fill(tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}
	if err != nil {
		_ = m.fs.Remove(tmpName)
		return 0, err
	}
	if err := m.fs.Rename(tmpName, path); err != nil {
		_ = m.fs.Remove(tmpName)
		return 0, fmt.Errorf("rename temp file: %w", err)
	}
	return n, nil
}

func (m *Materializer) export(ctx context.Context, id, mimeType string, w io.Writer) (int64, error) {
	ctx, cancel := m.callContext(ctx)
	defer cancel()

	rc, err := m.store.Export(ctx, id, mimeType)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.Copy(w, rc)
}

// download copies the content chunk by chunk. A failed chunk is retried
// from the last byte written.
func (m *Materializer) download(ctx context.Context, f drive.File, w io.Writer) (int64, error) {
	var written int64
	for {
		length := m.opts.ChunkSize
		if f.Size <= 0 || length <= 0 {
			length = 0
		} else if rem := f.Size - written; rem < length {
			length = rem
		}

		offset := written
		b := retry.WithMaxRetries(m.opts.Retries, retry.NewExponential(m.opts.RetryBase))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			n, err := m.chunk(ctx, f.ID, written, length, w)
			written += n
			if err != nil {
				return retry.RetryableError(err)
			}
			if length > 0 && n == 0 {
				return retry.RetryableError(errEmptyChunk)
			}
			return nil
		})
		if err != nil {
			return written, fmt.Errorf("chunk at %d: %w", written, err)
		}
		m.opts.Log.Debug(ctx, "chunk written", "file_id", f.ID, "offset", offset, "size", written-offset, "total", f.Size)
		if length == 0 || written >= f.Size {
			return written, nil
		}
	}
}

func (m *Materializer) chunk(ctx context.Context, id string, offset, length int64, w io.Writer) (int64, error) {
	ctx, cancel := m.callContext(ctx)
	defer cancel()

	rc, err := m.store.Download(ctx, id, offset, length)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	if length > 0 {
		return io.Copy(w, io.LimitReader(rc, length))
	}
	return io.Copy(w, rc)
}

func (m *Materializer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.Timeout > 0 {
		return context.WithTimeout(ctx, m.opts.Timeout)
	}
	return context.WithCancel(ctx)
}
