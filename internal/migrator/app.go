// Package migrator wires the branch migrator: it opens the remote store, the
// ledger and the run lock, builds the pipeline and runs it once.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/dbx"
	"github.com/dmitrijs2005/boletaje/internal/filex"
	"github.com/dmitrijs2005/boletaje/internal/logging"
	"github.com/dmitrijs2005/boletaje/internal/migrator/config"
	"github.com/dmitrijs2005/boletaje/internal/migrator/drive"
	"github.com/dmitrijs2005/boletaje/internal/migrator/ledger"
	"github.com/dmitrijs2005/boletaje/internal/migrator/lister"
	"github.com/dmitrijs2005/boletaje/internal/migrator/lock"
	"github.com/dmitrijs2005/boletaje/internal/migrator/materialize"
	"github.com/dmitrijs2005/boletaje/internal/migrator/naming"
	"github.com/dmitrijs2005/boletaje/internal/migrator/pipeline"
	"github.com/dmitrijs2005/boletaje/internal/migrator/quarantine"
	"github.com/dmitrijs2005/boletaje/internal/migrator/resolver"
	"github.com/dmitrijs2005/boletaje/internal/migrator/transition"
	"github.com/dmitrijs2005/boletaje/internal/migrator/upload"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Seams replaced in tests.
var (
	openStore = func(ctx context.Context, credentialsFile string) (drive.Store, error) {
		s, err := drive.NewGoogleStore(ctx, credentialsFile)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	openLedger = func(ctx context.Context, dsn string) (ledger.Repository, io.Closer, error) {
		l, err := ledger.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return l, l, nil
	}
	newFs            = afero.NewOsFs
	now              = time.Now
	logOut io.Writer = os.Stderr
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	fs       afero.Fs
	runID    string
	workDir  string
	lock     *lock.Lock
	closers  []io.Closer
	pipeline *pipeline.Pipeline
}

// NewApp prepares a run. Everything opened here is released by Close, also
// when NewApp itself fails halfway.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	base, err := logging.New(logOut, level, c.LogFormat)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, fs: newFs(), runID: uuid.NewString()}
	app.logger = base.With("run_id", app.runID, "branch", c.BranchFolder)

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	dir, err := filex.EnsureDir(app.fs, c.WorkDir)
	if err != nil {
		return fmt.Errorf("work dir: %w", err)
	}
	app.workDir = dir

	if c.LockEnabled {
		l, err := lock.Acquire(app.fs, app.LockPath(), app.runID, c.LockStaleAfter, now())
		if err != nil {
			return err
		}
		app.lock = l
	}

	var repo ledger.Repository = ledger.Nop{}
	if c.LedgerDSN != "" {
		r, closer, err := openLedger(ctx, ledgerDSN(dir, c.LedgerDSN))
		if err != nil {
			return err
		}
		repo = r
		app.closers = append(app.closers, closer)
	}

	store, err := openStore(ctx, c.CredentialsFile)
	if err != nil {
		return err
	}

	policy, err := app.policy(ctx)
	if err != nil {
		return err
	}

	filter, err := lister.ParseFilter(c.ListFilter)
	if err != nil {
		return err
	}
	style, err := transition.ParseStyle(c.CompletionStyle)
	if err != nil {
		return err
	}
	manual, err := c.Manual()
	if err != nil {
		return err
	}

	up, err := upload.New(c.Endpoint, c.BranchHeader, app.fs, upload.Options{
		Timeout:            c.UploadTimeout,
		InsecureSkipVerify: c.InsecureSkipVerify,
	})
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Resolver: resolver.New(store, resolver.Names{
			Root:    c.RootFolder,
			Branch:  c.BranchFolder,
			Intake:  c.IntakeFolder,
			Archive: c.ArchiveFolder,
		}, c.RemoteTimeout),
		Lister: lister.New(store, filter, c.RemoteTimeout),
		Materializer: materialize.New(store, app.fs, materialize.Options{
			Dir:       dir,
			ChunkSize: c.ChunkSize,
			Retries:   uint64(c.ChunkRetries),
			Timeout:   c.RemoteTimeout,
			Log:       app.logger,
		}),
		Uploader:  up,
		Completer: transition.New(store, app.fs, style, policy, c.RemoteTimeout, app.logger),
		Ledger:    repo,
		FS:        app.fs,
	}

	app.pipeline = pipeline.New(deps, pipeline.Options{
		Branch:   c.BranchFolder,
		RunID:    app.runID,
		Lookback: c.Lookback,
		Manual:   manual,
		DryRun:   c.DryRun,
		Clock:    now,
	}, app.logger)
	return nil
}

func (app *App) policy(ctx context.Context) (quarantine.Policy, error) {
	kind, err := quarantine.ParseKind(app.config.FailurePolicy)
	if err != nil {
		return nil, err
	}
	switch kind {
	case quarantine.KindRemove:
		return quarantine.Remove{FS: app.fs}, nil
	case quarantine.KindS3:
		s := app.config.S3
		return quarantine.NewS3(ctx, app.fs, quarantine.S3Config{
			Bucket:    s.Bucket,
			Region:    s.Region,
			Endpoint:  s.Endpoint,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Prefix:    s.Prefix,
		})
	default:
		return quarantine.Keep{}, nil
	}
}

// ledgerDSN resolves a plain relative sqlite path against the work dir.
func ledgerDSN(workDir, dsn string) string {
	if ledger.DialectFor(dsn) != dbx.SQLite || filepath.IsAbs(dsn) || strings.Contains(dsn, ":") {
		return dsn
	}
	return filepath.Join(workDir, dsn)
}

// LockPath is the per-branch lock file inside the work dir.
func (app *App) LockPath() string {
	return filepath.Join(app.workDir, "."+naming.Sanitize(app.config.BranchFolder)+".lock")
}

func (app *App) RunID() string { return app.runID }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run executes one pass over the planned periods. SIGINT, SIGTERM and
// SIGQUIT cancel the run: an item whose upload was accepted is still
// recorded and relocated, any other item in flight is abandoned untouched
// remotely.
func (app *App) Run(ctx context.Context) pipeline.RunSummary {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer app.initSignalHandler(cancel)()

	app.warnLeftovers(ctx)

	sum := app.pipeline.Run(ctx, now())
	if sum.Err != nil {
		app.logger.Error(ctx, "run failed", "error", sum.Err)
	} else if !sum.OK() {
		app.logger.Warn(ctx, "run finished with failures",
			"failed", sum.Failed,
			"transition_errors", sum.TransitionErrors,
			"period_errors", sum.PeriodErrors,
			"interrupted", sum.Interrupted,
		)
	}
	return sum
}

// warnLeftovers reports artifacts a previous run left in the work dir.
func (app *App) warnLeftovers(ctx context.Context) {
	files, err := filex.Leftovers(app.fs, app.workDir)
	if err != nil {
		app.logger.Warn(ctx, "work dir not readable", "error", err)
		return
	}
	ledgerFile := ""
	if dsn := app.config.LedgerDSN; dsn != "" {
		ledgerFile = filepath.Base(ledgerDSN(app.workDir, dsn))
	}
	for _, f := range files {
		if f == app.LockPath() || (ledgerFile != "" && strings.HasPrefix(filepath.Base(f), ledgerFile)) {
			continue
		}
		app.logger.Warn(ctx, "leftover artifact in work dir", "path", f)
	}
}

// Close releases the lock and the ledger.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	if app.lock != nil {
		if err := app.lock.Release(); err != nil {
			errs = append(errs, err)
		}
		app.lock = nil
	}
	return errors.Join(errs...)
}
