// Package pipeline drives a run: for each planned period it resolves the
// folders, lists pending items and moves every item through
// materialize -> prefix -> upload -> transition, one at a time.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/logging"
	"github.com/dmitrijs2005/boletaje/internal/migrator/drive"
	"github.com/dmitrijs2005/boletaje/internal/migrator/ledger"
	"github.com/dmitrijs2005/boletaje/internal/migrator/materialize"
	"github.com/dmitrijs2005/boletaje/internal/migrator/naming"
	"github.com/dmitrijs2005/boletaje/internal/migrator/period"
	"github.com/dmitrijs2005/boletaje/internal/migrator/quarantine"
	"github.com/dmitrijs2005/boletaje/internal/migrator/resolver"
	"github.com/dmitrijs2005/boletaje/internal/migrator/transition"
	"github.com/dmitrijs2005/boletaje/internal/migrator/upload"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

type Resolver interface {
	Branch(ctx context.Context) (drive.Folder, error)
	Period(ctx context.Context, branch drive.Folder, p period.Period) (resolver.PeriodFolders, error)
}

type Lister interface {
	Pending(ctx context.Context, folderID string) ([]drive.File, error)
}

type Materializer interface {
	Materialize(ctx context.Context, f drive.File) (materialize.Artifact, error)
}

type Uploader interface {
	Upload(ctx context.Context, a materialize.Artifact, filename string) upload.Outcome
}

type Completer interface {
	Complete(ctx context.Context, f drive.File, folders resolver.PeriodFolders, a materialize.Artifact) transition.Result
	Fail(ctx context.Context, s quarantine.Subject) error
}

// Deps are the collaborators of a pipeline. Ledger may be nil.
type Deps struct {
	Resolver     Resolver
	Lister       Lister
	Materializer Materializer
	Uploader     Uploader
	Completer    Completer
	Ledger       ledger.Repository
	FS           afero.Fs
}

type Options struct {
	Branch   string
	RunID    string
	Lookback int
	// Manual, when set, replaces the lookback plan with exactly this period.
	Manual *period.Period
	DryRun bool
	Clock  func() time.Time
}

type Pipeline struct {
	deps Deps
	opts Options
	log  logging.Logger
}

func New(deps Deps, opts Options, log logging.Logger) *Pipeline {
	if deps.Ledger == nil {
		deps.Ledger = ledger.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts, log: log}
}

// Plan returns the periods a run started at now visits, in order.
func (p *Pipeline) Plan(now time.Time) []period.Period {
	if p.opts.Manual != nil {
		return []period.Period{*p.opts.Manual}
	}
	return period.Plan(now, p.opts.Lookback)
}

// Run processes every planned period. A branch folder that cannot be
// resolved ends the run; a period that cannot be resolved is skipped.
func (p *Pipeline) Run(ctx context.Context, now time.Time) RunSummary {
	sum := RunSummary{RunID: p.opts.RunID, Branch: p.opts.Branch}
	plan := p.Plan(now)
	p.log.Info(ctx, "run started", "periods", len(plan), "dry_run", p.opts.DryRun)

	branch, err := p.deps.Resolver.Branch(ctx)
	if err != nil {
		sum.Err = err
		p.log.Error(ctx, "branch folder not resolved", "error", err)
		return sum
	}

	for _, per := range plan {
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}
		rep := p.RunPeriod(ctx, branch, per)
		sum.add(rep)
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}
	}

	p.log.Info(ctx, "run finished",
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"transition_errors", sum.TransitionErrors,
		"reconciled", sum.Reconciled,
		"periods_with_work", sum.PeriodsWithWork,
		"interrupted", sum.Interrupted,
	)
	return sum
}

// RunPeriod processes the intake folder of a single period.
func (p *Pipeline) RunPeriod(ctx context.Context, branch drive.Folder, per period.Period) PeriodReport {
	rep := PeriodReport{Period: per}
	log := p.log.With("period", per.String())

	folders, err := p.deps.Resolver.Period(ctx, branch, per)
	if err != nil {
		var ce *resolver.ChainError
		rep.Err = err
		rep.Missing = errors.As(err, &ce) && ce.Err == nil
		if rep.Missing {
			log.Warn(ctx, "period folders missing, skipping", "link", ce.Link)
		} else {
			log.Error(ctx, "period folders not resolved", "error", err)
		}
		return rep
	}

	items, err := p.deps.Lister.Pending(ctx, folders.Intake.ID)
	if err != nil {
		rep.Err = err
		log.Error(ctx, "listing failed", "error", err)
		return rep
	}
	rep.Listed = len(items)
	if len(items) == 0 {
		log.Info(ctx, "nothing to process")
		return rep
	}
	log.Info(ctx, "pending items", "count", len(items))

	for _, f := range items {
		if ctx.Err() != nil {
			log.Warn(ctx, "cancelled, stopping batch", "remaining", len(items)-len(rep.Items))
			break
		}
		rep.add(p.processItem(ctx, log, per, folders, f))
	}

	log.Info(ctx, "period finished",
		"processed", rep.Processed,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"transition_errors", rep.TransitionErrors,
		"reconciled", rep.Reconciled,
	)
	return rep
}

func (p *Pipeline) processItem(ctx context.Context, log logging.Logger, per period.Period, folders resolver.PeriodFolders, f drive.File) ItemResult {
	res := ItemResult{FileID: f.ID, Name: f.Name, State: StatePending}
	log = log.With("file_id", f.ID, "name", f.Name)

	if p.opts.DryRun {
		log.Info(ctx, "would process", "mime_type", f.MimeType)
		return res
	}

	rec, err := p.deps.Ledger.Get(ctx, p.opts.Branch, f.ID)
	if err != nil {
		res.State, res.Err = StateFailed, err
		log.Error(ctx, "ledger unavailable, item left pending", "error", err)
		return res
	}
	if rec != nil {
		return p.reconcile(ctx, log, folders, f, rec, res)
	}

	a, err := p.deps.Materializer.Materialize(ctx, f)
	if errors.Is(err, common.ErrUnsupportedItemType) {
		res.State, res.Err = StateSkipped, err
		log.Warn(ctx, "skipped", "mime_type", f.MimeType)
		return res
	}
	if err != nil {
		res.State, res.Err = StateFailed, err
		log.Error(ctx, "materialize failed", "error", err)
		return res
	}

	prefixed, err := naming.ApplyPeriodPrefix(p.deps.FS, a.Path, per)
	if err != nil {
		res.State, res.Err = StateFailed, err
		log.Error(ctx, "local prefix failed", "error", err)
		p.fail(ctx, log, per, a)
		return res
	}
	a.Path = prefixed
	res.LocalName = filepath.Base(prefixed)
	res.Size = a.Size

	res.State = StateUploading
	log.Info(ctx, "uploading", "local_name", res.LocalName,
		"size", humanize.Bytes(uint64(max(a.Size, 0))), "content_type", a.ContentType)
	res.Upload = p.deps.Uploader.Upload(ctx, a, res.LocalName)
	if !res.Upload.Success {
		res.State, res.Err = StateFailed, res.Upload.Err
		log.Error(ctx, "upload rejected", "status", res.Upload.Status, "body", res.Upload.Body, "error", res.Upload.Err)
		p.fail(ctx, log, per, a)
		return res
	}
	log.Info(ctx, "upload accepted", "status", res.Upload.Status)

	// The endpoint has the file now; a cancelled run still records and
	// relocates it so the next run does not upload it again.
	ctx = context.WithoutCancel(ctx)
	if err := p.deps.Ledger.MarkUploaded(ctx, ledger.Record{
		Branch:    p.opts.Branch,
		FileID:    f.ID,
		Name:      f.Name,
		LocalName: res.LocalName,
		Year:      per.Year,
		Month:     int(per.Month),
		RunID:     p.opts.RunID,
		UpdatedAt: p.opts.Clock(),
	}); err != nil {
		log.Error(ctx, "ledger write failed after upload", "error", err)
	}

	tr := p.deps.Completer.Complete(ctx, f, folders, a)
	return p.finish(ctx, log, f, tr, res)
}

// reconcile completes an item that an earlier run already uploaded.
func (p *Pipeline) reconcile(ctx context.Context, log logging.Logger, folders resolver.PeriodFolders, f drive.File, rec *ledger.Record, res ItemResult) ItemResult {
	res.Reconciled = true
	res.LocalName = rec.LocalName
	log.Warn(ctx, "already uploaded, retrying transition only", "ledger_status", string(rec.Status), "run_id", rec.RunID)

	ctx = context.WithoutCancel(ctx)
	tr := p.deps.Completer.Complete(ctx, f, folders, materialize.Artifact{})
	return p.finish(ctx, log, f, tr, res)
}

func (p *Pipeline) finish(ctx context.Context, log logging.Logger, f drive.File, tr transition.Result, res ItemResult) ItemResult {
	for _, w := range tr.Warnings {
		log.Warn(ctx, "transition warning", "error", w)
	}
	if !tr.Completed {
		res.State, res.Err, res.TransitionFailed = StateFailed, tr.Err, true
		log.Error(ctx, "uploaded but not relocated", "error", tr.Err)
		return res
	}

	res.State = StateCompleted
	if err := p.deps.Ledger.MarkCompleted(ctx, p.opts.Branch, f.ID, p.opts.RunID, p.opts.Clock()); err != nil {
		log.Warn(ctx, "ledger completion not recorded", "error", err)
	}
	log.Info(ctx, "completed", "renamed", tr.Renamed)
	return res
}

func (p *Pipeline) fail(ctx context.Context, log logging.Logger, per period.Period, a materialize.Artifact) {
	err := p.deps.Completer.Fail(ctx, quarantine.Subject{Branch: p.opts.Branch, Period: per, Artifact: a})
	if err != nil {
		log.Warn(ctx, "failure policy error", "error", err)
	}
}
