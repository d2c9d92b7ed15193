package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/flagx"
)

var valueFlags = []string{
	"-credentials", "-root", "-branch", "-intake", "-archive",
	"-endpoint", "-header", "-lookback", "-month", "-year",
	"-style", "-filter", "-upload-timeout", "-remote-timeout",
	"-chunk-size", "-chunk-retries", "-work-dir", "-ledger", "-failure-policy",
	"-log-level", "-log-format",
}

var boolFlags = []string{"-lock", "-insecure", "-dry-run"}

// parseFlags overlays cfg with command line flags. Only flags that appear in
// args change cfg since the current values act as defaults.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("migrator", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.CredentialsFile, "credentials", cfg.CredentialsFile, "service account credentials file")
	fs.StringVar(&cfg.RootFolder, "root", cfg.RootFolder, "root folder name")
	fs.StringVar(&cfg.BranchFolder, "branch", cfg.BranchFolder, "branch folder name")
	fs.StringVar(&cfg.IntakeFolder, "intake", cfg.IntakeFolder, "intake folder name")
	fs.StringVar(&cfg.ArchiveFolder, "archive", cfg.ArchiveFolder, "archive folder name")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "upload endpoint")
	fs.StringVar(&cfg.BranchHeader, "header", cfg.BranchHeader, "branch header sent with uploads")
	fs.IntVar(&cfg.Lookback, "lookback", cfg.Lookback, "previous months to visit")
	fs.StringVar(&cfg.ManualMonth, "month", cfg.ManualMonth, "manual month name")
	fs.IntVar(&cfg.ManualYear, "year", cfg.ManualYear, "manual year")
	fs.StringVar(&cfg.CompletionStyle, "style", cfg.CompletionStyle, "completion style: relocate or rename+relocate")
	fs.StringVar(&cfg.ListFilter, "filter", cfg.ListFilter, "list filter: spreadsheets, xlsx or all")
	fs.DurationVar(&cfg.UploadTimeout, "upload-timeout", cfg.UploadTimeout, "upload timeout")
	fs.DurationVar(&cfg.RemoteTimeout, "remote-timeout", cfg.RemoteTimeout, "drive call timeout")
	fs.Int64Var(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "download chunk size in bytes")
	fs.IntVar(&cfg.ChunkRetries, "chunk-retries", cfg.ChunkRetries, "retries per download chunk")
	fs.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "local working directory")
	fs.StringVar(&cfg.LedgerDSN, "ledger", cfg.LedgerDSN, "ledger database, empty to disable")
	fs.StringVar(&cfg.FailurePolicy, "failure-policy", cfg.FailurePolicy, "failed artifact policy: keep, remove or s3")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: auto, json, text or pretty")
	fs.BoolVar(&cfg.LockEnabled, "lock", cfg.LockEnabled, "take the branch lock")
	fs.BoolVar(&cfg.InsecureSkipVerify, "insecure", cfg.InsecureSkipVerify, "skip TLS verification of the endpoint")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "list pending items without changing anything")

	if err := fs.Parse(flagx.FilterArgs(args, valueFlags, boolFlags...)); err != nil {
		return fmt.Errorf("%w: flags: %v", common.ErrInvalidConfig, err)
	}
	return nil
}
