package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/flagx"
	"github.com/dmitrijs2005/boletaje/internal/timex"
	"gopkg.in/yaml.v3"
)

type fileS3Config struct {
	Bucket    string `json:"bucket" yaml:"bucket"`
	Region    string `json:"region" yaml:"region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Prefix    string `json:"prefix" yaml:"prefix"`
}

// fileConfig is the on-disk shape of a branch config. Pointer fields tell
// "absent" apart from an explicit zero.
type fileConfig struct {
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`

	RootFolder    string `json:"root_folder" yaml:"root_folder"`
	BranchFolder  string `json:"branch_folder" yaml:"branch_folder"`
	IntakeFolder  string `json:"intake_folder" yaml:"intake_folder"`
	ArchiveFolder string `json:"archive_folder" yaml:"archive_folder"`

	Endpoint           string          `json:"endpoint" yaml:"endpoint"`
	BranchHeader       string          `json:"branch_header" yaml:"branch_header"`
	UploadTimeout      *timex.Duration `json:"upload_timeout" yaml:"upload_timeout"`
	InsecureSkipVerify *bool           `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	Lookback    *int   `json:"lookback" yaml:"lookback"`
	ManualMonth string `json:"manual_month" yaml:"manual_month"`
	ManualYear  *int   `json:"manual_year" yaml:"manual_year"`

	CompletionStyle string `json:"completion_style" yaml:"completion_style"`
	ListFilter      string `json:"list_filter" yaml:"list_filter"`

	RemoteTimeout *timex.Duration `json:"remote_timeout" yaml:"remote_timeout"`
	ChunkSize     *int64          `json:"chunk_size" yaml:"chunk_size"`
	ChunkRetries  *int            `json:"chunk_retries" yaml:"chunk_retries"`

	WorkDir        string          `json:"work_dir" yaml:"work_dir"`
	LedgerDSN      *string         `json:"ledger_dsn" yaml:"ledger_dsn"`
	LockEnabled    *bool           `json:"lock_enabled" yaml:"lock_enabled"`
	LockStaleAfter *timex.Duration `json:"lock_stale_after" yaml:"lock_stale_after"`

	FailurePolicy string       `json:"failure_policy" yaml:"failure_policy"`
	S3            fileS3Config `json:"s3" yaml:"s3"`

	DryRun    *bool  `json:"dry_run" yaml:"dry_run"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// parseFile overlays cfg with the file named by -c/-config, if any.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrInvalidConfig, path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", common.ErrInvalidConfig, path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.CredentialsFile, fc.CredentialsFile)
	setString(&cfg.RootFolder, fc.RootFolder)
	setString(&cfg.BranchFolder, fc.BranchFolder)
	setString(&cfg.IntakeFolder, fc.IntakeFolder)
	setString(&cfg.ArchiveFolder, fc.ArchiveFolder)
	setString(&cfg.Endpoint, fc.Endpoint)
	setString(&cfg.BranchHeader, fc.BranchHeader)
	setString(&cfg.ManualMonth, fc.ManualMonth)
	setString(&cfg.CompletionStyle, fc.CompletionStyle)
	setString(&cfg.ListFilter, fc.ListFilter)
	setString(&cfg.WorkDir, fc.WorkDir)
	setString(&cfg.FailurePolicy, fc.FailurePolicy)
	setString(&cfg.S3.Bucket, fc.S3.Bucket)
	setString(&cfg.S3.Region, fc.S3.Region)
	setString(&cfg.S3.Endpoint, fc.S3.Endpoint)
	setString(&cfg.S3.AccessKey, fc.S3.AccessKey)
	setString(&cfg.S3.SecretKey, fc.S3.SecretKey)
	setString(&cfg.S3.Prefix, fc.S3.Prefix)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)

	// an explicit empty ledger_dsn disables the ledger
	if fc.LedgerDSN != nil {
		cfg.LedgerDSN = *fc.LedgerDSN
	}
	if fc.UploadTimeout != nil {
		cfg.UploadTimeout = fc.UploadTimeout.Duration
	}
	if fc.RemoteTimeout != nil {
		cfg.RemoteTimeout = fc.RemoteTimeout.Duration
	}
	if fc.LockStaleAfter != nil {
		cfg.LockStaleAfter = fc.LockStaleAfter.Duration
	}
	if fc.InsecureSkipVerify != nil {
		cfg.InsecureSkipVerify = *fc.InsecureSkipVerify
	}
	if fc.Lookback != nil {
		cfg.Lookback = *fc.Lookback
	}
	if fc.ManualYear != nil {
		cfg.ManualYear = *fc.ManualYear
	}
	if fc.ChunkSize != nil {
		cfg.ChunkSize = *fc.ChunkSize
	}
	if fc.ChunkRetries != nil {
		cfg.ChunkRetries = *fc.ChunkRetries
	}
	if fc.LockEnabled != nil {
		cfg.LockEnabled = *fc.LockEnabled
	}
	if fc.DryRun != nil {
		cfg.DryRun = *fc.DryRun
	}
}
