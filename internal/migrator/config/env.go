package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/timex"
	"github.com/joho/godotenv"
)

// dotenvFile is loaded before the environment is read, if it exists.
var dotenvFile = ".env"

// envConfig mirrors Config with raw strings; an empty value means unset.
type envConfig struct {
	CredentialsFile    string `env:"MIGRATOR_CREDENTIALS_FILE"`
	GoogleCredentials  string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	RootFolder         string `env:"MIGRATOR_ROOT_FOLDER"`
	BranchFolder       string `env:"MIGRATOR_BRANCH_FOLDER"`
	IntakeFolder       string `env:"MIGRATOR_INTAKE_FOLDER"`
	ArchiveFolder      string `env:"MIGRATOR_ARCHIVE_FOLDER"`
	Endpoint           string `env:"MIGRATOR_ENDPOINT"`
	BranchHeader       string `env:"MIGRATOR_BRANCH_HEADER"`
	UploadTimeout      string `env:"MIGRATOR_UPLOAD_TIMEOUT"`
	InsecureSkipVerify string `env:"MIGRATOR_INSECURE_SKIP_VERIFY"`
	Lookback           string `env:"MIGRATOR_LOOKBACK"`
	ManualMonth        string `env:"MIGRATOR_MANUAL_MONTH"`
	ManualYear         string `env:"MIGRATOR_MANUAL_YEAR"`
	CompletionStyle    string `env:"MIGRATOR_COMPLETION_STYLE"`
	ListFilter         string `env:"MIGRATOR_LIST_FILTER"`
	RemoteTimeout      string `env:"MIGRATOR_REMOTE_TIMEOUT"`
	ChunkSize          string `env:"MIGRATOR_CHUNK_SIZE"`
	ChunkRetries       string `env:"MIGRATOR_CHUNK_RETRIES"`
	WorkDir            string `env:"MIGRATOR_WORK_DIR"`
	LedgerDSN          string `env:"MIGRATOR_LEDGER_DSN"`
	LockEnabled        string `env:"MIGRATOR_LOCK"`
	LockStaleAfter     string `env:"MIGRATOR_LOCK_STALE_AFTER"`
	FailurePolicy      string `env:"MIGRATOR_FAILURE_POLICY"`
	S3Bucket           string `env:"MIGRATOR_S3_BUCKET"`
	S3Region           string `env:"MIGRATOR_S3_REGION"`
	S3Endpoint         string `env:"MIGRATOR_S3_ENDPOINT"`
	S3AccessKey        string `env:"MIGRATOR_S3_ACCESS_KEY"`
	S3SecretKey        string `env:"MIGRATOR_S3_SECRET_KEY"`
	S3Prefix           string `env:"MIGRATOR_S3_PREFIX"`
	DryRun             string `env:"MIGRATOR_DRY_RUN"`
	LogLevel           string `env:"MIGRATOR_LOG_LEVEL"`
	LogFormat          string `env:"MIGRATOR_LOG_FORMAT"`
}

// parseEnv overlays cfg with the environment. Variables already set in the
// process win over the .env file.
func parseEnv(cfg *Config) error {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: load %s: %v", common.ErrInvalidConfig, dotenvFile, err)
	}

	var ec envConfig
	if _, err := env.UnmarshalFromEnviron(&ec); err != nil {
		return fmt.Errorf("%w: environment: %v", common.ErrInvalidConfig, err)
	}
	return ec.apply(cfg)
}

func (ec envConfig) apply(cfg *Config) error {
	setString(&cfg.CredentialsFile, ec.GoogleCredentials)
	setString(&cfg.CredentialsFile, ec.CredentialsFile)
	setString(&cfg.RootFolder, ec.RootFolder)
	setString(&cfg.BranchFolder, ec.BranchFolder)
	setString(&cfg.IntakeFolder, ec.IntakeFolder)
	setString(&cfg.ArchiveFolder, ec.ArchiveFolder)
	setString(&cfg.Endpoint, ec.Endpoint)
	setString(&cfg.BranchHeader, ec.BranchHeader)
	setString(&cfg.ManualMonth, ec.ManualMonth)
	setString(&cfg.CompletionStyle, ec.CompletionStyle)
	setString(&cfg.ListFilter, ec.ListFilter)
	setString(&cfg.WorkDir, ec.WorkDir)
	setString(&cfg.LedgerDSN, ec.LedgerDSN)
	setString(&cfg.FailurePolicy, ec.FailurePolicy)
	setString(&cfg.S3.Bucket, ec.S3Bucket)
	setString(&cfg.S3.Region, ec.S3Region)
	setString(&cfg.S3.Endpoint, ec.S3Endpoint)
	setString(&cfg.S3.AccessKey, ec.S3AccessKey)
	setString(&cfg.S3.SecretKey, ec.S3SecretKey)
	setString(&cfg.S3.Prefix, ec.S3Prefix)
	setString(&cfg.LogLevel, ec.LogLevel)
	setString(&cfg.LogFormat, ec.LogFormat)

	var chunk int
	steps := []error{
		setDuration(&cfg.UploadTimeout, "MIGRATOR_UPLOAD_TIMEOUT", ec.UploadTimeout),
		setDuration(&cfg.RemoteTimeout, "MIGRATOR_REMOTE_TIMEOUT", ec.RemoteTimeout),
		setDuration(&cfg.LockStaleAfter, "MIGRATOR_LOCK_STALE_AFTER", ec.LockStaleAfter),
		setInt(&cfg.Lookback, "MIGRATOR_LOOKBACK", ec.Lookback),
		setInt(&cfg.ManualYear, "MIGRATOR_MANUAL_YEAR", ec.ManualYear),
		setInt(&cfg.ChunkRetries, "MIGRATOR_CHUNK_RETRIES", ec.ChunkRetries),
		setInt(&chunk, "MIGRATOR_CHUNK_SIZE", ec.ChunkSize),
		setBool(&cfg.InsecureSkipVerify, "MIGRATOR_INSECURE_SKIP_VERIFY", ec.InsecureSkipVerify),
		setBool(&cfg.LockEnabled, "MIGRATOR_LOCK", ec.LockEnabled),
		setBool(&cfg.DryRun, "MIGRATOR_DRY_RUN", ec.DryRun),
	}
	if err := errors.Join(steps...); err != nil {
		return err
	}
	if ec.ChunkSize != "" {
		cfg.ChunkSize = int64(chunk)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := timex.Parse(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrInvalidConfig, name, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, name, v string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", common.ErrInvalidConfig, name, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, name, v string) error {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a boolean", common.ErrInvalidConfig, name, v)
	}
	*dst = b
	return nil
}
