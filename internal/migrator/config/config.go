package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/logging"
	"github.com/dmitrijs2005/boletaje/internal/migrator/lister"
	"github.com/dmitrijs2005/boletaje/internal/migrator/period"
	"github.com/dmitrijs2005/boletaje/internal/migrator/quarantine"
	"github.com/dmitrijs2005/boletaje/internal/migrator/transition"
)

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Config holds everything one branch deployment needs.
type Config struct {
	CredentialsFile string

	RootFolder    string
	BranchFolder  string
	IntakeFolder  string
	ArchiveFolder string

	Endpoint           string
	BranchHeader       string
	UploadTimeout      time.Duration
	InsecureSkipVerify bool

	Lookback    int
	ManualMonth string
	ManualYear  int

	CompletionStyle string
	ListFilter      string

	RemoteTimeout time.Duration
	ChunkSize     int64
	ChunkRetries  int

	WorkDir        string
	LedgerDSN      string
	LockEnabled    bool
	LockStaleAfter time.Duration

	FailurePolicy string
	S3            S3Config

	DryRun    bool
	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with the defaults shared by every branch.
func (c *Config) LoadDefaults() {
	c.IntakeFolder = common.DefaultIntakeFolder
	c.ArchiveFolder = common.DefaultArchiveFolder
	c.UploadTimeout = 20 * time.Minute
	c.Lookback = 0
	c.CompletionStyle = string(transition.StyleRelocate)
	c.ListFilter = string(lister.FilterSpreadsheets)
	c.RemoteTimeout = time.Minute
	c.ChunkSize = 10 << 20
	c.ChunkRetries = 3
	c.WorkDir = "."
	c.LedgerDSN = "ledger.db"
	c.LockEnabled = true
	c.LockStaleAfter = 6 * time.Hour
	c.FailurePolicy = quarantine.KindKeep
	c.LogLevel = "info"
	c.LogFormat = logging.FormatAuto
}

// LoadConfig builds a Config from defaults, environment, the optional config
// file named in args, and the flags in args, then validates it.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"root_folder":   c.RootFolder,
		"branch_folder": c.BranchFolder,
		"endpoint":      c.Endpoint,
		"branch_header": c.BranchHeader,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing %s", common.ErrInvalidConfig, strings.Join(missing, ", "))
	}

	if c.Lookback < 0 {
		return fmt.Errorf("%w: lookback must be >= 0, got %d", common.ErrInvalidConfig, c.Lookback)
	}
	if _, err := c.Manual(); err != nil {
		return err
	}
	if _, err := transition.ParseStyle(c.CompletionStyle); err != nil {
		return err
	}
	if _, err := lister.ParseFilter(c.ListFilter); err != nil {
		return err
	}
	kind, err := quarantine.ParseKind(c.FailurePolicy)
	if err != nil {
		return err
	}
	if kind == quarantine.KindS3 && c.S3.Bucket == "" {
		return fmt.Errorf("%w: failure policy s3 needs s3 bucket", common.ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	switch c.LogFormat {
	case "", logging.FormatAuto, logging.FormatJSON, logging.FormatText, logging.FormatPretty:
	default:
		return fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, c.LogFormat)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("%w: upload timeout must be positive", common.ErrInvalidConfig)
	}
	if c.ChunkRetries < 0 {
		return fmt.Errorf("%w: chunk retries must be >= 0", common.ErrInvalidConfig)
	}
	return nil
}

// Manual returns the manual period, or nil when the run is automatic. Both a
// month name and a year are needed.
func (c *Config) Manual() (*period.Period, error) {
	if strings.TrimSpace(c.ManualMonth) == "" && c.ManualYear == 0 {
		return nil, nil
	}
	if strings.TrimSpace(c.ManualMonth) == "" {
		return nil, fmt.Errorf("%w: manual year %d given without month", common.ErrInvalidConfig, c.ManualYear)
	}
	p, err := period.Parse(c.ManualMonth, c.ManualYear)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return &p, nil
}
