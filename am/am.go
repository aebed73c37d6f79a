// Package am ("am" as in "I am") holds the yanantin configuration: where the
// store lives, where the cairn is, how pulse, capture and the audit behave.
package am

// Config represents the yanantin configuration
type Config struct {
	Store   StoreConfig   `mapstructure:"store" toml:"store"`
	Cairn   CairnConfig   `mapstructure:"cairn" toml:"cairn"`
	OTS     OTSConfig     `mapstructure:"ots" toml:"ots"`
	Pulse   PulseConfig   `mapstructure:"pulse" toml:"pulse"`
	Capture CaptureConfig `mapstructure:"capture" toml:"capture"`
	Audit   AuditConfig   `mapstructure:"audit" toml:"audit"`
	Server  ServerConfig  `mapstructure:"server" toml:"server"`
}

// Store backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRemote = "remote"
)

// StoreConfig selects and configures the tensor store backend
type StoreConfig struct {
	Backend        string `mapstructure:"backend" toml:"backend"`                 // memory, sqlite, badger or remote
	Path           string `mapstructure:"path" toml:"path"`                       // sqlite file or badger directory
	GatewayURL     string `mapstructure:"gateway_url" toml:"gateway_url"`         // remote backend only
	APIKey         string `mapstructure:"api_key" toml:"api_key,omitempty"`       // remote backend only, prefer YANANTIN_STORE_API_KEY
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"` // remote request timeout (default: 30)
	Caller         string `mapstructure:"caller" toml:"caller"`                   // identity presented to the access policy
}

// CairnConfig locates the tensor archive
type CairnConfig struct {
	Dir           string `mapstructure:"dir" toml:"dir"`
	CompactionDir string `mapstructure:"compaction_dir" toml:"compaction_dir"`
	ReportsGlob   string `mapstructure:"reports_glob" toml:"reports_glob"` // relative to dir
	ReportLimit   int    `mapstructure:"report_limit" toml:"report_limit"` // 0 = every report
}

// OTSConfig configures timestamp proofs
type OTSConfig struct {
	Dir               string   `mapstructure:"dir" toml:"dir"` // where .ots proofs are written
	Calendars         []string `mapstructure:"calendars" toml:"calendars"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	MinAgeMinutes     int      `mapstructure:"min_age_minutes" toml:"min_age_minutes"` // skip younger proofs on upgrade
	RequestsPerMinute int      `mapstructure:"requests_per_minute" toml:"requests_per_minute"`
}

// PulseConfig configures the chasqui pulse
type PulseConfig struct {
	StateFile               string            `mapstructure:"state_file" toml:"state_file"`
	QueueFile               string            `mapstructure:"queue_file" toml:"queue_file"`
	LockFile                string            `mapstructure:"lock_file" toml:"lock_file"`
	RepoPath                string            `mapstructure:"repo_path" toml:"repo_path"` // empty disables change detection
	WatchedPrefixes         []string          `mapstructure:"watched_prefixes" toml:"watched_prefixes"`
	MinScoutIntervalMinutes int               `mapstructure:"min_scout_interval_minutes" toml:"min_scout_interval_minutes"`
	HeartbeatIntervalHours  int               `mapstructure:"heartbeat_interval_hours" toml:"heartbeat_interval_hours"`
	Dispatchers             map[string]string `mapstructure:"dispatchers" toml:"dispatchers"` // item type = "command line"
}

// CaptureConfig configures context-boundary capture
type CaptureConfig struct {
	HeadBudgetBytes int64 `mapstructure:"head_budget_bytes" toml:"head_budget_bytes"`
	TailWindowBytes int64 `mapstructure:"tail_window_bytes" toml:"tail_window_bytes"`
}

// AuditConfig configures the blueprint audit
type AuditConfig struct {
	Root        string `mapstructure:"root" toml:"root"`
	Blueprint   string `mapstructure:"blueprint" toml:"blueprint"`
	TestsDir    string `mapstructure:"tests_dir" toml:"tests_dir"`
	SourceRoot  string `mapstructure:"source_root" toml:"source_root"`
	TestPattern string `mapstructure:"test_pattern" toml:"test_pattern"`
	TestGlob    string `mapstructure:"test_glob" toml:"test_glob"`
	SourceGlob  string `mapstructure:"source_glob" toml:"source_glob"`
	TensorGlob  string `mapstructure:"tensor_glob" toml:"tensor_glob"`
	ScoutGlob   string `mapstructure:"scout_glob" toml:"scout_glob"`
}

// ServerConfig configures the gateway
type ServerConfig struct {
	Port   int    `mapstructure:"port" toml:"port"`
	APIKey string `mapstructure:"api_key" toml:"api_key,omitempty"` // empty = no key required
}

// DefaultServerPort is the gateway port when none is configured
const DefaultServerPort = 7420

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
