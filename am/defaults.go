package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default public OpenTimestamps calendars
var DefaultCalendars = []string{
	"https://a.pool.opentimestamps.org",
	"https://b.pool.opentimestamps.org",
	"https://a.pool.eternitywall.com",
	"https://ots.btc.catallaxy.com",
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", ".yanantin/apacheta.db")
	v.SetDefault("store.timeout_seconds", 30)
	v.SetDefault("store.caller", "yanantin")

	// Cairn defaults
	v.SetDefault("cairn.dir", "docs/cairn")
	v.SetDefault("cairn.compaction_dir", "docs/cairn/compaction")
	v.SetDefault("cairn.reports_glob", "**/{scout,scour}_*.md")
	v.SetDefault("cairn.report_limit", 0)

	// OTS defaults
	v.SetDefault("ots.dir", "docs/cairn/ots")
	v.SetDefault("ots.calendars", DefaultCalendars)
	v.SetDefault("ots.timeout_seconds", 10)
	v.SetDefault("ots.min_age_minutes", 120) // calendars need time to reach a block
	v.SetDefault("ots.requests_per_minute", 60)

	// Pulse defaults
	v.SetDefault("pulse.state_file", ".yanantin/pulse_state.json")
	v.SetDefault("pulse.queue_file", ".yanantin/pulse_queue.json")
	v.SetDefault("pulse.lock_file", ".yanantin/pulse.lock")
	v.SetDefault("pulse.repo_path", ".")
	v.SetDefault("pulse.watched_prefixes", []string{})
	v.SetDefault("pulse.min_scout_interval_minutes", 30)
	v.SetDefault("pulse.heartbeat_interval_hours", 6)

	// Capture defaults
	v.SetDefault("capture.head_budget_bytes", 256*1024)
	v.SetDefault("capture.tail_window_bytes", 128*1024)

	// Audit defaults
	v.SetDefault("audit.root", ".")
	v.SetDefault("audit.blueprint", "docs/blueprint.md")
	v.SetDefault("audit.tests_dir", "tests")
	v.SetDefault("audit.source_root", "src")
	v.SetDefault("audit.test_pattern", "def test_")
	v.SetDefault("audit.test_glob", "**/test_*.py")
	v.SetDefault("audit.source_glob", "**/*.py")
	v.SetDefault("audit.tensor_glob", "docs/cairn/T*.md")
	v.SetDefault("audit.scout_glob", "docs/cairn/scout_*.md")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("store.api_key", "YANANTIN_STORE_API_KEY")
	v.BindEnv("server.api_key", "YANANTIN_SERVER_API_KEY")
	v.BindEnv("store.gateway_url", "YANANTIN_STORE_GATEWAY_URL")
}

// StoreTimeout returns the remote store timeout (default: 30s)
func (c *Config) StoreTimeout() time.Duration {
	if c.Store.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Store.TimeoutSeconds) * time.Second
}

// OTSTimeout returns the calendar request timeout (default: 10s)
func (c *Config) OTSTimeout() time.Duration {
	if c.OTS.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.OTS.TimeoutSeconds) * time.Second
}

// OTSMinAge returns the minimum proof age before an upgrade is attempted
func (c *Config) OTSMinAge() time.Duration {
	return time.Duration(c.OTS.MinAgeMinutes) * time.Minute
}

// MinScoutInterval returns the pulse minimum scout interval
func (c *Config) MinScoutInterval() time.Duration {
	return time.Duration(c.Pulse.MinScoutIntervalMinutes) * time.Minute
}

// HeartbeatInterval returns the pulse heartbeat interval
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Pulse.HeartbeatIntervalHours) * time.Hour
}

// ServerAddr returns the gateway listen address
func (c *Config) ServerAddr() string {
	port := c.Server.Port
	if port == 0 {
		port = DefaultServerPort
	}
	return fmt.Sprintf(":%d", port)
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: {Backend: %s, Path: %s}, Cairn: %s, Server: {Port: %d}}",
		c.Store.Backend, c.Store.Path, c.Cairn.Dir, c.Server.Port)
}
