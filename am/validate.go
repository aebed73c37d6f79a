package am

import (
	"net/url"

	"github.com/teranos/yanantin/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite, BackendBadger:
		if c.Store.Path == "" {
			return errors.Newf("store.path cannot be empty for the %s backend", c.Store.Backend)
		}
	case BackendRemote:
		if c.Store.GatewayURL == "" {
			return errors.New("store.gateway_url cannot be empty for the remote backend")
		}
		u, err := url.Parse(c.Store.GatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Newf("store.gateway_url must be an http(s) URL, got %q", c.Store.GatewayURL)
		}
	default:
		err := errors.Newf("store.backend %q is not supported", c.Store.Backend)
		return errors.WithHint(err, "use memory, sqlite, badger or remote")
	}
	if c.Store.TimeoutSeconds < 0 {
		return errors.Newf("store.timeout_seconds must be >= 0, got %d", c.Store.TimeoutSeconds)
	}

	// Server port: 0 = default, negative or above 65535 = invalid
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Cairn.ReportLimit < 0 {
		return errors.Newf("cairn.report_limit must be >= 0, got %d", c.Cairn.ReportLimit)
	}

	if c.OTS.TimeoutSeconds < 0 {
		return errors.Newf("ots.timeout_seconds must be >= 0, got %d", c.OTS.TimeoutSeconds)
	}
	if c.OTS.MinAgeMinutes < 0 {
		return errors.Newf("ots.min_age_minutes must be >= 0, got %d", c.OTS.MinAgeMinutes)
	}
	if c.OTS.RequestsPerMinute < 0 {
		return errors.Newf("ots.requests_per_minute must be >= 0, got %d", c.OTS.RequestsPerMinute)
	}

	if c.Pulse.MinScoutIntervalMinutes < 0 {
		return errors.Newf("pulse.min_scout_interval_minutes must be >= 0, got %d", c.Pulse.MinScoutIntervalMinutes)
	}
	if c.Pulse.HeartbeatIntervalHours < 0 {
		return errors.Newf("pulse.heartbeat_interval_hours must be >= 0, got %d", c.Pulse.HeartbeatIntervalHours)
	}
	for itemType, line := range c.Pulse.Dispatchers {
		if line == "" {
			return errors.Newf("pulse.dispatchers.%s cannot be empty (remove the entry instead)", itemType)
		}
	}

	// Capture windows: 0 = default, negative = invalid
	if c.Capture.HeadBudgetBytes < 0 {
		return errors.Newf("capture.head_budget_bytes must be >= 0, got %d", c.Capture.HeadBudgetBytes)
	}
	if c.Capture.TailWindowBytes < 0 {
		return errors.Newf("capture.tail_window_bytes must be >= 0, got %d", c.Capture.TailWindowBytes)
	}

	return nil
}
