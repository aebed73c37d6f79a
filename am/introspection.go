package am

import (
	"os"
	"sort"
	"strings"

	"github.com/teranos/yanantin/errors"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/yanantin/am.toml
	SourceUser        ConfigSource = "user"        // ~/.yanantin/am.toml
	SourceProject     ConfigSource = "project"     // am.toml in the working tree
	SourceEnvironment ConfigSource = "environment" // YANANTIN_* env vars
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // file path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// ConfigIntrospection provides metadata about the active configuration
type ConfigIntrospection struct {
	ConfigFile string        `json:"config_file"`
	Settings   []SettingInfo `json:"settings"`
}

// GetConfigIntrospection reports every effective setting with the source
// recorded while loading
func GetConfigIntrospection() (*ConfigIntrospection, error) {
	if _, err := Load(); err != nil {
		return nil, errors.Wrap(err, "failed to load config for introspection")
	}
	v := GetViper()

	mu.Lock()
	introspection := &ConfigIntrospection{ConfigFile: activeFile}
	sources := ConfigSources
	mu.Unlock()

	flattenSettingsWithSources(v.AllSettings(), "", introspection, sources)
	return introspection, nil
}

// EnvKey returns the environment variable that overrides key
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// markSettingsFromSource records src for every leaf key in settings
func markSettingsFromSource(settings map[string]interface{}, prefix string, src ConfigSource, path string, out map[string]SourceInfo) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			markSettingsFromSource(nested, fullKey, src, path, out)
			continue
		}
		out[fullKey] = SourceInfo{Source: src, Path: path}
	}
}

func flattenSettingsWithSources(settings map[string]interface{}, prefix string, introspection *ConfigIntrospection, sourceMap map[string]SourceInfo) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nestedMap, ok := value.(map[string]interface{}); ok {
			flattenSettingsWithSources(nestedMap, fullKey, introspection, sourceMap)
			continue
		}

		sourceInfo := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sourceMap[fullKey]; ok {
			sourceInfo = si
		}

		// Environment always wins
		envKey := EnvKey(fullKey)
		if envValue := os.Getenv(envKey); envValue != "" {
			sourceInfo = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		introspection.Settings = append(introspection.Settings, SettingInfo{
			Key:        fullKey,
			Value:      redact(fullKey, value),
			Source:     sourceInfo.Source,
			SourcePath: sourceInfo.Path,
		})
	}
}

// redact hides secrets from introspection output
func redact(key string, value interface{}) interface{} {
	if strings.HasSuffix(key, "api_key") {
		if s, ok := value.(string); ok && s != "" {
			return "********"
		}
	}
	return value
}

// GetConfigSummary counts effective settings per source
func GetConfigSummary() map[string]interface{} {
	counts := map[string]int{}
	summary := map[string]interface{}{"sources": counts}

	introspection, err := GetConfigIntrospection()
	if err != nil {
		return summary
	}
	summary["config_file"] = introspection.ConfigFile
	for _, setting := range introspection.Settings {
		counts[string(setting.Source)]++
	}
	return summary
}
