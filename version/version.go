// Package version carries build information stamped in with ldflags:
//
//	-X github.com/teranos/yanantin/version.Version=v0.4.0
//	-X github.com/teranos/yanantin/version.CommitHash=$(git rev-parse HEAD)
//	-X github.com/teranos/yanantin/version.BuildTime=$(date -u +%FT%TZ)
package version

import (
	"fmt"
	"runtime"
)

// Name is the program name used in version strings and HTTP user agents.
const Name = "yanantin"

// Set at build time.
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info describes the running binary.
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the build information of this binary.
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Released reports whether the binary was built from a tagged version.
func (i Info) Released() bool {
	return i.Version != "" && i.Version != "dev"
}

func (i Info) String() string {
	v := i.Version
	if !i.Released() {
		v = "dev"
	}
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, v, i.CommitHash, i.BuildTime)
}

// Short is the commit hash cut to seven characters.
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// Provenance is the version recorded in the source identifiers of
// ingested tensors and woven edges. Untagged builds carry their commit so
// two dev builds can be told apart.
func (i Info) Provenance() string {
	if i.Released() {
		return i.Version
	}
	return "dev+" + i.Short()
}

// UserAgent is sent on outbound requests to calendars and gateways.
func (i Info) UserAgent() string {
	return Name + "/" + i.Provenance()
}
