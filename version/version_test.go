package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	info := Info{CommitHash: "0123456789abcdef", BuildTime: "2026-01-01", Version: "dev"}
	assert.Equal(t, "yanantin dev (commit 0123456789abcdef, built 2026-01-01)", info.String())
	assert.Equal(t, "0123456", info.Short())

	info.Version = "v0.4.0"
	assert.Equal(t, "yanantin v0.4.0 (commit 0123456789abcdef, built 2026-01-01)", info.String())
}

func TestShortKeepsShortHashes(t *testing.T) {
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestProvenanceAndUserAgent(t *testing.T) {
	tests := []struct {
		name      string
		info      Info
		wantProv  string
		wantAgent string
	}{
		{"tagged", Info{Version: "v0.4.0", CommitHash: "0123456789abcdef"}, "v0.4.0", "yanantin/v0.4.0"},
		{"dev build", Info{Version: "dev", CommitHash: "0123456789abcdef"}, "dev+0123456", "yanantin/dev+0123456"},
		{"empty version", Info{CommitHash: "dev"}, "dev+dev", "yanantin/dev+dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantProv, tt.info.Provenance())
			assert.Equal(t, tt.wantAgent, tt.info.UserAgent())
		})
	}
}
