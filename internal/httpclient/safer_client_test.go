package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSaferClientDefaults(t *testing.T) {
	client := NewSaferClient(30 * time.Second)

	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.Equal(t, 10, client.maxRedirects)
	assert.True(t, client.blockPrivateIP)
	assert.Equal(t, []string{"http", "https"}, client.allowedSchemes)
}

func TestValidateURL(t *testing.T) {
	client := NewSaferClient(30 * time.Second)

	tests := []struct {
		name        string
		url         string
		errContains string
	}{
		{"https calendar", "https://a.pool.opentimestamps.org/digest", ""},
		{"http calendar", "http://example.com", ""},
		{"file scheme", "file:///etc/passwd", "scheme"},
		{"ftp scheme", "ftp://example.com", "scheme"},
		{"localhost", "http://localhost/admin", "localhost"},
		{"localhost subdomain", "http://calendar.localhost/", "localhost"},
		{"loopback v4", "http://127.0.0.1:8080/", "private"},
		{"rfc1918", "http://192.168.1.10/", "private"},
		{"cgnat", "http://100.64.0.1/", "private"},
		{"link-local metadata", "http://169.254.169.254/latest/meta-data", "private"},
		{"loopback v6", "http://[::1]/", "private"},
		{"unique local v6", "http://[fd00::1]/", "private"},
		{"mapped v4", "http://[::ffff:10.0.0.1]/", "private"},
		{"userinfo", "http://evil.com@example.com/", "userinfo"},
		{"missing host", "http:///path", "hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ValidateURL(tt.url)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestPrivateBlockingCanBeDisabled(t *testing.T) {
	off := false
	client := NewSaferClientWithOptions(time.Second, SaferClientOptions{BlockPrivateIP: &off})

	_, err := client.ValidateURL("http://127.0.0.1:9999/")
	assert.NoError(t, err)

	_, err = client.ValidateURL("gopher://127.0.0.1/")
	assert.Error(t, err)
}

func TestIsPrivateAddr(t *testing.T) {
	assert.True(t, isPrivateAddr(netip.MustParseAddr("10.1.2.3")))
	assert.True(t, isPrivateAddr(netip.MustParseAddr("fe80::1")))
	assert.True(t, isPrivateAddr(netip.MustParseAddr("2001:db8::1")))
	assert.False(t, isPrivateAddr(netip.MustParseAddr("8.8.8.8")))
	assert.False(t, isPrivateAddr(netip.MustParseAddr("2606:4700::1111")))
}

func TestDoSetsUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := WrapClient(server.Client())
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "yanantin-test", gotAgent)
}

func TestDoBlocksLoopbackByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := NewSaferClient(time.Second)
	_, err := client.Get(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSRF")
}

func TestRedirectLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer server.Close()

	off := false
	two := 2
	client := NewSaferClientWithOptions(time.Second, SaferClientOptions{BlockPrivateIP: &off, MaxRedirects: &two})
	_, err := client.Get(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
}

var _ Doer = (*SaferClient)(nil)
var _ Doer = (*http.Client)(nil)
