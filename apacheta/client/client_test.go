package client

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/gateway"
	"github.com/teranos/yanantin/apacheta/memory"
	"github.com/teranos/yanantin/apacheta/storetest"
	"github.com/teranos/yanantin/errors"
)

func newRemote(t *testing.T, store apacheta.TensorStore, opts ...gateway.Option) *Client {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	gw, err := gateway.New(store, log, opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/", HTTPClient: srv.Client()}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConformanceOverGateway(t *testing.T) {
	storetest.Run(t, func(t *testing.T) apacheta.TensorStore {
		return newRemote(t, memory.New(zaptest.NewLogger(t).Sugar()))
	})
}

func TestNewNormalizesBaseURL(t *testing.T) {
	c, err := New(Options{BaseURL: "http://gateway.local:8080///"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://gateway.local:8080", c.BaseURL())

	for _, bad := range []string{"", "gateway.local", "ftp://gateway.local", "http://"} {
		_, err := New(Options{BaseURL: bad}, nil)
		assert.Error(t, err, bad)
	}
}

func TestStatusToFault(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusNotFound, errors.IsNotFoundError},
		{http.StatusConflict, errors.IsImmutable},
		{http.StatusForbidden, errors.IsAccessDenied},
		{http.StatusBadRequest, errors.IsInterfaceVersion},
		{http.StatusInternalServerError, errors.IsStoreError},
		{http.StatusBadGateway, errors.IsStoreError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"scripted"}`, tt.status)
			}))
			defer srv.Close()
			c, err := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()}, nil)
			require.NoError(t, err)

			err = c.StoreTensor(storetest.NewFixture().T1)
			assert.True(t, tt.check(err), "write: %v", err)
			_, err = c.GetTensor(storetest.ID("t1"))
			assert.True(t, tt.check(err), "read: %v", err)
		})
	}
}

func TestHeadersAndLocalVersion(t *testing.T) {
	var gotKey, gotVersion, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(apacheta.HeaderAPIKey)
		gotVersion = r.Header.Get(apacheta.HeaderInterfaceVersion)
		gotPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tensors":0}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()}, nil)
	require.NoError(t, err)

	counts, err := c.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 0, counts["tensors"])
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, apacheta.InterfaceVersion, gotVersion)
	assert.Equal(t, "/api/v1/counts", gotPath)

	_, _ = c.ClaimsAbout("error handling")
	assert.Equal(t, "/api/v1/queries/claims_about?topic=error+handling", gotPath)

	assert.Equal(t, apacheta.InterfaceVersion, c.GetInterfaceVersion())
	assert.True(t, c.CheckAccess("anyone", "delete_everything", ""))
}

func TestAPIKeyEnforcedByGateway(t *testing.T) {
	store := memory.New(nil)
	c := newRemote(t, store, gateway.WithAPIKey("sekret"))
	_, err := c.CountRecords()
	assert.True(t, errors.IsAccessDenied(err), "got %v", err)
}

func TestNonFiniteFailsBeforeNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	c, err := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()}, nil)
	require.NoError(t, err)

	tensor := storetest.NewFixture().T1
	nan := math.NaN()
	tensor.Provenance.ContextBudgetAtWrite = &nan
	err = c.StoreTensor(tensor)
	assert.True(t, errors.IsStoreError(err), "got %v", err)
	assert.Zero(t, calls)
}

func TestServerVersion(t *testing.T) {
	c := newRemote(t, memory.New(nil))
	v, err := c.ServerVersion()
	require.NoError(t, err)
	assert.Equal(t, apacheta.InterfaceVersion, v)
}
