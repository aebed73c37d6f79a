package storetest_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/client"
	"github.com/teranos/yanantin/apacheta/docstore"
	"github.com/teranos/yanantin/apacheta/gateway"
	"github.com/teranos/yanantin/apacheta/memory"
	"github.com/teranos/yanantin/apacheta/sqlstore"
	"github.com/teranos/yanantin/apacheta/storetest"
	dbtest "github.com/teranos/yanantin/internal/testing"
)

// Every backend fed the same writes must answer every read with the same bytes.
func TestBackendsAgreeByteForByte(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	badger, err := docstore.OpenInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = badger.Close() })

	gw, err := gateway.New(sqlstore.New(dbtest.CreateTestDB(t), log), log)
	require.NoError(t, err)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	remote, err := client.New(client.Options{BaseURL: srv.URL, HTTPClient: srv.Client()}, log)
	require.NoError(t, err)

	backends := []struct {
		name  string
		store apacheta.TensorStore
	}{
		{"memory", memory.New(log)},
		{"sqlite", sqlstore.New(dbtest.CreateTestDB(t), log)},
		{"badger", badger},
		{"remote", remote},
	}

	f := storetest.NewFixture()
	var reference []storetest.Observation
	for i, b := range backends {
		storetest.Populate(t, b.store, f)
		got := storetest.Observe(t, b.store, f)
		if i == 0 {
			reference = got
			require.NotEmpty(t, reference)
			continue
		}
		require.Len(t, got, len(reference), b.name)
		for j := range reference {
			assert.Equal(t, reference[j], got[j], "%s differs from memory", b.name)
		}
	}
}
