package docstore

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/storetest"
	"github.com/teranos/yanantin/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) apacheta.TensorStore {
		return newTestStore(t)
	})
}

func TestDocumentsCarryEngineMetadata(t *testing.T) {
	s := newTestStore(t)
	f := storetest.NewFixture()
	require.NoError(t, s.StoreTensor(f.T1))

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(models.KindTensor, f.T1.ID.String()))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"_collection":"tensors"`)
	assert.Contains(t, string(raw), `"_seq":1`)

	got, err := s.GetTensor(f.T1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.T1, got)
}

func TestStorageOrderIsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	names := []string{"zeta", "alpha", "mid", "omega", "beta"}
	for _, name := range names {
		require.NoError(t, s.StoreTensor(storetest.Tensor(name, "claude", storetest.NewFixture().T1.Provenance.Timestamp, []string{})))
	}

	list, err := s.ListTensors()
	require.NoError(t, err)
	require.Len(t, list, len(names))
	for i, name := range names {
		assert.Equal(t, storetest.ID(name), list[i].ID)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	f := storetest.NewFixture()

	s, err := Open(Options{Dir: dir}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	storetest.Populate(t, s, f)
	require.NoError(t, s.Close())

	reopened, err := Open(Options{Dir: dir}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	counts, err := reopened.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 3, counts["tensors"])

	err = reopened.StoreDissent(f.Dissent)
	assert.True(t, errors.IsImmutable(err), "got %v", err)

	// Sequence continues after reopen.
	extra := storetest.Tensor("T9", "claude", f.T1.Provenance.Timestamp, []string{})
	require.NoError(t, reopened.StoreTensor(extra))
	list, err := reopened.ListTensors()
	require.NoError(t, err)
	assert.Equal(t, extra.ID, list[len(list)-1].ID)
}

func TestStripRemovesOnlyMetadata(t *testing.T) {
	doc, err := wrap([]byte(`{"id":"x","narrative_body":"_seq"}`), models.KindTensor, "x", 7)
	require.NoError(t, err)

	seq, record, err := strip(doc)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)
	assert.JSONEq(t, `{"id":"x","narrative_body":"_seq"}`, string(record))
}
