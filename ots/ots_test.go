package ots

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/internal/httpclient"
)

func TestVaruint(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 32, 1<<64 - 1} {
		var w writer
		w.varuint(v)
		got, err := newReader(bytes.NewReader(w.buf.Bytes())).varuint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	var w writer
	w.varuint(300)
	assert.Equal(t, []byte{0xac, 0x02}, w.buf.Bytes())
}

func TestOpsApply(t *testing.T) {
	tests := []struct {
		op   Op
		msg  string
		want string
	}{
		{Op{Tag: OpSHA1}, "", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{Op{Tag: OpRIPEMD160}, "", "9c1185a5c5e9fc54612808977ee8f548b2258d31"},
		{Op{Tag: OpSHA256}, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{Op{Tag: OpKECCAK256}, "", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{Append([]byte{0xbb}), "aa", "aabb"},
		{Prepend([]byte{0xbb}), "aa", "bbaa"},
		{Op{Tag: OpReverse}, "0102", "0201"},
		{Op{Tag: OpHexlify}, "ab", hex.EncodeToString([]byte("ab"))},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			msg, err := hex.DecodeString(tt.msg)
			require.NoError(t, err)
			out, err := tt.op.Apply(msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(out))
		})
	}

	_, err := Op{Tag: OpReverse}.Apply(nil)
	assert.True(t, errors.Is(err, ErrBadProof))
}

func sampleTimestamp(t *testing.T, msg []byte) *Timestamp {
	t.Helper()
	ts := NewTimestamp(msg)
	a, err := ts.Add(Append([]byte("nonce-a")))
	require.NoError(t, err)
	a, err = a.Add(SHA256())
	require.NoError(t, err)
	a.Attest(PendingAttestation("https://a.pool.opentimestamps.org"))

	b, err := ts.Add(Prepend([]byte("nonce-b")))
	require.NoError(t, err)
	b, err = b.Add(SHA256())
	require.NoError(t, err)
	b.Attest(BitcoinAttestation(800000))
	b.Attest(Attestation{Tag: AttestationTag{1, 2, 3, 4, 5, 6, 7, 8}, Payload: []byte("opaque")})
	return ts
}

func TestTimestampRoundTrip(t *testing.T) {
	msg := CommitDigest("abcdef1234567")
	ts := sampleTimestamp(t, msg)

	data, err := ts.MarshalBinary()
	require.NoError(t, err)
	back, err := ParseTimestamp(data, msg)
	require.NoError(t, err)

	again, err := back.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	leaves := back.Leaves()
	require.Len(t, leaves, 3)
	var unknown int
	for _, l := range leaves {
		if !l.Attestation.IsPending() && !l.Attestation.IsConfirmed() {
			unknown++
			assert.Equal(t, []byte("opaque"), l.Attestation.Payload)
		}
	}
	assert.Equal(t, 1, unknown)
	assert.True(t, back.Confirmed())
}

func TestDetachedFileRoundTrip(t *testing.T) {
	digest := CommitDigest("abcdef1234567")
	proof, err := NewDetachedFile(digest)
	require.NoError(t, err)
	proof.Timestamp = sampleTimestamp(t, digest)

	data, err := proof.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, HeaderMagic))

	back, err := ParseDetachedFile(data)
	require.NoError(t, err)
	assert.Equal(t, digest, back.Digest())

	_, err = NewDetachedFile([]byte("short"))
	assert.Error(t, err)
}

func TestParseRejectsMalformed(t *testing.T) {
	digest := CommitDigest("abcdef1234567")
	proof := &DetachedFile{Timestamp: sampleTimestamp(t, digest)}
	good, err := proof.MarshalBinary()
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte("not a proof at all, clearly"), good[len(HeaderMagic):]...),
		"truncated": good[:len(good)-3],
		"trailing":  append(append([]byte(nil), good...), 0x00),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDetachedFile(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBadProof), err.Error())
		})
	}
}

func TestMergeRequiresSameMessage(t *testing.T) {
	a := NewTimestamp([]byte("a"))
	b := NewTimestamp([]byte("b"))
	assert.Error(t, a.Merge(b))
}

// calendar fakes an aggregation calendar. Submissions get a pending
// attestation; upgrade requests get a bitcoin attestation once confirmed.
type calendar struct {
	server    *httptest.Server
	confirmed atomic.Bool
	submits   atomic.Int32
	upgrades  atomic.Int32
}

func newCalendar(t *testing.T) *calendar {
	c := &calendar{}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/digest":
			c.submits.Add(1)
			digest, _ := io.ReadAll(r.Body)
			ts := NewTimestamp(digest)
			leaf, _ := ts.Add(Append([]byte(c.server.URL)))
			leaf, _ = leaf.Add(SHA256())
			leaf.Attest(PendingAttestation(c.server.URL))
			data, _ := ts.MarshalBinary()
			_, _ = w.Write(data)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/timestamp/"):
			c.upgrades.Add(1)
			if !c.confirmed.Load() {
				http.Error(w, "pending", http.StatusNotFound)
				return
			}
			commitment, err := hex.DecodeString(strings.TrimPrefix(r.URL.Path, "/timestamp/"))
			if err != nil {
				http.Error(w, "bad commitment", http.StatusBadRequest)
				return
			}
			ts := NewTimestamp(commitment)
			leaf, _ := ts.Add(Prepend([]byte("block")))
			leaf, _ = leaf.Add(SHA256())
			leaf.Attest(BitcoinAttestation(840000))
			data, _ := ts.MarshalBinary()
			_, _ = w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(c.server.Close)
	return c
}

func newTestStore(t *testing.T, dir string, calendars []string, now func() time.Time) *ProofStore {
	return NewProofStore(Config{
		Dir:               dir,
		Calendars:         calendars,
		Client:            httpclient.WrapClient(&http.Client{Timeout: 5 * time.Second}),
		Now:               now,
		RequestsPerMinute: 6000,
	}, zaptest.NewLogger(t).Sugar())
}

const commit = "0123456789abcdef0123456789abcdef01234567"

func TestStampVerifyUpgrade(t *testing.T) {
	dir := t.TempDir()
	cal1 := newCalendar(t)
	cal2 := newCalendar(t)
	now := time.Now()
	store := newTestStore(t, dir, []string{cal1.server.URL, cal2.server.URL + "/"}, func() time.Time { return now })
	ctx := context.Background()

	path, err := store.StampCommit(ctx, commit)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "0123456789.ots"), path)
	assert.Equal(t, int32(1), cal1.submits.Load())
	assert.Equal(t, int32(1), cal2.submits.Load())

	v := VerifyProof(path)
	assert.Equal(t, StatusPending, v.Status)
	assert.Len(t, v.Attestations, 2)

	// Existing proof is returned without network.
	again, err := store.StampCommit(ctx, commit)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), cal1.submits.Load())

	// Too young to upgrade.
	upgraded, err := store.UpgradePendingProofs(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, upgraded)
	assert.Equal(t, int32(0), cal1.upgrades.Load())

	now = now.Add(3 * time.Hour)
	upgraded, err = store.UpgradePendingProofs(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, upgraded, "calendars still pending")

	cal1.confirmed.Store(true)
	upgraded, err = store.UpgradePendingProofs(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0123456789.ots"}, upgraded)

	v = VerifyProof(path)
	assert.Equal(t, StatusConfirmed, v.Status)

	// A confirmed commitment is not sent back to its calendar and the
	// file is left alone.
	confirmedBytes, err := os.ReadFile(path)
	require.NoError(t, err)
	cal1Calls := cal1.upgrades.Load()
	upgraded, err = store.UpgradePendingProofs(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, upgraded)
	assert.Equal(t, cal1Calls, cal1.upgrades.Load())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, confirmedBytes, after)

	// The bitcoin attestation hangs below cal1's pending commitment.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	proof, err := ParseDetachedFile(data)
	require.NoError(t, err)
	for _, l := range proof.Timestamp.Leaves() {
		if l.Attestation.IsPending() && l.Attestation.URI == cal1.server.URL {
			node := proof.Timestamp.Find(l.Msg)
			require.NotNil(t, node)
			assert.True(t, node.Confirmed())
		}
	}
}

func TestStampAllCalendarsDown(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	dir := t.TempDir()
	store := newTestStore(t, dir, []string{dead.URL}, nil)
	path, err := store.StampCommit(context.Background(), commit)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStampRejectsBadCommit(t *testing.T) {
	store := newTestStore(t, t.TempDir(), []string{"http://unused"}, nil)
	_, err := store.StampCommit(context.Background(), "abc")
	assert.Error(t, err)
	_, err = store.StampCommit(context.Background(), "zzzzzzzz")
	assert.Error(t, err)
}

func TestVerifyProofErrors(t *testing.T) {
	dir := t.TempDir()
	v := VerifyProof(filepath.Join(dir, "missing.ots"))
	assert.Equal(t, StatusError, v.Status)
	assert.Error(t, v.Err)

	garbage := filepath.Join(dir, "garbage.ots")
	require.NoError(t, os.WriteFile(garbage, []byte("garbage"), 0o644))
	assert.Equal(t, StatusError, VerifyProof(garbage).Status)
}

func TestUpgradeSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.ots"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	store := newTestStore(t, dir, nil, func() time.Time { return time.Now().Add(24 * time.Hour) })
	upgraded, err := store.UpgradePendingProofs(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, upgraded)

	upgraded, err = store.UpgradePendingProofs(context.Background(), filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, upgraded)
}
