// Package ots anchors commits with OpenTimestamps proofs: it submits commit
// digests to public calendars, keeps one detached proof per commit, and
// upgrades pending proofs once a calendar has a blockchain attestation.
package ots

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/internal/httpclient"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// DefaultCalendars are the aggregation calendars tried in order.
var DefaultCalendars = []string{
	"https://a.pool.opentimestamps.org",
	"https://b.pool.opentimestamps.org",
	"https://a.pool.eternitywall.com",
	"https://ots.btc.catallaxy.com",
}

// Defaults for Config.
const (
	DefaultTimeout           = 10 * time.Second
	DefaultMinAge            = 2 * time.Hour
	DefaultRequestsPerMinute = 60
	ProofExtension           = ".ots"
	maxResponseBytes         = 1 << 16
	acceptHeader             = "application/vnd.opentimestamps.v1"
)

// Config configures a ProofStore.
type Config struct {
	Dir               string
	Calendars         []string         // Default: DefaultCalendars
	Client            httpclient.Doer  // Default: SSRF-guarded client with DefaultTimeout
	MinAge            time.Duration    // Default: DefaultMinAge
	RequestsPerMinute int              // Default: DefaultRequestsPerMinute
	Now               func() time.Time // Default: time.Now
}

// ProofStore keeps one detached proof per commit under Dir.
type ProofStore struct {
	dir       string
	calendars []string
	client    httpclient.Doer
	minAge    time.Duration
	limiter   *rate.Limiter
	now       func() time.Time
	log       *zap.SugaredLogger
}

// NewProofStore applies defaults to cfg.
func NewProofStore(cfg Config, log *zap.SugaredLogger) *ProofStore {
	if len(cfg.Calendars) == 0 {
		cfg.Calendars = DefaultCalendars
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.NewSaferClient(DefaultTimeout)
	}
	if cfg.MinAge == 0 {
		cfg.MinAge = DefaultMinAge
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	calendars := make([]string, len(cfg.Calendars))
	for i, c := range cfg.Calendars {
		calendars[i] = strings.TrimRight(c, "/")
	}
	return &ProofStore{
		dir:       cfg.Dir,
		calendars: calendars,
		client:    cfg.Client,
		minAge:    cfg.MinAge,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		now:       cfg.Now,
		log:       logger.OrNop(log),
	}
}

// CommitDigest is SHA-256 over the ASCII hex of the commit hash.
func CommitDigest(commit string) []byte {
	sum := sha256.Sum256([]byte(commit))
	return sum[:]
}

// ProofPath is {dir}/{commit[:10]}.ots.
func (s *ProofStore) ProofPath(commit string) string {
	name := commit
	if len(name) > 10 {
		name = name[:10]
	}
	return filepath.Join(s.dir, name+ProofExtension)
}

func validCommit(commit string) error {
	if len(commit) < 7 {
		return errors.Newf("commit hash %q is shorter than 7 characters", commit)
	}
	for _, c := range commit {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return errors.Newf("commit hash %q is not hex", commit)
		}
	}
	return nil
}

// StampCommit submits the commit digest to every calendar and writes the
// merged proof. An existing proof is returned without network access. When
// every calendar fails the result is "" with a nil error.
func (s *ProofStore) StampCommit(ctx context.Context, commit string) (string, error) {
	commit = strings.ToLower(strings.TrimSpace(commit))
	if err := validCommit(commit); err != nil {
		return "", err
	}
	path := s.ProofPath(commit)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	digest := CommitDigest(commit)
	proof, err := NewDetachedFile(digest)
	if err != nil {
		return "", err
	}

	accepted := 0
	for _, cal := range s.calendars {
		t, err := s.submit(ctx, cal, digest)
		if err != nil {
			s.log.Debugw("calendar submit failed",
				logger.FieldSymbol, sym.Anchor,
				logger.FieldCalendar, cal,
				logger.FieldCommit, commit,
				logger.FieldError, err)
			continue
		}
		if err := proof.Timestamp.Merge(t); err != nil {
			s.log.Debugw("calendar reply does not commit to digest",
				logger.FieldCalendar, cal,
				logger.FieldError, err)
			continue
		}
		accepted++
	}
	if accepted == 0 {
		s.log.Infow("no calendar reachable, commit left unanchored",
			logger.FieldSymbol, sym.Anchor,
			logger.FieldCommit, commit)
		return "", nil
	}

	data, err := proof.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "serialize proof")
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	s.log.Infow("commit anchored",
		logger.FieldSymbol, sym.Anchor,
		logger.FieldCommit, commit,
		logger.FieldFile, path,
		logger.FieldCount, accepted)
	return path, nil
}

func (s *ProofStore) submit(ctx context.Context, cal string, digest []byte) (*Timestamp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cal+"/digest", bytes.NewReader(digest))
	if err != nil {
		return nil, errors.Wrap(err, "build digest request")
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, status, err := s.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Newf("calendar returned HTTP %d", status)
	}
	return ParseTimestamp(body, digest)
}

func (s *ProofStore) do(req *http.Request) ([]byte, int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "%s %s", req.Method, req.URL)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read calendar response")
	}
	return body, resp.StatusCode, nil
}

// Status classifies a proof file.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusError     Status = "error"
)

// Verification is the result of VerifyProof.
type Verification struct {
	Status       Status
	Attestations []Attestation
	Err          error
}

// VerifyProof reads a proof and classifies it: confirmed when any attestation
// is a blockchain-header attestation, pending when only calendar promises are
// present, error otherwise.
func VerifyProof(path string) Verification {
	data, err := os.ReadFile(path)
	if err != nil {
		return Verification{Status: StatusError, Err: errors.Wrapf(err, "read %s", path)}
	}
	proof, err := ParseDetachedFile(data)
	if err != nil {
		return Verification{Status: StatusError, Err: err}
	}
	v := Verification{Status: StatusError}
	pending := false
	for _, l := range proof.Timestamp.Leaves() {
		v.Attestations = append(v.Attestations, l.Attestation)
		if l.Attestation.IsConfirmed() {
			v.Status = StatusConfirmed
		}
		if l.Attestation.IsPending() {
			pending = true
		}
	}
	if v.Status != StatusConfirmed && pending {
		v.Status = StatusPending
	}
	if v.Status == StatusError {
		v.Err = errors.New("proof has no recognised attestation")
	}
	return v
}

// UpgradePendingProofs asks calendars for the completed form of every pending
// attestation in proofs older than the minimum age. Upgraded subtrees are
// merged at the node whose message is the pending commitment. Failures are
// logged and skipped per file. Returns the upgraded file names, sorted.
func (s *ProofStore) UpgradePendingProofs(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		dir = s.dir
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	upgraded := []string{}
	cutoff := s.now().Add(-s.minAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ProofExtension) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return upgraded, err
		}
		path := filepath.Join(dir, e.Name())
		ok, err := s.upgradeFile(ctx, path)
		if err != nil {
			s.log.Debugw("proof upgrade skipped",
				logger.FieldSymbol, sym.Anchor,
				logger.FieldFile, path,
				logger.FieldError, err)
			continue
		}
		if ok {
			upgraded = append(upgraded, e.Name())
		}
	}
	sort.Strings(upgraded)
	return upgraded, nil
}

func (s *ProofStore) upgradeFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "read %s", path)
	}
	proof, err := ParseDetachedFile(data)
	if err != nil {
		return false, err
	}

	before, err := proof.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "serialize proof")
	}
	for _, leaf := range proof.Timestamp.Leaves() {
		if !leaf.Attestation.IsPending() {
			continue
		}
		// Already upgraded on an earlier pass.
		if node := proof.Timestamp.Find(leaf.Msg); node != nil && node.Confirmed() {
			continue
		}
		reply, err := s.fetchUpgrade(ctx, leaf.Attestation.URI, leaf.Msg)
		if err != nil {
			s.log.Debugw("calendar has no upgrade yet",
				logger.FieldCalendar, leaf.Attestation.URI,
				logger.FieldFile, path,
				logger.FieldError, err)
			continue
		}
		if !reply.Confirmed() {
			continue
		}
		node := proof.Timestamp.Find(leaf.Msg)
		if node == nil {
			continue
		}
		if err := node.Merge(reply); err != nil {
			return false, err
		}
	}

	out, err := proof.MarshalBinary()
	if err != nil {
		return false, errors.Wrap(err, "serialize upgraded proof")
	}
	if bytes.Equal(before, out) {
		return false, nil
	}
	if err := writeFileAtomic(path, out); err != nil {
		return false, err
	}
	s.log.Infow("proof upgraded",
		logger.FieldSymbol, sym.Anchor,
		logger.FieldFile, path)
	return true, nil
}

func (s *ProofStore) fetchUpgrade(ctx context.Context, uri string, commitment []byte) (*Timestamp, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := strings.TrimRight(uri, "/") + "/timestamp/" + hex.EncodeToString(commitment)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build upgrade request")
	}
	req.Header.Set("Accept", acceptHeader)
	body, status, err := s.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Newf("calendar returned HTTP %d", status)
	}
	return ParseTimestamp(body, commitment)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".proof-*")
	if err != nil {
		return errors.Wrap(err, "create temp proof")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write temp proof")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp proof")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "rename proof to %s", path)
	}
	return nil
}
