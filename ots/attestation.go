package ots

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/teranos/yanantin/errors"
)

// AttestationTag is the 8-byte attestation type tag.
type AttestationTag [8]byte

func mustTag(s string) AttestationTag {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 8 {
		panic("bad attestation tag " + s)
	}
	var t AttestationTag
	copy(t[:], b)
	return t
}

// Known attestation tags.
var (
	TagPending  = mustTag("83dfe30d2ef90c8e")
	TagBitcoin  = mustTag("0588960d73d71901")
	TagLitecoin = mustTag("06869a0d73d71b45")
	TagEthereum = mustTag("30fe8087b5c7ead7")
)

// Attestation is a leaf of the timestamp tree. Pending attestations carry a
// calendar URI; block-header attestations carry a height. Unknown tags keep
// their raw payload so they survive a round trip.
type Attestation struct {
	Tag     AttestationTag
	URI     string
	Height  uint64
	Payload []byte
}

// PendingAttestation returns a pending attestation naming uri.
func PendingAttestation(uri string) Attestation {
	return Attestation{Tag: TagPending, URI: uri}
}

// BitcoinAttestation returns a bitcoin block-header attestation.
func BitcoinAttestation(height uint64) Attestation {
	return Attestation{Tag: TagBitcoin, Height: height}
}

// IsPending reports whether the attestation is a calendar promise.
func (a Attestation) IsPending() bool { return a.Tag == TagPending }

// IsConfirmed reports whether the attestation is a blockchain-header attestation.
func (a Attestation) IsConfirmed() bool {
	return a.Tag == TagBitcoin || a.Tag == TagLitecoin || a.Tag == TagEthereum
}

func (a Attestation) String() string {
	switch a.Tag {
	case TagPending:
		return "pending " + a.URI
	case TagBitcoin:
		return fmt.Sprintf("bitcoin block %d", a.Height)
	case TagLitecoin:
		return fmt.Sprintf("litecoin block %d", a.Height)
	case TagEthereum:
		return fmt.Sprintf("ethereum block %d", a.Height)
	}
	return "unknown " + hex.EncodeToString(a.Tag[:])
}

func (a Attestation) payload() []byte {
	var w writer
	switch {
	case a.IsPending():
		w.varbytes([]byte(a.URI))
	case a.IsConfirmed():
		w.varuint(a.Height)
	default:
		return a.Payload
	}
	return w.buf.Bytes()
}

func (a Attestation) serialize(w *writer) {
	w.bytes(a.Tag[:])
	w.varbytes(a.payload())
}

// compare orders attestations by tag, then payload.
func (a Attestation) compare(other Attestation) int {
	if c := bytes.Compare(a.Tag[:], other.Tag[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.payload(), other.payload())
}

// Equal reports whether two attestations serialize identically.
func (a Attestation) Equal(other Attestation) bool { return a.compare(other) == 0 }

const maxURILength = 1000

func readAttestation(r *reader) (Attestation, error) {
	raw, err := r.bytes(8)
	if err != nil {
		return Attestation{}, err
	}
	var a Attestation
	copy(a.Tag[:], raw)
	payload, err := r.varbytes(MaxPayloadLength)
	if err != nil {
		return Attestation{}, err
	}

	inner := newReader(bytes.NewReader(payload))
	switch {
	case a.IsPending():
		uri, err := inner.varbytes(maxURILength)
		if err != nil {
			return Attestation{}, err
		}
		if err := validURI(uri); err != nil {
			return Attestation{}, err
		}
		a.URI = string(uri)
	case a.IsConfirmed():
		h, err := inner.varuint()
		if err != nil {
			return Attestation{}, err
		}
		a.Height = h
	default:
		a.Payload = payload
		return a, nil
	}
	if !inner.atEOF() {
		return Attestation{}, errors.Mark(errors.New("trailing bytes in attestation payload"), ErrBadProof)
	}
	return a, nil
}

// validURI accepts the character set calendars use in pending attestations.
func validURI(uri []byte) error {
	for _, c := range uri {
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '.' || c == '-' || c == '_' || c == '/' || c == ':'
		if !ok {
			return errors.Mark(errors.Newf("invalid character %q in calendar URI", c), ErrBadProof)
		}
	}
	return nil
}
