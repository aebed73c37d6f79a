package ots

import (
	"bufio"
	"bytes"
	"crypto/sha256"

	"github.com/teranos/yanantin/errors"
)

// HeaderMagic opens every detached timestamp file.
var HeaderMagic = []byte("\x00OpenTimestamps\x00\x00Proof\x00\xbf\x89\xe2\xe8\x84\xe8\x92\x94")

// MajorVersion is the detached file format version written and accepted.
const MajorVersion = 1

// DetachedFile is a proof for one sha256 file digest.
type DetachedFile struct {
	Timestamp *Timestamp
}

// NewDetachedFile returns a proof skeleton for a sha256 digest.
func NewDetachedFile(digest []byte) (*DetachedFile, error) {
	if len(digest) != sha256.Size {
		return nil, errors.Newf("digest must be %d bytes, got %d", sha256.Size, len(digest))
	}
	return &DetachedFile{Timestamp: NewTimestamp(digest)}, nil
}

// Digest is the committed file digest.
func (d *DetachedFile) Digest() []byte { return d.Timestamp.Msg }

// MarshalBinary writes header, version, hash op, digest and tree.
func (d *DetachedFile) MarshalBinary() ([]byte, error) {
	var w writer
	w.bytes(HeaderMagic)
	w.varuint(MajorVersion)
	w.byte(OpSHA256)
	w.bytes(d.Timestamp.Msg)
	if err := d.Timestamp.serialize(&w); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// ParseDetachedFile decodes a detached proof.
func ParseDetachedFile(data []byte) (*DetachedFile, error) {
	r := &reader{r: bufio.NewReader(bytes.NewReader(data))}

	magic, err := r.bytes(len(HeaderMagic))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, HeaderMagic) {
		return nil, errors.Mark(errors.New("not an OpenTimestamps proof"), ErrBadProof)
	}
	version, err := r.varuint()
	if err != nil {
		return nil, err
	}
	if version != MajorVersion {
		return nil, errors.Mark(errors.Newf("unsupported proof version %d", version), ErrBadProof)
	}
	op, err := r.byte()
	if err != nil {
		return nil, err
	}
	if op != OpSHA256 {
		return nil, errors.Mark(errors.Newf("unsupported file hash op 0x%02x", op), ErrBadProof)
	}
	digest, err := r.bytes(sha256.Size)
	if err != nil {
		return nil, err
	}
	t, err := readTimestamp(r, digest, MaxRecursion)
	if err != nil {
		return nil, err
	}
	if !r.atEOF() {
		return nil, errors.Mark(errors.New("trailing bytes after proof"), ErrBadProof)
	}
	return &DetachedFile{Timestamp: t}, nil
}
