package ots

import (
	"bufio"
	"bytes"
	"io"

	"github.com/teranos/yanantin/errors"
)

// Limits applied while decoding untrusted proof bytes.
const (
	MaxMessageLength = 4096
	MaxPayloadLength = 8192
	MaxRecursion     = 256
)

// ErrBadProof marks bytes that do not decode as a proof.
var ErrBadProof = errors.New("malformed timestamp proof")

type reader struct {
	r *bufio.Reader
}

func newReader(r io.Reader) *reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &reader{r: br}
	}
	return &reader{r: bufio.NewReader(r)}
}

func (r *reader) byte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "unexpected end of proof"), ErrBadProof)
	}
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unexpected end of proof"), ErrBadProof)
	}
	return buf, nil
}

// varuint reads an unsigned LEB128 integer.
func (r *reader) varuint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, errors.Mark(errors.New("varuint overflow"), ErrBadProof)
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

func (r *reader) varbytes(max int) ([]byte, error) {
	n, err := r.varuint()
	if err != nil {
		return nil, err
	}
	if n > uint64(max) {
		return nil, errors.Mark(errors.Newf("varbytes length %d exceeds %d", n, max), ErrBadProof)
	}
	return r.bytes(int(n))
}

func (r *reader) atEOF() bool {
	_, err := r.r.Peek(1)
	return err == io.EOF
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte) { w.buf.WriteByte(b) }

func (w *writer) bytes(b []byte) { w.buf.Write(b) }

func (w *writer) varbytes(b []byte) {
	w.varuint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *writer) varuint(v uint64) {
	for v >= 0x80 {
		w.buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	w.buf.WriteByte(byte(v))
}
