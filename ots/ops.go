package ots

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // part of the proof format, not used for security decisions here
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // part of the proof format
	"golang.org/x/crypto/sha3"

	"github.com/teranos/yanantin/errors"
)

// Op tags.
const (
	OpSHA1      byte = 0x02
	OpRIPEMD160 byte = 0x03
	OpSHA256    byte = 0x08
	OpKECCAK256 byte = 0x67
	OpAppend    byte = 0xf0
	OpPrepend   byte = 0xf1
	OpReverse   byte = 0xf2
	OpHexlify   byte = 0xf3
)

// Op is one commitment operation. Arg is set only for append and prepend.
type Op struct {
	Tag byte
	Arg []byte
}

// SHA256 returns the sha256 op.
func SHA256() Op { return Op{Tag: OpSHA256} }

// Append returns an op that appends arg to the message.
func Append(arg []byte) Op { return Op{Tag: OpAppend, Arg: append([]byte(nil), arg...)} }

// Prepend returns an op that prepends arg to the message.
func Prepend(arg []byte) Op { return Op{Tag: OpPrepend, Arg: append([]byte(nil), arg...)} }

func (o Op) binary() bool { return o.Tag == OpAppend || o.Tag == OpPrepend }

func knownOp(tag byte) bool {
	switch tag {
	case OpSHA1, OpRIPEMD160, OpSHA256, OpKECCAK256, OpAppend, OpPrepend, OpReverse, OpHexlify:
		return true
	}
	return false
}

// Apply runs the op on msg.
func (o Op) Apply(msg []byte) ([]byte, error) {
	var out []byte
	switch o.Tag {
	case OpSHA1:
		sum := sha1.Sum(msg) //nolint:gosec
		out = sum[:]
	case OpRIPEMD160:
		h := ripemd160.New()
		h.Write(msg)
		out = h.Sum(nil)
	case OpSHA256:
		sum := sha256.Sum256(msg)
		out = sum[:]
	case OpKECCAK256:
		h := sha3.NewLegacyKeccak256()
		h.Write(msg)
		out = h.Sum(nil)
	case OpAppend:
		out = append(append(make([]byte, 0, len(msg)+len(o.Arg)), msg...), o.Arg...)
	case OpPrepend:
		out = append(append(make([]byte, 0, len(msg)+len(o.Arg)), o.Arg...), msg...)
	case OpReverse:
		if len(msg) == 0 {
			return nil, errors.Mark(errors.New("reverse of empty message"), ErrBadProof)
		}
		out = make([]byte, len(msg))
		for i, b := range msg {
			out[len(msg)-1-i] = b
		}
	case OpHexlify:
		if len(msg) == 0 {
			return nil, errors.Mark(errors.New("hexlify of empty message"), ErrBadProof)
		}
		out = []byte(hex.EncodeToString(msg))
	default:
		return nil, errors.Mark(errors.Newf("unknown op 0x%02x", o.Tag), ErrBadProof)
	}
	if len(out) > MaxMessageLength {
		return nil, errors.Mark(errors.Newf("op 0x%02x result exceeds %d bytes", o.Tag, MaxMessageLength), ErrBadProof)
	}
	return out, nil
}

// Equal reports whether two ops are the same op with the same argument.
func (o Op) Equal(other Op) bool {
	return o.Tag == other.Tag && bytes.Equal(o.Arg, other.Arg)
}

// compare orders ops by tag, then argument.
func (o Op) compare(other Op) int {
	if o.Tag != other.Tag {
		if o.Tag < other.Tag {
			return -1
		}
		return 1
	}
	return bytes.Compare(o.Arg, other.Arg)
}

func (o Op) String() string {
	names := map[byte]string{
		OpSHA1: "sha1", OpRIPEMD160: "ripemd160", OpSHA256: "sha256", OpKECCAK256: "keccak256",
		OpAppend: "append", OpPrepend: "prepend", OpReverse: "reverse", OpHexlify: "hexlify",
	}
	name, ok := names[o.Tag]
	if !ok {
		name = "unknown"
	}
	if o.binary() {
		return name + " " + hex.EncodeToString(o.Arg)
	}
	return name
}

func (o Op) serialize(w *writer) {
	w.byte(o.Tag)
	if o.binary() {
		w.varbytes(o.Arg)
	}
}

func readOp(r *reader, tag byte) (Op, error) {
	if !knownOp(tag) {
		return Op{}, errors.Mark(errors.Newf("unknown op tag 0x%02x", tag), ErrBadProof)
	}
	op := Op{Tag: tag}
	if op.binary() {
		arg, err := r.varbytes(MaxMessageLength)
		if err != nil {
			return Op{}, err
		}
		op.Arg = arg
	}
	return op, nil
}
