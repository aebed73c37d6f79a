package ots

import (
	"bytes"
	"io"
	"sort"

	"github.com/teranos/yanantin/errors"
)

// Timestamp is a commitment tree rooted at Msg. Each branch applies an op to
// Msg and continues with the result; leaves are attestations.
type Timestamp struct {
	Msg          []byte
	Attestations []Attestation
	Branches     []Branch
}

// Branch is an op edge to a child timestamp.
type Branch struct {
	Op    Op
	Child *Timestamp
}

// NewTimestamp returns an empty tree for msg.
func NewTimestamp(msg []byte) *Timestamp {
	return &Timestamp{Msg: append([]byte(nil), msg...)}
}

// Add applies op to the node's message and returns the child, reusing an
// existing branch for the same op.
func (t *Timestamp) Add(op Op) (*Timestamp, error) {
	for _, b := range t.Branches {
		if b.Op.Equal(op) {
			return b.Child, nil
		}
	}
	out, err := op.Apply(t.Msg)
	if err != nil {
		return nil, err
	}
	child := &Timestamp{Msg: out}
	t.Branches = append(t.Branches, Branch{Op: op, Child: child})
	return child, nil
}

// Attest adds a leaf attestation unless an equal one is present.
func (t *Timestamp) Attest(a Attestation) {
	for _, have := range t.Attestations {
		if have.Equal(a) {
			return
		}
	}
	t.Attestations = append(t.Attestations, a)
}

// Merge folds other into t. Both trees must commit to the same message.
func (t *Timestamp) Merge(other *Timestamp) error {
	if !bytes.Equal(t.Msg, other.Msg) {
		return errors.New("cannot merge timestamps for different messages")
	}
	for _, a := range other.Attestations {
		t.Attest(a)
	}
	for _, ob := range other.Branches {
		child, err := t.Add(ob.Op)
		if err != nil {
			return err
		}
		if err := child.Merge(ob.Child); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first node (depth first) whose message equals msg.
func (t *Timestamp) Find(msg []byte) *Timestamp {
	if bytes.Equal(t.Msg, msg) {
		return t
	}
	for _, b := range t.Branches {
		if n := b.Child.Find(msg); n != nil {
			return n
		}
	}
	return nil
}

// Leaf pairs an attestation with the message it attests.
type Leaf struct {
	Msg         []byte
	Attestation Attestation
}

// Leaves lists every attestation in the tree.
func (t *Timestamp) Leaves() []Leaf {
	var out []Leaf
	t.walk(func(n *Timestamp) {
		for _, a := range n.Attestations {
			out = append(out, Leaf{Msg: n.Msg, Attestation: a})
		}
	})
	return out
}

func (t *Timestamp) walk(fn func(*Timestamp)) {
	fn(t)
	for _, b := range t.Branches {
		b.Child.walk(fn)
	}
}

// Confirmed reports whether any attestation is a blockchain-header attestation.
func (t *Timestamp) Confirmed() bool {
	for _, l := range t.Leaves() {
		if l.Attestation.IsConfirmed() {
			return true
		}
	}
	return false
}

// MarshalBinary serializes the tree without any file header.
func (t *Timestamp) MarshalBinary() ([]byte, error) {
	var w writer
	if err := t.serialize(&w); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

func (t *Timestamp) serialize(w *writer) error {
	if len(t.Attestations) == 0 && len(t.Branches) == 0 {
		return errors.New("cannot serialize an empty timestamp")
	}
	atts := append([]Attestation(nil), t.Attestations...)
	sort.Slice(atts, func(i, j int) bool { return atts[i].compare(atts[j]) < 0 })
	branches := append([]Branch(nil), t.Branches...)
	sort.Slice(branches, func(i, j int) bool { return branches[i].Op.compare(branches[j].Op) < 0 })

	// Every entry but the last is prefixed with 0xff; attestations use tag 0x00.
	for i, a := range atts {
		if i < len(atts)-1 || len(branches) > 0 {
			w.byte(0xff)
		}
		w.byte(0x00)
		a.serialize(w)
	}
	for i, b := range branches {
		if i < len(branches)-1 {
			w.byte(0xff)
		}
		b.Op.serialize(w)
		if err := b.Child.serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// ParseTimestamp decodes a tree committing to msg, as returned by calendars.
func ParseTimestamp(data []byte, msg []byte) (*Timestamp, error) {
	r := newReader(bytes.NewReader(data))
	t, err := readTimestamp(r, msg, MaxRecursion)
	if err != nil {
		return nil, err
	}
	if !r.atEOF() {
		return nil, errors.Mark(errors.New("trailing bytes after timestamp"), ErrBadProof)
	}
	return t, nil
}

// ReadTimestamp decodes a tree from a stream without checking for trailing data.
func ReadTimestamp(r io.Reader, msg []byte) (*Timestamp, error) {
	return readTimestamp(newReader(r), msg, MaxRecursion)
}

func readTimestamp(r *reader, msg []byte, depth int) (*Timestamp, error) {
	if depth <= 0 {
		return nil, errors.Mark(errors.New("timestamp recursion limit exceeded"), ErrBadProof)
	}
	t := NewTimestamp(msg)

	entry := func(tag byte) error {
		if tag == 0x00 {
			a, err := readAttestation(r)
			if err != nil {
				return err
			}
			t.Attest(a)
			return nil
		}
		op, err := readOp(r, tag)
		if err != nil {
			return err
		}
		out, err := op.Apply(msg)
		if err != nil {
			return err
		}
		child, err := readTimestamp(r, out, depth-1)
		if err != nil {
			return err
		}
		for _, b := range t.Branches {
			if b.Op.Equal(op) {
				return b.Child.Merge(child)
			}
		}
		t.Branches = append(t.Branches, Branch{Op: op, Child: child})
		return nil
	}

	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	for tag == 0xff {
		next, err := r.byte()
		if err != nil {
			return nil, err
		}
		if err := entry(next); err != nil {
			return nil, err
		}
		if tag, err = r.byte(); err != nil {
			return nil, err
		}
	}
	if err := entry(tag); err != nil {
		return nil, err
	}
	return t, nil
}
