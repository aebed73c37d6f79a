// Package pulse runs the reactive heartbeat: one short-lived pass per
// invocation that notices code changes, schedules scouting and hands one
// queued work item to a dispatcher.
//
// The queue and state live in JSON files rewritten whole on every save, and
// an exclusive file lock keeps a second pulse from running concurrently.
package pulse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teranos/yanantin/errors"
)

// ItemType names the kind of work an item asks for.
type ItemType string

const (
	ItemScout       ItemType = "scout"
	ItemVerify      ItemType = "verify"
	ItemRespond     ItemType = "respond"
	ItemGovernance  ItemType = "governance"
	ItemTinkuyAudit ItemType = "tinkuy_audit"
)

// AllItemTypes lists every item type.
func AllItemTypes() []ItemType {
	return []ItemType{ItemScout, ItemVerify, ItemRespond, ItemGovernance, ItemTinkuyAudit}
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemScout, ItemVerify, ItemRespond, ItemGovernance, ItemTinkuyAudit:
		return true
	}
	return false
}

// Item is one unit of queued work.
type Item struct {
	Type    ItemType  `json:"type"`
	Trigger string    `json:"trigger"`
	Created time.Time `json:"created"`
	Report  string    `json:"report,omitempty"`
	Claim   string    `json:"claim,omitempty"`
}

func (i Item) key() string { return string(i.Type) + "\x00" + i.Trigger }

// Queue is the durable FIFO of work items. It is not safe for concurrent
// use; the pulse lock serializes access across processes.
type Queue struct {
	path  string
	items []Item
}

// LoadQueue reads the queue at path. A missing file is an empty queue.
func LoadQueue(path string) (*Queue, error) {
	q := &Queue{path: path, items: []Item{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read queue %s", path)
	}
	if len(data) == 0 {
		return q, nil
	}
	if err := json.Unmarshal(data, &q.items); err != nil {
		err = errors.Wrap(err, "decode queue")
		return nil, errors.WithDetail(err, fmt.Sprintf("Queue file: %s", path))
	}
	if q.items == nil {
		q.items = []Item{}
	}
	return q, nil
}

// Enqueue appends item unless an item with the same type and trigger is
// already queued. It reports whether the item was added.
func (q *Queue) Enqueue(item Item) bool {
	for _, existing := range q.items {
		if existing.key() == item.key() {
			return false
		}
	}
	q.items = append(q.items, item)
	return true
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// PushFront puts item back at the head of the queue.
func (q *Queue) PushFront(item Item) {
	q.items = append([]Item{item}, q.items...)
}

// Items returns a copy of the queued items in order.
func (q *Queue) Items() []Item {
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued items.
func (q *Queue) Len() int { return len(q.items) }

// Save writes the whole queue atomically.
func (q *Queue) Save() error {
	return writeJSON(q.path, q.items)
}

// State is what one pulse remembers for the next.
type State struct {
	LastCommit        string     `json:"last_commit,omitempty"`
	LastScout         *time.Time `json:"last_scout,omitempty"`
	LastCommitScouted string     `json:"last_commit_scouted,omitempty"`
}

// SinceScout returns how long ago the last scout was scheduled. It reports
// false when no scout has ever been scheduled.
func (s State) SinceScout(now time.Time) (time.Duration, bool) {
	if s.LastScout == nil {
		return 0, false
	}
	return now.Sub(*s.LastScout), true
}

// LoadState reads the state file. A missing file is the zero state.
func LoadState(path string) (State, error) {
	var s State
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, errors.Wrapf(err, "read pulse state %s", path)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		err = errors.Wrap(err, "decode pulse state")
		return s, errors.WithDetail(err, fmt.Sprintf("State file: %s", path))
	}
	return s, nil
}

// SaveState writes the state file atomically.
func SaveState(path string, s State) error {
	return writeJSON(path, s)
}

// writeJSON replaces path with the indented JSON of v via a temp file and
// rename, so readers never observe a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
