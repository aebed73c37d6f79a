package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuthorClock issues provenance envelopes for one author/instance sequence.
// Timestamps it hands out never decrease, even if the wall clock steps back.
type AuthorClock struct {
	mu       sync.Mutex
	source   SourceIdentifier
	family   string
	instance string
	last     time.Time
	now      func() time.Time
}

// NewAuthorClock creates a clock for the given author.
func NewAuthorClock(source SourceIdentifier, modelFamily, instanceID string) *AuthorClock {
	return &AuthorClock{
		source:   source,
		family:   modelFamily,
		instance: instanceID,
		now:      time.Now,
	}
}

// WithNow replaces the wall clock, for tests.
func (c *AuthorClock) WithNow(now func() time.Time) *AuthorClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Envelope returns the next envelope in the sequence.
func (c *AuthorClock) Envelope(predecessors ...uuid.UUID) ProvenanceEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UTC()
	if ts.Before(c.last) {
		ts = c.last
	}
	c.last = ts

	preds := make([]uuid.UUID, len(predecessors))
	copy(preds, predecessors)
	return ProvenanceEnvelope{
		Source:              c.source,
		Timestamp:           ts,
		AuthorModelFamily:   c.family,
		AuthorInstanceID:    c.instance,
		PredecessorsInScope: preds,
		InterfaceVersion:    InterfaceVersion,
	}
}
