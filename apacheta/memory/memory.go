// Package memory is the reference in-memory tensor store.
//
// Records are held in their encoded JSON form, one map per record kind, so
// a write and every read produce independent copies.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/query"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
)

// Store implements apacheta.TensorStore in memory.
type Store struct {
	apacheta.Base
	*query.Reader

	mu      sync.RWMutex
	records map[models.RecordKind]map[uuid.UUID][]byte
	order   map[models.RecordKind][]uuid.UUID
	logger  *zap.SugaredLogger
}

var _ apacheta.TensorStore = (*Store)(nil)

// New creates an empty store.
func New(log *zap.SugaredLogger, opts ...apacheta.Option) *Store {
	s := &Store{
		Base:    apacheta.NewBase(opts...),
		records: make(map[models.RecordKind]map[uuid.UUID][]byte),
		order:   make(map[models.RecordKind][]uuid.UUID),
		logger:  logger.OrNop(log).With(logger.FieldBackend, "memory"),
	}
	for _, k := range models.AllRecordKinds() {
		s.records[k] = make(map[uuid.UUID][]byte)
	}
	s.Reader = query.NewReader(s.snapshot, s.Require)
	return s
}

func (s *Store) put(r models.Record) error {
	kind := r.Kind()
	id := r.RecordID()
	if err := s.Require(apacheta.StoreOperation(kind), id.String()); err != nil {
		return err
	}
	data, err := apacheta.EncodeRecord(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[kind][id]; exists {
		return errors.NewImmutableError(string(kind), id.String())
	}
	s.records[kind][id] = data
	s.order[kind] = append(s.order[kind], id)
	s.logger.Debugw("stored record", logger.FieldRecord, kind, logger.FieldTensorID, id)
	return nil
}

func (s *Store) StoreTensor(t models.TensorRecord) error { return s.put(t) }
func (s *Store) StoreCompositionEdge(e models.CompositionEdge) error { return s.put(e) }
func (s *Store) StoreCorrection(c models.CorrectionRecord) error { return s.put(c) }
func (s *Store) StoreDissent(d models.DissentRecord) error { return s.put(d) }
func (s *Store) StoreNegation(n models.NegationRecord) error { return s.put(n) }
func (s *Store) StoreBootstrap(b models.BootstrapRecord) error { return s.put(b) }
func (s *Store) StoreSchemaEvolution(e models.SchemaEvolutionRecord) error {
	return s.put(e)
}
func (s *Store) StoreEntity(e models.EntityResolution) error { return s.put(e) }

// GetTensor returns a copy of the tensor with id.
func (s *Store) GetTensor(id uuid.UUID) (models.TensorRecord, error) {
	if err := s.Require("get_tensor", id.String()); err != nil {
		return models.TensorRecord{}, err
	}
	data, ok := s.raw(models.KindTensor, id)
	if !ok {
		return models.TensorRecord{}, errors.NewNotFoundError("tensor %s", id)
	}
	t, err := models.Decode[models.TensorRecord](data)
	return t, errors.WrapStoreError(err, "get tensor")
}

// GetStrand returns the one-strand projection of a tensor.
func (s *Store) GetStrand(id uuid.UUID, index int) (models.TensorRecord, error) {
	if err := s.Require("get_strand", id.String()); err != nil {
		return models.TensorRecord{}, err
	}
	t, err := s.GetTensor(id)
	if err != nil {
		return models.TensorRecord{}, err
	}
	view, ok := t.StrandProjection(index)
	if !ok {
		return models.TensorRecord{}, errors.NewNotFoundError("strand %d of tensor %s", index, id)
	}
	return view, nil
}

// GetEntity returns a copy of the entity resolution with id.
func (s *Store) GetEntity(id uuid.UUID) (models.EntityResolution, error) {
	if err := s.Require("get_entity", id.String()); err != nil {
		return models.EntityResolution{}, err
	}
	data, ok := s.raw(models.KindEntity, id)
	if !ok {
		return models.EntityResolution{}, errors.NewNotFoundError("entity %s", id)
	}
	e, err := models.Decode[models.EntityResolution](data)
	return e, errors.WrapStoreError(err, "get entity")
}

func (s *Store) raw(kind models.RecordKind, id uuid.UUID) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[kind][id]
	return data, ok
}

// snapshot decodes every record in insertion order.
func (s *Store) snapshot() (*query.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &query.Snapshot{}
	for _, kind := range models.AllRecordKinds() {
		for _, id := range s.order[kind] {
			rec, err := query.DecodeRecord(kind, s.records[kind][id])
			if err != nil {
				return nil, errors.WrapStoreError(err, "snapshot")
			}
			snap.Append(rec)
		}
	}
	return snap, nil
}
