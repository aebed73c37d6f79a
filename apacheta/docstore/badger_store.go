// Package docstore implements the tensor store as a document store on BadgerDB.
//
// Key layout:
//   - Documents: <collection>/<uuid> -> JSON(record + engine metadata)
//   - Sequence:  _meta/seq -> big-endian uint64, last issued document sequence
//
// Engine metadata (_key, _collection, _seq) is added on write and stripped on
// read. _seq preserves storage order, which key order does not.
package docstore

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/query"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
)

const (
	metaKey       = "_key"
	metaColl      = "_collection"
	metaSeq       = "_seq"
	sequenceKey   = "_meta/seq"
	keySeparator  = "/"
	backendBadger = "badger"
)

// Options configures the document store.
type Options struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in RAM; for tests.
	InMemory bool
	// SyncWrites forces an fsync after each write.
	SyncWrites bool
}

// Store implements apacheta.TensorStore on BadgerDB.
type Store struct {
	apacheta.Base
	*query.Reader

	// Writes are serialized so the sequence counter never conflicts.
	writeMu sync.Mutex
	db      *badger.DB
	logger  *zap.SugaredLogger
}

var _ apacheta.TensorStore = (*Store)(nil)

// Open opens (or creates) a document store.
func Open(opts Options, log *zap.SugaredLogger, storeOpts ...apacheta.Option) (*Store, error) {
	log = logger.OrNop(log).With(logger.FieldBackend, backendBadger)

	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{log})
	if opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, errors.WrapStoreError(err, "open badger store")
	}

	s := &Store{
		Base:   apacheta.NewBase(storeOpts...),
		db:     db,
		logger: log,
	}
	s.Reader = query.NewReader(s.snapshot, s.Require)
	return s, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory(log *zap.SugaredLogger, storeOpts ...apacheta.Option) (*Store, error) {
	return Open(Options{InMemory: true}, log, storeOpts...)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func collection(kind models.RecordKind) string {
	return kind.CountKey()
}

func documentKey(kind models.RecordKind, id string) []byte {
	return []byte(collection(kind) + keySeparator + id)
}

func collectionPrefix(kind models.RecordKind) []byte {
	return []byte(collection(kind) + keySeparator)
}

// wrap adds engine metadata to an encoded record.
func wrap(record []byte, kind models.RecordKind, id string, seq uint64) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil {
		return nil, err
	}
	key, _ := json.Marshal(id)
	coll, _ := json.Marshal(collection(kind))
	seqRaw, _ := json.Marshal(seq)
	fields[metaKey] = key
	fields[metaColl] = coll
	fields[metaSeq] = seqRaw
	return json.Marshal(fields)
}

// strip removes engine metadata and returns the record bytes with its sequence.
func strip(doc []byte) (uint64, []byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return 0, nil, err
	}
	var seq uint64
	if raw, ok := fields[metaSeq]; ok {
		if err := json.Unmarshal(raw, &seq); err != nil {
			return 0, nil, err
		}
	}
	delete(fields, metaKey)
	delete(fields, metaColl)
	delete(fields, metaSeq)
	record, err := json.Marshal(fields)
	return seq, record, err
}

func (s *Store) put(r models.Record) error {
	kind := r.Kind()
	id := r.RecordID().String()
	op := apacheta.StoreOperation(kind)
	if err := s.Require(op, id); err != nil {
		return err
	}
	data, err := apacheta.EncodeRecord(r)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		key := documentKey(kind, id)
		_, err := txn.Get(key)
		if err == nil {
			return errors.NewImmutableError(string(kind), id)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		seq, err := nextSequence(txn)
		if err != nil {
			return err
		}
		doc, err := wrap(data, kind, id, seq)
		if err != nil {
			return err
		}
		return txn.Set(key, doc)
	})
	if err != nil {
		if !errors.IsImmutable(err) {
			s.logger.Warnw("badger write failed", logger.FieldOperation, op, logger.FieldError, err)
		}
		return errors.WrapStoreError(err, op)
	}
	s.logger.Debugw("stored document", logger.FieldRecord, kind, logger.FieldTensorID, id)
	return nil
}

func nextSequence(txn *badger.Txn) (uint64, error) {
	var current uint64
	item, err := txn.Get([]byte(sequenceKey))
	switch {
	case err == badger.ErrKeyNotFound:
	case err != nil:
		return 0, err
	default:
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		current = binary.BigEndian.Uint64(raw)
	}
	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	return next, txn.Set([]byte(sequenceKey), buf)
}

func (s *Store) StoreTensor(t models.TensorRecord) error { return s.put(t) }

func (s *Store) StoreCompositionEdge(e models.CompositionEdge) error { return s.put(e) }

func (s *Store) StoreCorrection(c models.CorrectionRecord) error { return s.put(c) }

func (s *Store) StoreDissent(d models.DissentRecord) error { return s.put(d) }

func (s *Store) StoreNegation(n models.NegationRecord) error { return s.put(n) }

func (s *Store) StoreBootstrap(b models.BootstrapRecord) error { return s.put(b) }

func (s *Store) StoreSchemaEvolution(e models.SchemaEvolutionRecord) error { return s.put(e) }

func (s *Store) StoreEntity(e models.EntityResolution) error { return s.put(e) }

// get returns the stripped record bytes; nil when absent.
func (s *Store) get(kind models.RecordKind, id uuid.UUID) ([]byte, error) {
	var record []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(kind, id.String()))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		doc, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		_, record, err = strip(doc)
		return err
	})
	if err != nil {
		return nil, errors.WrapStoreError(err, "get "+string(kind))
	}
	return record, nil
}

// GetTensor returns the tensor with id.
func (s *Store) GetTensor(id uuid.UUID) (models.TensorRecord, error) {
	if err := s.Require("get_tensor", id.String()); err != nil {
		return models.TensorRecord{}, err
	}
	data, err := s.get(models.KindTensor, id)
	if err != nil {
		return models.TensorRecord{}, err
	}
	if data == nil {
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

// GetEntity returns the entity resolution with id.
func (s *Store) GetEntity(id uuid.UUID) (models.EntityResolution, error) {
	if err := s.Require("get_entity", id.String()); err != nil {
		return models.EntityResolution{}, err
	}
	data, err := s.get(models.KindEntity, id)
	if err != nil {
		return models.EntityResolution{}, err
	}
	if data == nil {
		return models.EntityResolution{}, errors.NewNotFoundError("entity %s", id)
	}
	e, err := models.Decode[models.EntityResolution](data)
	return e, errors.WrapStoreError(err, "get entity")
}

type sequenced struct {
	seq    uint64
	record models.Record
}

func (s *Store) snapshot() (*query.Snapshot, error) {
	snap := &query.Snapshot{}
	err := s.db.View(func(txn *badger.Txn) error {
		for _, kind := range models.AllRecordKinds() {
			docs, err := scanCollection(txn, kind)
			if err != nil {
				return err
			}
			for _, d := range docs {
				snap.Append(d.record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapStoreError(err, "snapshot")
	}
	return snap, nil
}

func scanCollection(txn *badger.Txn, kind models.RecordKind) ([]sequenced, error) {
	prefix := collectionPrefix(kind)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var docs []sequenced
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		doc, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		seq, data, err := strip(doc)
		if err != nil {
			return nil, err
		}
		rec, err := query.DecodeRecord(kind, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, sequenced{seq: seq, record: rec})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
	return docs, nil
}

// badgerLogger routes badger's internal logging to zap.
type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...interface{}) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...interface{}) { b.l.Debugf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...interface{}) { b.l.Debugf(format, args...) }
