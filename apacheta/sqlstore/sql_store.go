// Package sqlstore implements the tensor store on SQLite.
// Each record kind has a table (id TEXT PRIMARY KEY, data JSON NOT NULL);
// rowid order is storage order.
package sqlstore

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/query"
	"github.com/teranos/yanantin/db"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
)

// Query templates; %s is the table of a record kind.
const (
	recordExistsQuery = `SELECT EXISTS(SELECT 1 FROM %s WHERE id = ?)`
	recordInsertQuery = `INSERT INTO %s (id, data) VALUES (?, ?)`
	recordGetQuery    = `SELECT data FROM %s WHERE id = ?`
	recordScanQuery   = `SELECT data FROM %s ORDER BY rowid`
)

// Store implements apacheta.TensorStore with SQLite.
type Store struct {
	apacheta.Base
	*query.Reader

	// The driver is not assumed safe for concurrent use; every op holds mu.
	mu     sync.Mutex
	db     *sql.DB
	owned  bool
	logger *zap.SugaredLogger
}

var _ apacheta.TensorStore = (*Store)(nil)

// New wraps an already migrated database.
func New(conn *sql.DB, log *zap.SugaredLogger, opts ...apacheta.Option) *Store {
	s := &Store{
		Base:   apacheta.NewBase(opts...),
		db:     conn,
		logger: logger.OrNop(log).With(logger.FieldBackend, "sqlite"),
	}
	s.Reader = query.NewReader(s.snapshot, s.Require)
	return s
}

// Open opens (or creates) the database at path, migrates it and returns a
// store that owns the connection. Use db.MemoryPath for a throwaway store.
func Open(path string, log *zap.SugaredLogger, opts ...apacheta.Option) (*Store, error) {
	conn, err := db.OpenWithMigrations(path, log)
	if err != nil {
		return nil, errors.WrapStoreError(err, "open sqlite store")
	}
	s := New(conn, log, opts...)
	s.owned = true
	return s, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func table(kind models.RecordKind) string {
	return kind.CountKey()
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

	s.mu.Lock()
	defer s.mu.Unlock()

	// Checked before the insert so the engine's constraint never decides the fault.
	var exists bool
	if err := s.db.QueryRow(fmt.Sprintf(recordExistsQuery, table(kind)), id).Scan(&exists); err != nil {
		return s.storeError(err, op)
	}
	if exists {
		return errors.NewImmutableError(string(kind), id)
	}

	if _, err := s.db.Exec(fmt.Sprintf(recordInsertQuery, table(kind)), id, string(data)); err != nil {
		if db.IsUniqueViolation(err) {
			return errors.NewImmutableError(string(kind), id)
		}
		return s.storeError(err, op)
	}
	s.logger.Debugw("stored record", logger.FieldRecord, kind, logger.FieldTensorID, id)
	return nil
}

func (s *Store) storeError(err error, op string) error {
	if db.IsDatabaseClosed(err) {
		err = errors.WithSecondaryError(db.ErrDatabaseClosed, err)
	}
	s.logger.Warnw("sqlite operation failed", logger.FieldOperation, op, logger.FieldError, err)
	return errors.WrapStoreError(err, op)
}

func (s *Store) StoreTensor(t models.TensorRecord) error { return s.put(t) }

func (s *Store) StoreCompositionEdge(e models.CompositionEdge) error { return s.put(e) }

func (s *Store) StoreCorrection(c models.CorrectionRecord) error { return s.put(c) }

func (s *Store) StoreDissent(d models.DissentRecord) error { return s.put(d) }

func (s *Store) StoreNegation(n models.NegationRecord) error { return s.put(n) }

func (s *Store) StoreBootstrap(b models.BootstrapRecord) error { return s.put(b) }

func (s *Store) StoreSchemaEvolution(e models.SchemaEvolutionRecord) error { return s.put(e) }

func (s *Store) StoreEntity(e models.EntityResolution) error { return s.put(e) }

// get loads the raw row of one record; ok is false when absent.
func (s *Store) get(kind models.RecordKind, id uuid.UUID) (data []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err = s.db.QueryRow(fmt.Sprintf(recordGetQuery, table(kind)), id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.storeError(err, "get "+string(kind))
	}
	return []byte(raw), true, nil
}

// GetTensor returns the tensor with id.
func (s *Store) GetTensor(id uuid.UUID) (models.TensorRecord, error) {
	if err := s.Require("get_tensor", id.String()); err != nil {
		return models.TensorRecord{}, err
	}
	data, ok, err := s.get(models.KindTensor, id)
	if err != nil {
		return models.TensorRecord{}, err
	}
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

// GetEntity returns the entity resolution with id.
func (s *Store) GetEntity(id uuid.UUID) (models.EntityResolution, error) {
	if err := s.Require("get_entity", id.String()); err != nil {
		return models.EntityResolution{}, err
	}
	data, ok, err := s.get(models.KindEntity, id)
	if err != nil {
		return models.EntityResolution{}, err
	}
	if !ok {
		return models.EntityResolution{}, errors.NewNotFoundError("entity %s", id)
	}
	e, err := models.Decode[models.EntityResolution](data)
	return e, errors.WrapStoreError(err, "get entity")
}

func (s *Store) snapshot() (*query.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &query.Snapshot{}
	for _, kind := range models.AllRecordKinds() {
		if err := s.scan(kind, snap); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *Store) scan(kind models.RecordKind, snap *query.Snapshot) error {
	rows, err := s.db.Query(fmt.Sprintf(recordScanQuery, table(kind)))
	if err != nil {
		return s.storeError(err, "scan "+table(kind))
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return s.storeError(err, "scan "+table(kind))
		}
		rec, err := query.DecodeRecord(kind, []byte(raw))
		if err != nil {
			return errors.WrapStoreError(err, "decode "+table(kind))
		}
		snap.Append(rec)
	}
	if err := rows.Err(); err != nil {
		return s.storeError(err, "scan "+table(kind))
	}
	return nil
}
