package apacheta

import (
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/errors"
)

// EncodeRecord validates r and returns the bytes a backend persists.
// Invalid records and values JSON cannot carry (NaN, ±Inf) fail with ErrStore.
func EncodeRecord(r models.Record) ([]byte, error) {
	op := "store " + string(r.Kind())
	if err := r.Validate(); err != nil {
		return nil, errors.WrapStoreError(err, op)
	}
	data, err := models.Encode(r)
	if err != nil {
		return nil, errors.WrapStoreError(err, op)
	}
	return data, nil
}

// StoreOperation is the access-policy operation name for writing kind.
func StoreOperation(kind models.RecordKind) string {
	return "store_" + string(kind)
}
