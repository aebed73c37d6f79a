package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/teranos/yanantin/errors"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// readBody reads a request body up to limit bytes.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "read request body")
	}
	if int64(len(data)) > limit {
		return nil, errors.Newf("request body exceeds %d bytes", limit)
	}
	return data, nil
}

// statusFor maps a store fault onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.IsImmutable(err):
		return http.StatusConflict
	case errors.IsAccessDenied(err):
		return http.StatusForbidden
	case errors.IsInterfaceVersion(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
