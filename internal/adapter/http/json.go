package http

import (
	"encoding/json"
	"errors"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const maxBodyBytes = 1 << 20

// decodeJSON decodes a request body strictly: unknown fields and trailing
// data are rejected.
func decodeJSON(r *http.Request, dest any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON payload")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": message})
}
