package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps request bodies. Integrated chapter content is the largest
// thing a client sends.
const MaxBodyBytes = 4 << 20

var errEmptyBody = errors.New("invalid JSON: empty body")

// ParseJSON decodes the request body into dest. An empty body is an error;
// unknown fields are ignored.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseOptionalJSON is ParseJSON that accepts an empty body and leaves dest
// untouched.
func ParseOptionalJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := ParseJSON(w, r, dest)
	if errors.Is(err, errEmptyBody) {
		return nil
	}
	return err
}
