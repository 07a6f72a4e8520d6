package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes data as JSON. The payload is encoded before the header
// goes out so an encoding failure still yields a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	write(w, status, "application/json", payload)
}

// Problem is an RFC 7807 error body. Extra fields are flattened into the
// top-level object, e.g. the pending generation conflict of a 409.
type Problem struct {
	Type   string
	Title  string
	Status int
	Detail string
	Extra  map[string]interface{}
}

// MarshalJSON implements json.Marshaler.
func (p Problem) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(p.Extra)+4)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	return json.Marshal(m)
}

// RespondError writes a problem response.
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes a problem response carrying extra fields.
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]interface{}) {
	payload, err := json.Marshal(NewProblem(status, detail, extras))
	if err != nil {
		write(w, http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("internal server error"))
		return
	}
	write(w, status, "application/problem+json", payload)
}

// NewProblem builds the problem body for status.
func NewProblem(status int, detail string, extras map[string]interface{}) Problem {
	typ, ok := problemTypes[status]
	if !ok {
		typ = "about:blank"
	}
	return Problem{
		Type:   typ,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	}
}

var problemTypes = map[int]string{
	http.StatusBadRequest:            "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.1",
	http.StatusUnauthorized:          "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.2",
	http.StatusForbidden:             "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.4",
	http.StatusNotFound:              "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.5",
	http.StatusConflict:              "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.10",
	http.StatusRequestEntityTooLarge: "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.14",
	http.StatusUnprocessableEntity:   "https://datatracker.ietf.org/doc/html/rfc9110#section-15.5.21",
	http.StatusInternalServerError:   "https://datatracker.ietf.org/doc/html/rfc9110#section-15.6.1",
	http.StatusBadGateway:            "https://datatracker.ietf.org/doc/html/rfc9110#section-15.6.3",
}

func write(w http.ResponseWriter, status int, contentType string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
