package httputil

import "encoding/json"

// OptionalString is a PATCH field that tells "absent" apart from "null".
// Section content uses it: absent leaves the chapter text alone, null or ""
// clears it.
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON implements json.Unmarshaler. It only runs for keys that
// appear in the document.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	o.Value = nil
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns the value to store, nil meaning NULL. ok is false when the
// field was absent.
func (o OptionalString) Ptr() (value *string, ok bool) {
	return o.Value, o.Present
}
