package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"envelopes/internal/core"
	applog "envelopes/internal/log"
)

const maxBodyBytes = 64 << 10

var errTrailingData = errors.New("unexpected data after JSON body")

// amountField accepts a JSON number or a numeric string. A missing or null
// value leaves set false.
type amountField struct {
	core.Money
	set bool
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	raw, ok, err := scalarText(b)
	if err != nil || !ok {
		return err
	}
	m, err := core.ParseAmount(raw)
	if err != nil {
		// Keep decoding; the handler reports the field as invalid.
		*a = amountField{}
		return nil
	}
	*a = amountField{Money: m, set: true}
	return nil
}

func (a amountField) valid() bool { return a.set }

// idField accepts an unsigned integer as a JSON number or string. Integral
// floats such as 1.0 are accepted as well.
type idField struct {
	ID  core.EnvelopeID
	set bool
}

func (f *idField) UnmarshalJSON(b []byte) error {
	raw, ok, err := scalarText(b)
	if err != nil || !ok {
		return err
	}
	id, ok := parseID(raw)
	if !ok {
		*f = idField{}
		return nil
	}
	*f = idField{ID: id, set: true}
	return nil
}

// maxExactFloatID is the largest id a float64 holds exactly.
const maxExactFloatID = 1 << 53

func parseID(raw string) (core.EnvelopeID, bool) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return core.EnvelopeID(id), true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > maxExactFloatID || f != math.Trunc(f) {
		return 0, false
	}
	return core.EnvelopeID(f), true
}

// scalarText returns the text of a JSON number or string. ok is false for
// null and for values of any other type.
func scalarText(b []byte) (text string, ok bool, err error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", false, nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(b), true, nil
	default:
		return "", false, nil
	}
}

func (r envelopeRequest) name() (string, bool) {
	if r.Name == nil {
		return "", false
	}
	name := strings.TrimSpace(sanitizeInput(*r.Name))
	return name, name != ""
}

// decode reads a JSON object body into dst, writing the error response
// itself when it returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		// Wrong-typed fields stay unset and fail the handler's validation.
		err = nil
	}
	if err == nil {
		if _, terr := dec.Token(); terr != io.EOF {
			err = terr
			if err == nil {
				err = errTrailingData
			}
		}
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "Request body is required")
	default:
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Malformed request body",
			applog.FieldError, err.Error())
		writeError(w, http.StatusBadRequest, "Malformed JSON body")
	}
	return false
}

// parseEnvelopeID reads the {id} path segment as an unsigned integer.
func parseEnvelopeID(r *http.Request) (core.EnvelopeID, bool) {
	return parseID(r.PathValue("id"))
}
