package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"mapsync/internal/catalog"
	"mapsync/internal/mapping"
	"mapsync/internal/multitable"
	"mapsync/internal/parser"
	"mapsync/internal/storage"
	"mapsync/internal/transformer"
)

// httpError carries an explicit status.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(err error) error { return &httpError{status: http.StatusBadRequest, err: err} }
func notFound(err error) error   { return &httpError{status: http.StatusNotFound, err: err} }

// inputErrors abort an operation without side effects and map to 400.
var inputErrors = []error{
	mapping.ErrNameRequired,
	mapping.ErrUnknownField,
	mapping.ErrUnknownStep,
	mapping.ErrEmptyHeader,
	transformer.ErrUnknownStepType,
	transformer.ErrInvalidPattern,
	parser.ErrEmptyFile,
	parser.ErrUnsupportedFormat,
	storage.ErrInvalidLoad,
	multitable.ErrGroupMismatch,
}

func statusOf(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.status
	}
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, catalog.ErrUnknownSchema),
		errors.Is(err, catalog.ErrUnknownGroup):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{Success: false, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads one JSON document of at most s.maxBytes into dst and runs
// struct validation on it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest(errors.New("request body is empty"))
		}
		return badRequest(fmt.Errorf("invalid JSON body: %w", err))
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return badRequest(validationMessage(verrs))
		}
		return badRequest(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names, as clients see them.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

func validationMessage(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required", "required_without":
			msgs = append(msgs, e.Field()+" is required")
		default:
			tag := e.Tag()
			if e.Param() != "" {
				tag += "=" + e.Param()
			}
			msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Field(), tag))
		}
	}
	return errors.New("invalid payload: " + strings.Join(msgs, "; "))
}
