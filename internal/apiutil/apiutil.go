// Package apiutil holds the request decoding, validation and response
// helpers shared by the module HTTP handlers.
package apiutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// DateLayout is the wire format of request dates
const DateLayout = "2006-01-02"

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Validator checks request DTOs against their `validate` tags and reports
// failing fields by their JSON names.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator keyed on json tag names
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s. Failures come back as a validation-stage ErrValidation
// naming every offending field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewError(domain.ErrValidation, domain.StageValidation, "invalid request", err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fieldPath(fe), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fieldPath(fe), fe.Tag()))
		}
	}
	return domain.Validation("%s", strings.Join(parts, "; "))
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewError(domain.ErrValidation, domain.StageValidation, "malformed JSON body", err)
	}
	return nil
}

// ParseDate parses a request date, naming the field on failure.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, domain.Validation("%s must be a date in %s form, got %q", field, DateLayout, value)
	}
	return t, nil
}

// StatusFor maps a classified error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrInsufficientData),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrOptimization):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes data in the {"data", "metadata"} envelope.
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	writeRaw(w, log, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// WriteError reports err with the status StatusFor picks. Unclassified
// errors are logged and hidden behind a generic message.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusFor(err)
	body := map[string]interface{}{
		"status": status,
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		body["message"] = "internal error"
	} else {
		log.Warn().Err(err).Int("status", status).Msg("Request rejected")
		body["message"] = err.Error()
		if kind := domain.KindOf(err); kind != nil {
			body["kind"] = kind.Error()
		}
		if stage := domain.StageOf(err); stage != "" {
			body["stage"] = string(stage)
		}
	}

	writeRaw(w, log, status, map[string]interface{}{"error": body})
}

func writeRaw(w http.ResponseWriter, log zerolog.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
