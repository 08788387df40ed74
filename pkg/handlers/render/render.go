// Package render holds the JSON helpers shared by the HTTP handlers.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/errs"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// ErrInvalidRequest is returned for bodies that cannot be decoded or fail validation.
var ErrInvalidRequest = &errs.Error{Kind: errs.KindValidation, Code: "INVALID_REQUEST", Message: "invalid request"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSONBody decodes r's body into dst and validates it.
func DecodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ErrInvalidRequest.WithMessage("invalid request body: %v", err)
	}
	return Validate(dst)
}

// Validate runs the struct's validate tags and reports every failing field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrInvalidRequest.Wrap(err)
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	return ErrInvalidRequest.WithMessage("invalid request: %s", strings.Join(fields, "; "))
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Error writes err as an api.Error, choosing the status from its errs.Kind.
// Internal errors hide their message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	body := api.Error{
		Code:      errs.CodeOf(err),
		Message:   err.Error(),
		Retryable: kind.Retryable(),
	}

	var e *errs.Error
	if errors.As(err, &e) {
		body.Message = e.Message
	}
	if kind == errs.KindInternal {
		body.Message = "internal server error"
	}
	if kind == errs.KindInternal || kind == errs.KindTransient {
		slog.Log(r.Context(), slog.LevelError, "request failed", "path", r.URL.Path, "code", body.Code, "error", err)
	}
	JSON(w, kind.HTTPStatus(), body)
}
