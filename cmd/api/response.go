package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rentfit/agreement"
	"rentfit/apperr"
	"rentfit/validation"
)

// envelope is the uniform body of every API response.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
	Meta    *metaBody  `json:"meta,omitempty"`
}

type errorBody struct {
	Message string                 `json:"message"`
	Errors  validation.FieldErrors `json:"errors,omitempty"`
	Stack   string                 `json:"stack,omitempty"`
}

type metaBody struct {
	Pagination agreement.Pagination `json:"pagination"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

// writeError translates err into the envelope. Errors without an apperr code
// are reported as a generic 500; debug adds the wrapped chain as the stack.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)

	body := &errorBody{Message: "internal server error"}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Message = ae.Error()
	}
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		body.Errors = fields
	}
	if s.debug {
		body.Stack = chain(err)
	}

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	writeJSON(w, status, envelope{Success: false, Message: body.Message, Error: body})
}

// chain renders every error in err's unwrap chain, outermost first.
func chain(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		if b.Len() > 0 {
			b.WriteString("\n  caused by: ")
		}
		b.WriteString(e.Error())
	}
	return b.String()
}
