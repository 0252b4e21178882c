// Package api implements the HTTP transport (§6): routing, handlers, the
// error envelope, and correlation-ID propagation.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/auth-platform/file-upload/internal/domain"
)

// errorEnvelope is §6/§7's literal wire shape: {"error":{"message","code",
// "details?"}} — deliberately not RFC 7807, unlike the teacher's
// ProblemDetails (internal/api/errors/problem.go, now superseded); the
// code→status table idea is kept via domain.Kind.HTTPStatus.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError renders err as the spec's error envelope, mapping domain
// errors to their HTTP status via Kind; anything else is INTERNAL_ERROR.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := kind.HTTPStatus()

	body := errorEnvelope{Error: errorBody{
		Message: err.Error(),
		Code:    string(kind),
	}}

	var derr *domain.Error
	if ok := asDomainError(err, &derr); ok {
		body.Error.Message = derr.Message
		body.Error.Details = derr.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func asDomainError(err error, target **domain.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if de, ok := err.(*domain.Error); ok {
			*target = de
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
