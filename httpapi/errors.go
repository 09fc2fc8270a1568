package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goSecure "github.com/MrEthical07/goSecure"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	switch goSecure.KindOf(err) {
	case goSecure.KindUnauthorized:
		return http.StatusUnauthorized
	case goSecure.KindNotFound:
		return http.StatusNotFound
	case goSecure.KindInvalidInput:
		return http.StatusBadRequest
	case goSecure.KindStateConflict:
		return http.StatusConflict
	case goSecure.KindInvalidCode:
		return http.StatusUnprocessableEntity
	case goSecure.KindRateLimited:
		return http.StatusTooManyRequests
	case goSecure.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Storage causes wrapped into ErrUnavailable never reach the client.
func publicMessage(err error) string {
	var e *goSecure.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: publicMessage(err), Kind: goSecure.KindOf(err).String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

var errBadBody = &goSecure.Error{Kind: goSecure.KindInvalidInput, Message: "malformed request body"}
