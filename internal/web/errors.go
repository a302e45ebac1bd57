package web

// errors.go turns handler errors into responses.
//
// Every error is logged with its technical detail and request ID, then
// mapped to a status code and a user message rendered as JSON, an HTMX
// alert fragment, or plain text depending on the request.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/p13ntable/internal/logging"
	"github.com/JonMunkholm/p13ntable/internal/p13n"
	"github.com/JonMunkholm/p13ntable/internal/p13ntable"
	"github.com/JonMunkholm/p13ntable/internal/web/templates"
)

var (
	errTableNotFound = errors.New("table not found")
	errInvalidBody   = errors.New("invalid request body")
)

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// userMessage is what the client sees for an error.
type userMessage struct {
	Status  int
	Code    string
	Message string
	Action  string
}

// mapError classifies err.
func mapError(err error) userMessage {
	switch {
	case errors.Is(err, errTableNotFound):
		return userMessage{http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found", "Check the table key in the URL."}
	case errors.Is(err, errInvalidBody):
		return userMessage{http.StatusBadRequest, "INVALID_BODY", "The request body is not a valid personalization state", "Send a JSON object with Columns, Sorter, Groups and Filter."}
	case errors.Is(err, p13n.ErrUnknownKey):
		return userMessage{http.StatusBadRequest, "UNKNOWN_KEY", "The state references a column this table does not have", "Use the keys returned by GET state."}
	case errors.Is(err, p13n.ErrInvalidCondition):
		return userMessage{http.StatusBadRequest, "INVALID_CONDITION", "A filter condition has no value", "Give every filter condition at least one value."}
	case errors.Is(err, p13n.ErrNotRegistered), errors.Is(err, p13ntable.ErrNotInitialized), errors.Is(err, p13ntable.ErrClosed):
		return userMessage{http.StatusServiceUnavailable, "NOT_READY", "The table is still loading", "Retry in a moment."}
	case errors.Is(err, context.DeadlineExceeded):
		return userMessage{http.StatusServiceUnavailable, "INIT_TIMEOUT", "The table did not finish loading in time", "Retry in a moment."}
	case errors.Is(err, context.Canceled):
		return userMessage{499, "CANCELED", "The request was canceled", ""}
	default:
		return userMessage{http.StatusInternalServerError, "INTERNAL", "Something went wrong", "Retry, and check the server logs if it persists."}
	}
}

// respondError logs err and writes the mapped response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := mapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", msg.Status,
		"code", msg.Code,
		"error", err.Error(),
	)

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(msg.Status)
		templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(msg.Status)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", msg.Status)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client expects JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v as JSON with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
