// Package netx holds the HTTP response helpers shared by the REST
// handlers and the telemetry handshake.
package netx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/logging"
)

// RejectReasonHeader carries the machine-readable rejection code.
const RejectReasonHeader = "X-Reject-Reason"

// ErrorBody is the JSON document of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
	Reason string `json:"reason,omitempty"`
}

// reasoned is implemented by gate rejections.
type reasoned interface {
	error
	RejectReason() string
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindAuthentication:
		return http.StatusUnauthorized
	case common.KindAuthorization:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError reports err as {"detail": ...}. Internal errors are logged
// with their cause and shown to the client as a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	kind := common.KindOf(err)
	status := StatusOf(kind)
	body := ErrorBody{Detail: common.MessageOf(err)}

	if kind == common.KindAuthentication {
		w.Header().Set("WWW-Authenticate", common.BearerScheme)
	}
	var rr reasoned
	if errors.As(err, &rr) {
		body.Reason = rr.RejectReason()
		w.Header().Set(RejectReasonHeader, body.Reason)
	}
	if status == http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	WriteJSON(w, status, body)
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Detail: msg})
}
