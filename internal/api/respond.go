package api

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/appointment"
	"github.com/hackgods/booking-engine/internal/availability"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var kindStatus = []struct {
	kind   error
	status int
}{
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrServiceNotFound, http.StatusNotFound},
	{apperr.ErrInvalidInterval, http.StatusBadRequest},
	{apperr.ErrPastDate, http.StatusBadRequest},
	{apperr.ErrPastSchedule, http.StatusBadRequest},
	{apperr.ErrMissingReason, http.StatusBadRequest},
	{apperr.ErrInvalidArgument, http.StatusBadRequest},
	{apperr.ErrOverlapConflict, http.StatusConflict},
	{apperr.ErrSlotConflict, http.StatusConflict},
	{apperr.ErrInvalidTransition, http.StatusConflict},
	{apperr.ErrAlreadyTerminal, http.StatusConflict},
	{apperr.ErrCancellationWindowClosed, http.StatusUnprocessableEntity},
	{apperr.ErrOutsideAvailability, http.StatusUnprocessableEntity},
	{apperr.ErrInvalidCode, http.StatusUnprocessableEntity},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrActorSuspended, http.StatusForbidden},
	{apperr.ErrBusy, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, k := range kindStatus {
		if errors.Is(err, k.kind) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// writeAppError maps a domain error onto the response. Unclassified errors
// are logged and hidden from the caller.
func writeAppError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
			zap.Strings("stack", apperr.ExtractStackLines(err, 8)))
		writeError(w, status, "internal_error", "internal server error")
		return
	}

	resp := ErrorResponse{Error: apperr.Code(err), Details: err.Error()}

	var booked *appointment.ConflictError
	var overlap *availability.OverlapError
	switch {
	case errors.As(err, &booked):
		resp.Conflict = &ConflictResponse{Start: booked.Start, End: booked.End}
	case errors.As(err, &overlap):
		slot := toSlotResponse(overlap.Conflict)
		resp.Conflict = &ConflictResponse{Slot: &slot}
	}
	writeJSON(w, status, resp)
}
