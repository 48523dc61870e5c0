package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/identity"
	"github.com/hackgods/booking-engine/internal/reputation"
)

type reputationHandlers struct {
	engine *reputation.Engine
	log    *zap.Logger
}

func (h *reputationHandlers) reliability(w http.ResponseWriter, r *http.Request) {
	role, err := identity.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	proj, err := h.engine.Reliability(r.Context(), identity.Actor{ID: id, Role: role})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

// applyEvent lets an admin report an incident (lateness, dispute outcome,
// review) against a client or provider.
func (h *reputationHandlers) applyEvent(w http.ResponseWriter, r *http.Request) {
	if err := actorFrom(r).Require(identity.RoleAdmin); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	var req ReputationEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	id, err := uuid.Parse(req.ActorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
		return
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
		return
	}

	rec, err := h.engine.ApplyEvent(r.Context(), identity.Actor{ID: id, Role: role}, reputation.Event(req.Event))
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ReliabilityRecordResponse{
		ActorID:           rec.ActorID,
		Role:              string(rec.Role),
		Score:             rec.Score,
		CompletedCount:    rec.CompletedCount,
		NoShowCount:       rec.NoShowCount,
		AbsentCount:       rec.AbsentCount,
		TotalAppointments: rec.TotalAppointments,
		IsSuspended:       rec.IsSuspended,
		SuspendedUntil:    rec.SuspendedUntil,
		SuspensionReason:  rec.SuspensionReason,
	})
}
