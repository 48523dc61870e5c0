package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/availability"
	"github.com/hackgods/booking-engine/internal/identity"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

type availabilityHandlers struct {
	svc *availability.Service
	log *zap.Logger
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (h *availabilityHandlers) createSlot(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	slot, err := h.svc.CreateSlot(r.Context(), actorFrom(r), availability.SlotInput{
		Date:        req.Date,
		Start:       req.StartTime,
		End:         req.EndTime,
		IsAvailable: isAvailable,
		Reason:      req.Reason,
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
}

// listSlots lists the caller's own slots, or another provider's when
// provider_id is given.
func (h *availabilityHandlers) listSlots(w http.ResponseWriter, r *http.Request) {
	providerID, ok := providerScope(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	slots, err := h.svc.ListSlots(r.Context(), providerID, from, to)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponses(slots))
}

func (h *availabilityHandlers) updateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SlotPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	slot, err := h.svc.UpdateSlot(r.Context(), actorFrom(r), id, availability.SlotPatch{
		Date:        req.Date,
		Start:       req.StartTime,
		End:         req.EndTime,
		IsAvailable: req.IsAvailable,
		Reason:      req.Reason,
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(*slot))
}

func (h *availabilityHandlers) deleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteSlot(r.Context(), actorFrom(r), id); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *availabilityHandlers) deleteSlotsForDate(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	n, err := h.svc.DeleteSlotsForDate(r.Context(), actorFrom(r), date)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "deleted": n})
}

func (h *availabilityHandlers) applyWeekly(w http.ResponseWriter, r *http.Request) {
	var req WeeklyTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	tmpl := availability.WeeklyTemplate{
		From:    req.From,
		To:      req.To,
		Windows: make(map[time.Weekday][]availability.Window),
		Reason:  req.Reason,
	}
	for name, windows := range req.Windows {
		day, ok := weekdays[strings.ToLower(name)]
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_weekday", "unknown weekday "+name)
			return
		}
		for _, win := range windows {
			tmpl.Windows[day] = append(tmpl.Windows[day], availability.Window{Start: win.StartTime, End: win.EndTime})
		}
	}

	slots, err := h.svc.ApplyWeeklyTemplate(r.Context(), actorFrom(r), tmpl)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponses(slots))
}

func (h *availabilityHandlers) blockDate(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	b, err := h.svc.BlockDate(r.Context(), actorFrom(r), req.Date, req.Reason)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, BlockResponse{ProviderID: b.ProviderID, Date: b.Date, Reason: b.Reason})
}

func (h *availabilityHandlers) listBlocks(w http.ResponseWriter, r *http.Request) {
	providerID, ok := providerScope(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	blocks, err := h.svc.ListBlocks(r.Context(), providerID, from, to)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	out := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, BlockResponse{ProviderID: b.ProviderID, Date: b.Date, Reason: b.Reason})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *availabilityHandlers) unblockDate(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	if err := h.svc.UnblockDate(r.Context(), actorFrom(r), date); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *availabilityHandlers) check(w http.ResponseWriter, r *http.Request) {
	providerID, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	date, err := timeutil.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	start, err := timeutil.ParseTimeOfDay(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
		return
	}
	end, err := timeutil.ParseTimeOfDay(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
		return
	}

	available, err := h.svc.IsWithinAvailability(r.Context(), providerID, date, start, end)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityCheckResponse{
		ProviderID: providerID,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Available:  available,
	})
}

func providerScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if v := r.URL.Query().Get("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return uuid.Nil, false
		}
		return id, true
	}
	actor := actorFrom(r)
	if actor.Role != identity.RoleProvider {
		writeError(w, http.StatusBadRequest, "missing_provider_id", "provider_id is required")
		return uuid.Nil, false
	}
	return actor.ID, true
}

func dateRange(w http.ResponseWriter, r *http.Request) (timeutil.Date, timeutil.Date, bool) {
	q := r.URL.Query()
	from, err := timeutil.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
		return timeutil.Date{}, timeutil.Date{}, false
	}
	to, err := timeutil.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
		return timeutil.Date{}, timeutil.Date{}, false
	}
	return from, to, true
}

func pathDate(w http.ResponseWriter, r *http.Request) (timeutil.Date, bool) {
	date, err := timeutil.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return timeutil.Date{}, false
	}
	return date, true
}
