package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/appointment"
	"github.com/hackgods/booking-engine/internal/availability"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

type CreateAppointmentRequest struct {
	ServiceID   string    `json:"service_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       *string   `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type StartRequest struct {
	Code string `json:"code"`
}

type ProviderResponse struct {
	ID           uuid.UUID `json:"id"`
	BusinessName string    `json:"business_name,omitempty"`
	City         string    `json:"city,omitempty"`
}

type ConfirmationResponse struct {
	ConfirmedBy uuid.UUID `json:"confirmed_by"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type CancellationResponse struct {
	CancelledBy uuid.UUID `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
	Type        string    `json:"type"`
}

type AppointmentResponse struct {
	ID              uuid.UUID             `json:"id"`
	ClientID        uuid.UUID             `json:"client_id"`
	ServiceID       uuid.UUID             `json:"service_id"`
	ServiceName     string                `json:"service_name"`
	Provider        ProviderResponse      `json:"provider"`
	ScheduledAt     time.Time             `json:"scheduled_at"`
	EndsAt          time.Time             `json:"ends_at"`
	DurationMinutes int                   `json:"duration_minutes"`
	Price           int64                 `json:"price"`
	Status          string                `json:"status"`
	Code            string                `json:"confirmation_code,omitempty"`
	Notes           *string               `json:"notes,omitempty"`
	Confirmation    *ConfirmationResponse `json:"confirmation,omitempty"`
	Cancellation    *CancellationResponse `json:"cancellation,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type AppointmentPageResponse struct {
	Items      []AppointmentResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

func toAppointmentResponse(s appointment.Summary) AppointmentResponse {
	resp := AppointmentResponse{
		ID:          s.ID,
		ClientID:    s.ClientID,
		ServiceID:   s.ServiceID,
		ServiceName: s.ServiceName,
		Provider: ProviderResponse{
			ID:           s.ProviderID,
			BusinessName: s.Provider.BusinessName,
			City:         s.Provider.City,
		},
		ScheduledAt:     s.ScheduledAt,
		EndsAt:          s.EndsAt(),
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		Status:          string(s.Status),
		Code:            s.Code,
		Notes:           s.Notes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if c := s.Confirmation; c != nil {
		resp.Confirmation = &ConfirmationResponse{ConfirmedBy: c.ConfirmedBy, ConfirmedAt: c.ConfirmedAt}
	}
	if c := s.Cancellation; c != nil {
		resp.Cancellation = &CancellationResponse{
			CancelledBy: c.CancelledBy,
			CancelledAt: c.CancelledAt,
			Reason:      c.Reason,
			Type:        string(c.Type),
		}
	}
	return resp
}

type SlotRequest struct {
	Date        timeutil.Date      `json:"date"`
	StartTime   timeutil.TimeOfDay `json:"start_time"`
	EndTime     timeutil.TimeOfDay `json:"end_time"`
	IsAvailable *bool              `json:"is_available,omitempty"`
	Reason      *string            `json:"reason,omitempty"`
}

type SlotPatchRequest struct {
	Date        *timeutil.Date      `json:"date,omitempty"`
	StartTime   *timeutil.TimeOfDay `json:"start_time,omitempty"`
	EndTime     *timeutil.TimeOfDay `json:"end_time,omitempty"`
	IsAvailable *bool               `json:"is_available,omitempty"`
	Reason      *string             `json:"reason,omitempty"`
}

type SlotResponse struct {
	ID          uuid.UUID          `json:"id"`
	ProviderID  uuid.UUID          `json:"provider_id"`
	Date        timeutil.Date      `json:"date"`
	StartTime   timeutil.TimeOfDay `json:"start_time"`
	EndTime     timeutil.TimeOfDay `json:"end_time"`
	IsAvailable bool               `json:"is_available"`
	Reason      *string            `json:"reason,omitempty"`
}

func toSlotResponse(s availability.Slot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		ProviderID:  s.ProviderID,
		Date:        s.Date,
		StartTime:   s.Start,
		EndTime:     s.End,
		IsAvailable: s.IsAvailable,
		Reason:      s.Reason,
	}
}

func toSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

type WindowRequest struct {
	StartTime timeutil.TimeOfDay `json:"start_time"`
	EndTime   timeutil.TimeOfDay `json:"end_time"`
}

// WeeklyTemplateRequest keys windows by lower-case English weekday name.
type WeeklyTemplateRequest struct {
	From    timeutil.Date              `json:"from"`
	To      timeutil.Date              `json:"to"`
	Windows map[string][]WindowRequest `json:"windows"`
	Reason  *string                    `json:"reason,omitempty"`
}

type BlockRequest struct {
	Date   timeutil.Date `json:"date"`
	Reason *string       `json:"reason,omitempty"`
}

type BlockResponse struct {
	ProviderID uuid.UUID     `json:"provider_id"`
	Date       timeutil.Date `json:"date"`
	Reason     *string       `json:"reason,omitempty"`
}

type AvailabilityCheckResponse struct {
	ProviderID uuid.UUID          `json:"provider_id"`
	Date       timeutil.Date      `json:"date"`
	StartTime  timeutil.TimeOfDay `json:"start_time"`
	EndTime    timeutil.TimeOfDay `json:"end_time"`
	Available  bool               `json:"available"`
}

type ReputationEventRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Event   string `json:"event"`
}

type ReliabilityRecordResponse struct {
	ActorID           uuid.UUID  `json:"actor_id"`
	Role              string     `json:"role"`
	Score             int        `json:"score"`
	CompletedCount    int        `json:"completed_count"`
	NoShowCount       int        `json:"no_show_count"`
	AbsentCount       int        `json:"absent_count"`
	TotalAppointments int        `json:"total_appointments"`
	IsSuspended       bool       `json:"is_suspended"`
	SuspendedUntil    *time.Time `json:"suspended_until,omitempty"`
	SuspensionReason  *string    `json:"suspension_reason,omitempty"`
}

type ConflictResponse struct {
	Start time.Time     `json:"start,omitzero"`
	End   time.Time     `json:"end,omitzero"`
	Slot  *SlotResponse `json:"slot,omitempty"`
}

type ErrorResponse struct {
	Error    string            `json:"error"`
	Details  string            `json:"details,omitempty"`
	Conflict *ConflictResponse `json:"conflict,omitempty"`
}
