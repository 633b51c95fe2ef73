package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/schedr/schedr/internal/rest"
	"github.com/schedr/schedr/internal/utils"
)

type Handler struct {
	materializer *Materializer
	clock        utils.Clock
}

func NewHandler(materializer *Materializer, clock utils.Clock) *Handler {
	return &Handler{materializer, clock}
}

type CalendarEventDTO struct {
	SeriesID      string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	IsRecurring   bool      `json:"is_recurring"`
	OriginalStart time.Time `json:"original_start"`
	IsOverridden  bool      `json:"is_overridden,omitempty"`
}

// GetCalendar godoc
// @Summary Materialize all occurrences within a time window
// @Description Without start and end parameters the current month is used.
// @Tags calendar
// @Produce json
// @Param start query string false "Window start (RFC3339)"
// @Param end query string false "Window end (RFC3339)"
// @Success 200 {array} CalendarEventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid or oversized window"
// @Router /api/calendar [get]
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	from, to := h.currentMonth()

	if s := r.URL.Query().Get("start"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeBadRequest(w, "Invalid start (date) format", "'start' must be in RFC3339 format")
			return
		}
		from = parsed
	}
	if s := r.URL.Query().Get("end"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeBadRequest(w, "Invalid end (date) format", "'end' must be in RFC3339 format")
			return
		}
		to = parsed
	}

	events, err := h.materializer.Materialize(r.Context(), from, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRange):
			writeBadRequest(w, "Invalid time window", "'end' must not be before 'start'")
		case errors.Is(err, ErrRangeTooLarge):
			writeBadRequest(w, "Time window too large", err.Error())
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeEvents(w, events)
}

// GetUpcoming godoc
// @Summary List the next upcoming occurrences
// @Tags calendar
// @Produce json
// @Success 200 {array} CalendarEventDTO
// @Router /api/upcoming [get]
func (h *Handler) GetUpcoming(w http.ResponseWriter, r *http.Request) {
	events, err := h.materializer.Upcoming(r.Context(), h.clock.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeEvents(w, events)
}

func (h *Handler) currentMonth() (time.Time, time.Time) {
	now := h.clock.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func writeEvents(w http.ResponseWriter, events []CalendarEvent) {
	dtos := make([]CalendarEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, CalendarEventDTO{
			SeriesID:      e.SeriesID.String(),
			Title:         e.Title,
			Description:   e.Description,
			Start:         e.Start,
			End:           e.End,
			IsRecurring:   e.IsRecurring,
			OriginalStart: e.OriginalStart,
			IsOverridden:  e.Overridden,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func writeBadRequest(w http.ResponseWriter, message, details string) {
	w.WriteHeader(http.StatusBadRequest)
	encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
		Error:   message,
		Details: details,
	})
	if encodeErr != nil {
		http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
	}
}
