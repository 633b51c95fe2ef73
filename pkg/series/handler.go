package series

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/schedr/schedr/internal/rest"
	"github.com/schedr/schedr/pkg/override"
	"github.com/schedr/schedr/pkg/recurrence"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service}
}

type EventDTO struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Timezone    string         `json:"timezone,omitempty"`
	IsRecurring bool           `json:"is_recurring"`
	// Recurrence is write-only; reads expose the rule through
	// RecurrenceRule and RecurrenceParams instead.
	Recurrence       *RecurrenceDTO `json:"recurrence,omitempty"`
	RecurrenceRule   string         `json:"recurrence_rule,omitempty"`
	RecurrenceParams *RecurrenceDTO `json:"recurrence_params,omitempty"`
	// OriginalStart is set on single-occurrence responses only; together
	// with ID it re-targets the occurrence in later requests.
	OriginalStart *time.Time `json:"original_start,omitempty"`
}

type RecurrenceDTO struct {
	Frequency     string            `json:"frequency"`
	Interval      int               `json:"interval,omitempty"`
	Days          []int             `json:"days,omitempty"`
	MonthPosition *MonthPositionDTO `json:"month_position,omitempty"`
	Until         *time.Time        `json:"until,omitempty"`
	Count         *int              `json:"count,omitempty"`
}

type MonthPositionDTO struct {
	Ordinal int `json:"ordinal"`
	Weekday int `json:"weekday"`
}

type OccurrenceDTO struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

// ListEvents godoc
// @Summary List all event series of the current user
// @Tags events
// @Produce json
// @Success 200 {array} EventDTO
// @Router /api/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]EventDTO, 0, len(all))
	for _, s := range all {
		dtos = append(dtos, seriesToDTO(s))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// CreateEvent godoc
// @Summary Create an event series
// @Tags events
// @Accept json
// @Produce json
// @Param event body EventDTO true "Event details"
// @Success 201 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid event definition"
// @Router /api/events [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	def, err := dtoToSeries(dto)
	if err != nil {
		writeInvalid(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), def)
	if err != nil {
		if isInvalid(err) {
			writeInvalid(w, err)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(seriesToDTO(created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetEvent godoc
// @Summary Get a single event series
// @Tags events
// @Produce json
// @Param id path string true "Event id"
// @Success 200 {object} EventDTO
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Router /api/events/{id} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventId(w, r)
	if !ok {
		return
	}

	s, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSeriesNotFound) {
			writeNotFound(w, "Event not found")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(seriesToDTO(s)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// UpdateEvent godoc
// @Summary Update an event series or a single occurrence
// @Description Without occurrence_date the whole series definition is
// @Description replaced. With occurrence_date only that occurrence is
// @Description overridden and the series definition stays untouched.
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "Event id"
// @Param occurrence_date query string false "Original start of a single occurrence (RFC3339)"
// @Success 200 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid event definition"
// @Failure 404 {object} rest.ErrorResponse "Event or occurrence not found"
// @Router /api/events/{id} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventId(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Has("occurrence_date") {
		h.updateOccurrence(w, r, id)
		return
	}

	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	def, err := dtoToSeries(dto)
	if err != nil {
		writeInvalid(w, err)
		return
	}
	def.ID = id

	updated, err := h.service.Update(r.Context(), def)
	if err != nil {
		switch {
		case errors.Is(err, ErrSeriesNotFound):
			writeNotFound(w, "Event not found")
		case isInvalid(err):
			writeInvalid(w, err)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(seriesToDTO(updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) updateOccurrence(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	originalStart, ok := occurrenceDate(w, r)
	if !ok {
		return
	}

	var dto OccurrenceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.service.OverrideOccurrence(r.Context(), id, originalStart, OccurrencePatch{
		Title:       dto.Title,
		Description: dto.Description,
		Start:       dto.Start,
		End:         dto.End,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSeriesNotFound):
			writeNotFound(w, "Event not found")
		case errors.Is(err, ErrOccurrenceNotFound):
			writeNotFound(w, "Occurrence not found")
		case isInvalid(err):
			writeInvalid(w, err)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(EventDTO{
		ID:    o.SeriesID.String(),
		Title: o.Title, Description: o.Description,
		Start: o.Start, End: o.End,
		OriginalStart: &o.OriginalStart,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// DeleteEvent godoc
// @Summary Delete an event series or cancel a single occurrence
// @Tags events
// @Param id path string true "Event id"
// @Param occurrence_date query string false "Original start of a single occurrence (RFC3339)"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse "Event or occurrence not found"
// @Router /api/events/{id} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventId(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Has("occurrence_date") {
		originalStart, ok := occurrenceDate(w, r)
		if !ok {
			return
		}
		err := h.service.CancelOccurrence(r.Context(), id, originalStart)
		if err != nil {
			switch {
			case errors.Is(err, ErrSeriesNotFound):
				writeNotFound(w, "Event not found")
			case errors.Is(err, ErrOccurrenceNotFound):
				writeNotFound(w, "Occurrence not found")
			case errors.Is(err, ErrNotRecurring):
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
					Error:   "Event is not recurring",
					Details: "Single occurrences can only be cancelled on recurring events",
				})
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrSeriesNotFound) {
			writeNotFound(w, "Event not found")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreOccurrence godoc
// @Summary Revert a single occurrence to its generated form
// @Tags events
// @Param id path string true "Event id"
// @Param occurrence_date query string true "Original start of the occurrence (RFC3339)"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Router /api/events/{id}/restore [post]
func (h *Handler) RestoreOccurrence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventId(w, r)
	if !ok {
		return
	}
	originalStart, ok := occurrenceDate(w, r)
	if !ok {
		return
	}

	if err := h.service.RestoreOccurrence(r.Context(), id, originalStart); err != nil {
		switch {
		case errors.Is(err, ErrSeriesNotFound):
			writeNotFound(w, "Event not found")
		case errors.Is(err, override.ErrOverrideNotFound):
			writeNotFound(w, "Occurrence has no override to remove")
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) eventId(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["eventId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid event id",
			Details: "Event id must be a UUID",
		})
		if encodeErr != nil {
			http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
		}
		return uuid.Nil, false
	}
	return id, true
}

func occurrenceDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, r.URL.Query().Get("occurrence_date"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid occurrence_date format",
			Details: "'occurrence_date' must be in RFC3339 format",
		})
		if encodeErr != nil {
			http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
		}
		return time.Time{}, false
	}
	return t, true
}

func isInvalid(err error) bool {
	return errors.Is(err, ErrInvalidSeries) || errors.Is(err, recurrence.ErrInvalidRule)
}

func writeInvalid(w http.ResponseWriter, err error) {
	log.Debugf("rejected event definition: %v", err)
	w.WriteHeader(http.StatusBadRequest)
	encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
		Error:   "Invalid event definition",
		Details: err.Error(),
	})
	if encodeErr != nil {
		http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
	}
}

func writeNotFound(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusNotFound)
	encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
		Error: message,
	})
	if encodeErr != nil {
		http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
	}
}

func seriesToDTO(s Series) EventDTO {
	dto := EventDTO{
		ID:          s.ID.String(),
		Title:       s.Title,
		Description: s.Description,
		Start:       s.Start,
		End:         s.End,
		Timezone:    s.Timezone,
		IsRecurring: s.IsRecurring,
	}
	if s.Rule != nil {
		dto.RecurrenceRule = recurrence.FormatRRule(*s.Rule)
		dto.RecurrenceParams = ruleToDTO(s.Rule)
	}
	return dto
}

func ruleToDTO(rule *recurrence.Rule) *RecurrenceDTO {
	dto := &RecurrenceDTO{
		Frequency: string(rule.Frequency),
		Interval:  rule.Interval,
		Until:     rule.Until,
		Count:     rule.Count,
	}
	for _, d := range rule.ByWeekday {
		dto.Days = append(dto.Days, int(d))
	}
	if rule.ByMonthPosition != nil {
		dto.MonthPosition = &MonthPositionDTO{
			Ordinal: rule.ByMonthPosition.Ordinal,
			Weekday: int(rule.ByMonthPosition.Weekday),
		}
	}
	return dto
}

func dtoToSeries(dto EventDTO) (Series, error) {
	s := Series{
		Title:       dto.Title,
		Description: dto.Description,
		Start:       dto.Start,
		End:         dto.End,
		Timezone:    dto.Timezone,
		IsRecurring: dto.IsRecurring,
	}
	if dto.ID != "" {
		id, err := uuid.Parse(dto.ID)
		if err != nil {
			return Series{}, errors.Join(ErrInvalidSeries, errors.New("event id must be a UUID"))
		}
		s.ID = id
	}
	if dto.Recurrence != nil {
		rule, err := dtoToRule(*dto.Recurrence)
		if err != nil {
			return Series{}, err
		}
		s.Rule = rule
		s.IsRecurring = true
	} else if dto.RecurrenceRule != "" {
		rule, err := recurrence.ParseRRule(dto.RecurrenceRule)
		if err != nil {
			return Series{}, err
		}
		s.Rule = &rule
		s.IsRecurring = true
	}
	return s, nil
}

func dtoToRule(dto RecurrenceDTO) (*recurrence.Rule, error) {
	interval := dto.Interval
	if interval == 0 {
		interval = 1
	}

	var rule recurrence.Rule
	var err error
	switch recurrence.Frequency(dto.Frequency) {
	case recurrence.Daily:
		rule, err = recurrence.NewDaily(interval)
	case recurrence.Weekly:
		days := make([]time.Weekday, 0, len(dto.Days))
		for _, d := range dto.Days {
			days = append(days, time.Weekday(d))
		}
		rule, err = recurrence.NewWeekly(interval, days...)
	case recurrence.Monthly:
		if dto.MonthPosition != nil {
			rule, err = recurrence.NewMonthlyByPosition(interval, dto.MonthPosition.Ordinal, time.Weekday(dto.MonthPosition.Weekday))
		} else {
			rule, err = recurrence.NewMonthly(interval)
		}
	case recurrence.Yearly:
		rule, err = recurrence.NewYearly(interval)
	default:
		return nil, errors.Join(recurrence.ErrInvalidRule, errors.New("unknown frequency: "+dto.Frequency))
	}
	if err != nil {
		return nil, err
	}

	if dto.Until != nil {
		rule, err = rule.WithUntil(*dto.Until)
	} else if dto.Count != nil {
		rule, err = rule.WithCount(*dto.Count)
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
