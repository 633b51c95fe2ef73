package event_bus

import "time"

const (
	SeriesCreated       EventType = "series.created"
	SeriesUpdated       EventType = "series.updated"
	SeriesDeleted       EventType = "series.deleted"
	OccurrenceModified  EventType = "occurrence.modified"
	OccurrenceCancelled EventType = "occurrence.cancelled"
)

// SeriesChange is the payload for series lifecycle events.
type SeriesChange struct {
	SeriesID    string
	Title       string
	Start       time.Time
	End         time.Time
	IsRecurring bool
}

// OccurrenceChange is the payload for per-occurrence events. OriginalStart is
// the stable occurrence key, not the displayed start.
type OccurrenceChange struct {
	SeriesID      string
	OriginalStart time.Time
}
