package override

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	// KindModified replaces the generated occurrence's title, description,
	// and times.
	KindModified Kind = "modified"
	// KindCancelled removes the occurrence from materialized output.
	KindCancelled Kind = "cancelled"
)

// Override is a per-occurrence change layered on top of a generated series.
// The key is (SeriesID, OriginalStart): OriginalStart stays the occurrence's
// stable identity even after the occurrence is moved to a different time.
type Override struct {
	SeriesID      uuid.UUID
	OriginalStart time.Time
	Kind          Kind
	// The fields below apply to KindModified only.
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// EffectiveStart is where the occurrence is displayed: the new start for a
// modification, the original slot otherwise.
func (o Override) EffectiveStart() time.Time {
	if o.Kind == KindModified {
		return o.Start
	}
	return o.OriginalStart
}
