package domain

import (
	"time"

	"github.com/google/uuid"
)

// FloorPlan is a saved layout for an event. The newest one drives seat
// generation and the availability view.
type FloorPlan struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"eventId"`
	Name      string    `json:"name"`
	Layout    Layout    `json:"config"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewFloorPlan(eventID uuid.UUID, layout Layout) FloorPlan {
	name := layout.HallName
	if name == "" {
		name = "Untitled Floor Plan"
	}
	return FloorPlan{
		ID:        uuid.New(),
		EventID:   eventID,
		Name:      name,
		Layout:    layout,
		CreatedAt: time.Now().UTC(),
	}
}
