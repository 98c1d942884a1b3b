package domain

import (
	"fmt"
	"math"
	"time"
)

// AlertEvent is a published rain alert.
type AlertEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Level       RainIndex `json:"level"`
	TriggerAt   time.Time `json:"trigger_at"`
	LeadMinutes int       `json:"lead_minutes"`
	Town        string    `json:"town,omitempty"`
	PostalCode  int       `json:"postal_code,omitempty"`
	AreaCode    AreaCode  `json:"area_code,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NewAlertEvent describes alert for the location held by r.
func NewAlertEvent(id string, r Record, alert Alert, now time.Time) AlertEvent {
	lead := int(math.Round(alert.MinutesFrom(now)))
	e := AlertEvent{
		ID:          id,
		Title:       "Rain alert",
		Message:     alertMessage(alert.Level, lead),
		Level:       alert.Level,
		TriggerAt:   alert.TriggerAt,
		LeadMinutes: lead,
		PublishedAt: now,
	}
	if loc, ok := r.Location(); ok {
		e.Town = loc.Town
		e.PostalCode = loc.PostalCode
	}
	if area, ok := r.AreaCode(); ok {
		e.AreaCode = area
	}
	return e
}

func alertMessage(level RainIndex, lead int) string {
	if lead > 0 {
		return fmt.Sprintf("level %s in %d min", level, lead)
	}
	return fmt.Sprintf("level %s now", level)
}
