// Package api serves the nowcast over HTTP: clients report their position
// and read back the record, its one-hour timeline and the next rain alert.
package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
)

const updateTimeout = 30 * time.Second

var validate = validator.New()

// Updater drives record updates.
type Updater interface {
	Notify(ctx context.Context, coord domain.Coordinate) error
	Refresh(ctx context.Context) error
}

// Store holds the current record.
type Store interface {
	Snapshot() domain.Record
	Clear()
}

type handler struct {
	updater    Updater
	store      Store
	clock      clockwork.Clock
	alertLevel domain.RainIndex
}

// RegisterRoutes wires the API handlers into the Fiber app. alertLevel is the
// threshold used when a request names none.
func RegisterRoutes(app *fiber.App, updater Updater, store Store, clock clockwork.Clock, alertLevel domain.RainIndex) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &handler{updater: updater, store: store, clock: clock, alertLevel: alertLevel}

	v1 := app.Group("/api/v1")
	v1.Post("/location", h.postLocation)
	v1.Post("/refresh", h.postRefresh)
	v1.Get("/record", h.getRecord)
	v1.Get("/timeline", h.getTimeline)
	v1.Get("/alert", h.getAlert)
}

// locationRequest is the body of POST /location.
type locationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

func (h *handler) postLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), updateTimeout)
	defer cancel()

	coord := domain.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.updater.Notify(ctx, coord); err != nil {
		return err
	}
	return c.JSON(h.store.Snapshot().Snapshot(h.clock.Now()))
}

func (h *handler) postRefresh(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), updateTimeout)
	defer cancel()

	h.store.Clear()
	if err := h.updater.Refresh(ctx); err != nil {
		return err
	}
	return c.JSON(h.store.Snapshot().Snapshot(h.clock.Now()))
}

func (h *handler) getRecord(c *fiber.Ctx) error {
	return c.JSON(h.store.Snapshot().Snapshot(h.clock.Now()))
}

func (h *handler) getTimeline(c *fiber.Ctx) error {
	ref := h.clock.Now()
	if at := c.Query("at"); at != "" {
		t, err := parseTime(at)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		ref = t
	}

	r := h.store.Snapshot()
	return c.JSON(fiber.Map{
		"reference": ref,
		"location":  r.LocationDisplay(),
		"segments":  domain.Project(r, ref),
	})
}

func (h *handler) getAlert(c *fiber.Ctx) error {
	level := h.alertLevel
	if q := c.Query("level"); q != "" {
		l, err := domain.ParseRainIndex(q)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		level = l
	}

	now := h.clock.Now()
	alert := h.store.Snapshot().Alert(level, now)
	return c.JSON(fiber.Map{
		"level":        alert.Level,
		"trigger_at":   alert.TriggerAt,
		"lead_minutes": alert.MinutesFrom(now),
		"expected":     !alert.Unknown(),
	})
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
