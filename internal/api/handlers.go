package api

import (
	"context"
	"strconv"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"github.com/gofiber/fiber/v2"
)

const defaultHistoryLimit = 50

type overrideRequest struct {
	Profile string   `json:"profile"`
	Watts   *float64 `json:"watts"`
}

type catalogResponse struct {
	Default  string            `json:"default,omitempty"`
	Options  []float64         `json:"options"`
	Profiles []profile.Profile `json:"profiles"`
	Triggers []profile.Trigger `json:"triggers"`
}

func (s *Server) getState(c *fiber.Ctx) error {
	return c.JSON(s.opts.Controller.State())
}

func (s *Server) getTelemetry(c *fiber.Ctx) error {
	latest := s.opts.Display.Latest()

	body := fiber.Map{"available": latest.HasSample && (!latest.HasStatus || latest.Status.Available)}
	if latest.HasSample {
		body["sample"] = latest.Sample
	}
	if latest.HasStatus {
		body["status"] = latest.Status
	}

	return c.JSON(body)
}

func (s *Server) getCatalog(c *fiber.Ctx) error {
	catalog := s.opts.Store.Catalog()
	if catalog == nil {
		return sendError(c, errors.New().WithData(ErrDisabled, "no catalog loaded"))
	}

	return c.JSON(catalogResponse{
		Default:  catalog.DefaultName(),
		Options:  catalog.Options(),
		Profiles: catalog.Profiles(),
		Triggers: catalog.Triggers(),
	})
}

func (s *Server) getHistory(c *fiber.Ctx) error {
	if s.opts.History == nil {
		return sendError(c, errors.New().WithData(ErrDisabled, "history is disabled"))
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return sendError(c, errors.New().WithData(ErrBadRequest, "limit must be a positive integer"))
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	transitions, err := s.opts.History.Recent(ctx, limit)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(transitions)
}

func (s *Server) setOverride(c *fiber.Ctx) error {
	errFactory := errors.New()

	var req overrideRequest
	if err := c.BodyParser(&req); err != nil {
		return sendError(c, errFactory.Wrap(ErrBadRequest, err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	var err error
	switch {
	case req.Profile != "" && req.Watts != nil:
		return sendError(c, errFactory.WithData(ErrBadRequest, "set either profile or watts"))
	case req.Profile != "":
		err = s.opts.Controller.SetOverride(ctx, req.Profile)
	case req.Watts != nil:
		err = s.opts.Controller.SetOverrideWatts(ctx, *req.Watts)
	default:
		return sendError(c, errFactory.WithData(ErrBadRequest, "profile or watts is required"))
	}
	if err != nil {
		return sendError(c, err)
	}

	s.log.Info().Str("profile", req.Profile).Interface("watts", req.Watts).Msg("Manual override set")

	return c.JSON(s.opts.Controller.State())
}

func (s *Server) clearOverride(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := s.opts.Controller.ClearOverride(ctx); err != nil {
		return sendError(c, err)
	}

	s.log.Info().Msg("Manual override cleared")

	return c.JSON(s.opts.Controller.State())
}

func (s *Server) reload(c *fiber.Ctx) error {
	if s.opts.CatalogPath == "" {
		return sendError(c, errors.New().WithData(ErrDisabled, "no catalog file configured"))
	}

	catalog, err := s.opts.Store.LoadFile(s.opts.CatalogPath)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"profiles": len(catalog.Profiles()),
		"triggers": len(catalog.Triggers()),
	})
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	state := s.opts.Controller.State()
	latest := s.opts.Display.Latest()

	status := "ok"
	if state.Degraded || (latest.HasStatus && !latest.Status.Available) {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"phase":     state.Phase,
		"degraded":  state.Degraded,
		"telemetry": !latest.HasStatus || latest.Status.Available,
	})
}
