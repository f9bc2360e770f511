package server

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/medplan/internal/revision"
	"github.com/example/medplan/internal/srs"
	"github.com/example/medplan/pkg/models"
)

const dateLayout = "2006-01-02"

type completionRequest struct {
	CompletedOn string `json:"completed_on" validate:"omitempty,datetime=2006-01-02"`
}

// completedOn resolves the request's completion date, falling back to the
// server clock at this transport edge only.
func (req completionRequest) completedOn() (time.Time, error) {
	if req.CompletedOn == "" {
		return srs.Day(time.Now()), nil
	}
	return time.Parse(dateLayout, req.CompletedOn)
}

func (s *Server) handleTopicCompleted(c *fiber.Ctx) error {
	topicID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req, err := s.parseCompletion(c)
	if err != nil {
		return err
	}
	completedOn, err := req.completedOn()
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "completed_on must be YYYY-MM-DD")
	}

	first, err := s.svc.HandleTopicCompleted(c.Context(), topicID, completedOn)
	if err != nil {
		return s.writeError(c, err)
	}
	if first == nil {
		// A surviving earlier cycle already holds the first stage.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"already_scheduled": true})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"revision": first})
}

func (s *Server) handleTopicUncompleted(c *fiber.Ctx) error {
	topicID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	deleted, err := s.svc.HandleTopicUncompleted(c.Context(), topicID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"deleted_pending": deleted})
}

func (s *Server) handleBuckets(c *fiber.Ctx) error {
	userID, err := paramID(c, "userID")
	if err != nil {
		return err
	}

	today := srs.Day(time.Now())
	if raw := c.Query("today"); raw != "" {
		today, err = time.Parse(dateLayout, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "today must be YYYY-MM-DD")
		}
	}

	buckets, err := s.svc.Buckets(c.Context(), userID, today)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(buckets)
}

func (s *Server) handleCompleteRevision(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req, err := s.parseCompletion(c)
	if err != nil {
		return err
	}
	completedOn, err := req.completedOn()
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "completed_on must be YYYY-MM-DD")
	}

	completed, next, err := s.svc.Complete(c.Context(), id, completedOn)
	if err != nil {
		var schedErr *revision.ScheduleNextError
		if errors.As(err, &schedErr) {
			// The completion is durable; report the scheduling fault
			// alongside it so the client does not assume a next stage.
			s.log.Error("next-stage scheduling failed", zap.Int64("revision_id", id), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"completed": completed,
				"error":     "completed, but scheduling the next stage failed",
			})
		}
		return s.writeError(c, err)
	}

	resp := fiber.Map{"completed": completed}
	if next != nil {
		resp["next"] = next
	}
	return c.JSON(resp)
}

func (s *Server) handleRefuseRevision(c *fiber.Ctx) error {
	return s.transition(c, s.svc.Refuse)
}

func (s *Server) handleReactivateRevision(c *fiber.Ctx) error {
	return s.transition(c, s.svc.Reactivate)
}

func (s *Server) transition(c *fiber.Ctx, op func(ctx context.Context, id int64) (*models.Revision, error)) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	rev, err := op(c.Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"revision": rev})
}

// parseCompletion reads an optional JSON body carrying completed_on.
func (s *Server) parseCompletion(c *fiber.Ctx) (completionRequest, error) {
	var req completionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := s.validate.Struct(req); err != nil {
			return req, fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
	}
	return req, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// writeError maps typed scheduler errors onto HTTP statuses.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	var (
		notFound *revision.NotFoundError
		invalid  *revision.InvalidTransitionError
		dup      *revision.DuplicateStageError
		unknown  *models.UnknownStageError
	)
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     err.Error(),
			"state":     invalid.State,
			"attempted": invalid.Attempted,
		})
	case errors.As(err, &dup):
		// Benign: the stage is already scheduled.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":             err.Error(),
			"already_scheduled": true,
		})
	case errors.As(err, &unknown):
		s.log.Error("unknown stage in persisted data", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.log.Error("request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
