package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sms-campaign-engine/internal/app"
	"sms-campaign-engine/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler holds all HTTP handlers for the campaign engine API.
type Handler struct {
	svc  *app.CampaignService
	step *app.BatchStepDriver
	log  *slog.Logger
}

// NewHandler wires up a Handler with its dependencies.
func NewHandler(svc *app.CampaignService, step *app.BatchStepDriver, log *slog.Logger) *Handler {
	return &Handler{svc: svc, step: step, log: log}
}

// Register mounts all routes onto the given Fiber router.
func (h *Handler) Register(router fiber.Router) {
	router.Post("/campaigns", h.SubmitCampaign)
	router.Get("/campaigns", h.ListCampaigns)
	router.Get("/campaigns/:id", h.GetCampaign)
	router.Post("/campaigns/:id/cancel", h.CancelCampaign)
	router.Post("/campaigns/:id/resume", h.ResumeCampaign)
	router.Delete("/campaigns/:id", h.DeleteCampaign)
	router.Post("/worker/step", h.TriggerStep)
}

// ── Campaign submission ──────────────────────────────────────────────────────

type submitMessage struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

type submitCampaignRequest struct {
	Name           string            `json:"name"`
	Template       string            `json:"template"`
	ProviderType   string            `json:"providerType"`
	ProviderConfig map[string]string `json:"providerConfig"`
	ScheduledAt    *time.Time        `json:"scheduledAt"`
	Messages       []submitMessage   `json:"messages"`
}

type submitCampaignResponse struct {
	CampaignID string `json:"campaign_id"`
	Queued     int    `json:"queued"`
}

// SubmitCampaign accepts a campaign with pre-rendered messages and
// stores it in pending status.
//
// POST /campaigns
func (h *Handler) SubmitCampaign(c *fiber.Ctx) error {
	var req submitCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	msgs := make([]app.SubmitEntry, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, app.SubmitEntry{To: m.To, Content: m.Content})
	}

	campaign, err := h.svc.Submit(c.Context(), app.SubmitRequest{
		Name:           req.Name,
		Template:       req.Template,
		ProviderType:   req.ProviderType,
		ProviderConfig: req.ProviderConfig,
		ScheduledAt:    req.ScheduledAt,
		Messages:       msgs,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoRecipients) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no messages provided"})
		}
		h.log.Error("submit campaign", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).JSON(submitCampaignResponse{
		CampaignID: campaign.ID.String(),
		Queued:     campaign.TotalMessages,
	})
}

// ── Campaign inspection ──────────────────────────────────────────────────────

// ListCampaigns returns all campaigns, newest first.
//
// GET /campaigns
func (h *Handler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.svc.List(c.Context())
	if err != nil {
		h.log.Error("list campaigns", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"campaigns": campaigns})
}

// GetCampaign returns one campaign with per-status message counts.
//
// GET /campaigns/:id
func (h *Handler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid campaign id"})
	}

	details, err := h.svc.Details(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
		}
		h.log.Error("get campaign", "campaign_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{"campaign": details.Campaign, "stats": details.Stats})
}

// ── Operator actions ─────────────────────────────────────────────────────────

// CancelCampaign pauses a pending or sending campaign.
//
// POST /campaigns/:id/cancel
func (h *Handler) CancelCampaign(c *fiber.Ctx) error {
	return h.operatorAction(c, h.svc.Cancel)
}

// ResumeCampaign makes a paused campaign eligible again.
//
// POST /campaigns/:id/resume
func (h *Handler) ResumeCampaign(c *fiber.Ctx) error {
	return h.operatorAction(c, h.svc.Resume)
}

// DeleteCampaign removes a campaign and its messages.
//
// DELETE /campaigns/:id
func (h *Handler) DeleteCampaign(c *fiber.Ctx) error {
	return h.operatorAction(c, h.svc.Delete)
}

func (h *Handler) operatorAction(c *fiber.Ctx, action func(ctx context.Context, id uuid.UUID) error) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid campaign id"})
	}

	if err := action(c.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrCampaignNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "campaign not found"})
		case errors.Is(err, domain.ErrInvalidStatus):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			h.log.Error("campaign action", "campaign_id", id, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ── Batch trigger ────────────────────────────────────────────────────────────

type stepResponse struct {
	Message    string `json:"message"`
	Processed  int    `json:"processed"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// TriggerStep performs one batch step. Safe under repeated low-frequency
// invocation; each call does real provider I/O and paced sleeps.
//
// POST /worker/step
func (h *Handler) TriggerStep(c *fiber.Ctx) error {
	res, err := h.step.Step(c.Context())
	if err != nil {
		h.log.Error("batch step", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	resp := stepResponse{Processed: res.Processed}
	switch {
	case res.NoWork:
		resp.Message = "no active campaigns to process"
	case res.Completed:
		resp.Message = "campaign completed"
		resp.CampaignID = res.CampaignID.String()
	default:
		resp.Message = fmt.Sprintf("processed %d messages", res.Processed)
		resp.CampaignID = res.CampaignID.String()
	}

	return c.JSON(resp)
}
