package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-core/internal/api/dto"
	"github.com/spec-kit/support-ticket-core/internal/auth"
	"github.com/spec-kit/support-ticket-core/internal/domain"
	"github.com/spec-kit/support-ticket-core/internal/service"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

// TicketsHandler exposes the ticket facade over HTTP.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	agentID, _ := auth.AgentFromContext(c)

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.ThreadID) == "" || strings.TrimSpace(req.From) == "" {
		return apperrors.NewValidationError("thread_id and from required", nil)
	}

	email := domain.InboundEmail{
		ThreadID: req.ThreadID,
		From:     req.From,
		Subject:  req.Subject,
		Body:     req.Body,
	}
	if req.Date != nil {
		email.Date = *req.Date
	}

	ticket, err := h.service.Create(c.UserContext(), email, service.CreateOptions{
		Category: req.Category,
		Priority: req.Priority,
		Tags:     req.Tags,
		Actor:    agentID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromDomain(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	agentID, ok := auth.AgentFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Update(c.UserContext(), c.Params("id"), service.UpdateInput{
		Status:   req.Status,
		Priority: req.Priority,
		Category: req.Category,
		Tags:     req.Tags,
	}, agentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(ticket)})
}

// RecordResponse POST /tickets/:id/response.
func (h *TicketsHandler) RecordResponse(c *fiber.Ctx) error {
	agentID, ok := auth.AgentFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	ticket, err := h.service.RecordResponse(c.UserContext(), c.Params("id"), agentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(ticket)})
}

// GetTicketByThread GET /tickets/by-thread/:threadId.
func (h *TicketsHandler) GetTicketByThread(c *fiber.Ctx) error {
	ticket, err := h.service.GetByThread(c.UserContext(), c.Params("threadId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDomain(ticket)})
}

// SearchTickets GET /tickets.
func (h *TicketsHandler) SearchTickets(c *fiber.Ctx) error {
	page := queryInt(c, "page", 0)
	pageSize := queryInt(c, "page_size", 20)
	query := c.Query("q")

	filters := service.SearchFilters{
		SortBy:  c.Query("sort_by"),
		SortAsc: c.Query("sort_order") == "asc",
	}
	if v := c.Query("status"); v != "" {
		status := domain.Status(v)
		filters.Status = &status
	}
	if v := c.Query("priority"); v != "" {
		priority := domain.Priority(v)
		filters.Priority = &priority
	}
	if v := c.Query("category"); v != "" {
		category := v
		filters.Category = &category
	}
	if t, ok := queryTime(c, "from"); ok {
		filters.From = &t
	}
	if t, ok := queryTime(c, "to"); ok {
		filters.To = &t
	}

	var result *service.SearchResult
	var err error
	if query == "" && filters.Status == nil && filters.Priority == nil &&
		filters.Category == nil && filters.From == nil && filters.To == nil {
		result, err = h.service.List(c.UserContext(), page, pageSize)
	} else {
		result, err = h.service.Search(c.UserContext(), query, filters, page, pageSize)
	}
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(result.Tickets))
	for i := range result.Tickets {
		items = append(items, dto.FromDomain(&result.Tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.SearchResponse{
		Tickets:  items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}})
}

// GetStatistics GET /statistics.
func (h *TicketsHandler) GetStatistics(c *fiber.Ctx) error {
	var from, to time.Time
	if t, ok := queryTime(c, "from"); ok {
		from = t
	}
	if t, ok := queryTime(c, "to"); ok {
		to = t
	}
	stats, err := h.service.Statistics(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	val := c.Query(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func queryTime(c *fiber.Ctx, key string) (time.Time, bool) {
	val := c.Query(key)
	if val == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, val)
	if err != nil {
		// Accept bare dates as well.
		parsed, err = time.Parse("2006-01-02", val)
		if err != nil {
			return time.Time{}, false
		}
	}
	return parsed, true
}
