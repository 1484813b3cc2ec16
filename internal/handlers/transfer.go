package handlers

import (
	domainerrors "airtime/internal/errors"
	"airtime/internal/services/transfer"
	"airtime/internal/utils"
	"airtime/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// TransferHandler exposes the balance transfer endpoints.
type TransferHandler struct {
	service transfer.Service
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(s transfer.Service) *TransferHandler { return &TransferHandler{service: s} }

// Transfer handles POST /transfers requests.
func (h *TransferHandler) Transfer(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return response.BadRequest(c, "invalid request")
	}
	return respond(c, h.service.Transfer(c.UserContext(), req))
}

// TransferWithReason handles POST /transfers/adjustment requests.
func (h *TransferHandler) TransferWithReason(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return response.BadRequest(c, "invalid request")
	}
	return respond(c, h.service.TransferWithReason(c.UserContext(), req))
}

// TransferWithoutPin handles POST /transfers/service-center requests.
func (h *TransferHandler) TransferWithoutPin(c *fiber.Ctx) error {
	var req transfer.PinlessRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	req.Actor = utils.Actor(c)
	req.RequestID = c.Get(fiber.HeaderXRequestID)
	return respond(c, h.service.TransferWithoutPin(c.UserContext(), req))
}

// Validate handles POST /transfers/validate requests.
func (h *TransferHandler) Validate(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return response.BadRequest(c, "invalid request")
	}
	return respond(c, h.service.Validate(c.UserContext(), req))
}

func parseRequest(c *fiber.Ctx) (transfer.Request, error) {
	var req transfer.Request
	if err := c.BodyParser(&req); err != nil {
		return req, err
	}
	req.Actor = utils.Actor(c)
	req.RequestID = c.Get(fiber.HeaderXRequestID)
	return req, nil
}

func respond(c *fiber.Ctx, out transfer.Outcome) error {
	return response.Status(c, statusFor(out.Code), out)
}

// statusFor maps an outcome code to the HTTP status returned with it.
func statusFor(code int) int {
	switch code {
	case domainerrors.CodeSuccess:
		return fiber.StatusOK
	case domainerrors.CodeServiceUnavailable:
		return fiber.StatusServiceUnavailable
	case domainerrors.CodeMiscellaneous:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusUnprocessableEntity
	}
}
