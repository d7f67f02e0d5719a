package lending

import (
	"lendpool-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type disbursementBody struct {
	MemberID string `json:"member_id"`
	PoolID   string `json:"pool_id"`
	Quantity int64  `json:"quantity"`
}

// RequestDisbursement POST /api/v1/disbursements
func (h *Handlers) RequestDisbursement(c *fiber.Ctx) error {
	var body disbursementBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.MemberID == "" || body.PoolID == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	memberID, ok, err := parseUUID(c, "member_id", body.MemberID)
	if !ok {
		return err
	}
	poolID, ok, err := parseUUID(c, "pool_id", body.PoolID)
	if !ok {
		return err
	}
	d, err := h.Service.RequestDisbursement(c.UserContext(), memberID, poolID, body.Quantity)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Disbursement requested", d, nil)
}

// GetDisbursement GET /api/v1/disbursements/:id
func (h *Handlers) GetDisbursement(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	d, err := h.Service.GetDisbursement(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Disbursement fetched successfully", d, nil)
}

// ApproveDisbursement POST /api/v1/disbursements/:id/approve (admin)
func (h *Handlers) ApproveDisbursement(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	admin, ok, err := adminID(c)
	if !ok {
		return err
	}
	d, err := h.Service.ApproveDisbursement(c.UserContext(), id, admin)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Disbursement approved", d, nil)
}

// RejectDisbursement POST /api/v1/disbursements/:id/reject (admin)
func (h *Handlers) RejectDisbursement(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	admin, ok, err := adminID(c)
	if !ok {
		return err
	}
	var body reasonBody
	if !optionalBody(c, &body) {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	d, err := h.Service.RejectDisbursement(c.UserContext(), id, admin, body.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Disbursement rejected", d, nil)
}

// CancelDisbursement POST /api/v1/disbursements/:id/cancel
func (h *Handlers) CancelDisbursement(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	var body memberBody
	if err := c.BodyParser(&body); err != nil || body.MemberID == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	memberID, ok, err := parseUUID(c, "member_id", body.MemberID)
	if !ok {
		return err
	}
	d, err := h.Service.CancelDisbursement(c.UserContext(), id, memberID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Disbursement cancelled", d, nil)
}

// HandOverDisbursement POST /api/v1/disbursements/:id/handover (admin)
func (h *Handlers) HandOverDisbursement(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	d, err := h.Service.MarkDisbursed(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Consumables handed over", d, nil)
}
