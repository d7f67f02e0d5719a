package lending

import (
	"errors"

	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type registerBody struct {
	Name           string `json:"name"`
	OpeningBalance int64  `json:"opening_balance"`
}

// RegisterMember POST /api/v1/members (admin)
func (h *Handlers) RegisterMember(c *fiber.Ctx) error {
	var body registerBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	admin, ok, err := adminID(c)
	if !ok {
		return err
	}
	m, err := h.Service.RegisterMember(c.UserContext(), body.Name, body.OpeningBalance, &admin)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Member registered", m, nil)
}

// SetMemberStatus PATCH /api/v1/members/:id/status (admin)
func (h *Handlers) SetMemberStatus(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.SetMemberStatus(c.UserContext(), id, domain.MemberStatus(body.Status)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Member status updated", fiber.Map{"member_id": id, "status": body.Status}, nil)
}

// GetBalance GET /api/v1/members/:id/balance
func (h *Handlers) GetBalance(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	bal, err := h.Service.GetBalance(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Balance fetched successfully", fiber.Map{"member_id": id, "balance": bal}, nil)
}

// GetLedger GET /api/v1/members/:id/ledger
func (h *Handlers) GetLedger(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	entries, err := h.Service.GetLedgerHistory(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ledger fetched successfully", entries, fiber.Map{"count": len(entries)})
}

// VerifyLedger GET /api/v1/members/:id/ledger/verify (admin)
func (h *Handlers) VerifyLedger(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	if err := h.Service.VerifyLedger(c.UserContext(), id); err != nil {
		if errors.Is(err, domain.ErrLedgerMismatch) {
			return response.Error(c, err.Error(), fiber.StatusConflict, fiber.Map{"consistent": false})
		}
		return response.FromError(c, err)
	}
	return response.Success(c, "Ledger is consistent", fiber.Map{"member_id": id, "consistent": true}, nil)
}

type adjustBody struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AdjustCredit POST /api/v1/members/:id/adjust (admin)
func (h *Handlers) AdjustCredit(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	admin, ok, err := adminID(c)
	if !ok {
		return err
	}
	var body adjustBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	entry, err := h.Service.AdjustCredit(c.UserContext(), id, body.Amount, body.Reason, admin)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Credit adjusted", entry, nil)
}

// ResetCredit POST /api/v1/members/:id/reset (admin)
func (h *Handlers) ResetCredit(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	admin, ok, err := adminID(c)
	if !ok {
		return err
	}
	var body struct {
		Target int64  `json:"target"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	entry, err := h.Service.ResetCredit(c.UserContext(), id, body.Target, body.Reason, admin)
	if err != nil {
		return response.FromError(c, err)
	}
	if entry == nil {
		return response.Success(c, "Balance already at target", nil, nil)
	}
	return response.Success(c, "Credit reset", entry, nil)
}
