package lending

import (
	"time"

	lendsvc "lendpool-backend/internal/application/lending"
	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/middleware"
	"lendpool-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *lendsvc.Service
}

func parseUUID(c *fiber.Ctx, field, raw string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, response.Error(c, "Invalid UUID format for "+field, fiber.StatusBadRequest, nil)
	}
	return id, true, nil
}

func paramID(c *fiber.Ctx) (uuid.UUID, bool, error) {
	return parseUUID(c, "id", c.Params("id"))
}

func adminID(c *fiber.Ctx) (uuid.UUID, bool, error) {
	id, ok := middleware.GetAdminID(c)
	if !ok {
		return uuid.Nil, false, response.Unauthorized(c, "Unauthorized")
	}
	return id, true, nil
}

// optionalBody parses the body into out when one was sent. An empty body
// leaves out untouched.
func optionalBody(c *fiber.Ctx, out interface{}) bool {
	if len(c.Body()) == 0 {
		return true
	}
	return c.BodyParser(out) == nil
}

type borrowBody struct {
	MemberID           string    `json:"member_id"`
	PoolID             string    `json:"pool_id"`
	Quantity           int64     `json:"quantity"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
}

// RequestBorrow POST /api/v1/borrowings
func (h *Handlers) RequestBorrow(c *fiber.Ctx) error {
	var body borrowBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.MemberID == "" || body.PoolID == "" || body.ExpectedReturnDate.IsZero() {
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

	b, err := h.Service.RequestBorrow(c.UserContext(), memberID, poolID, body.Quantity, body.ExpectedReturnDate.UTC())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Borrowing requested", b, nil)
}

// GetBorrowing GET /api/v1/borrowings/:id
func (h *Handlers) GetBorrowing(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	b, err := h.Service.GetBorrowing(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Borrowing fetched successfully", b, nil)
}

// ApproveBorrow POST /api/v1/borrowings/:id/approve (admin)
func (h *Handlers) ApproveBorrow(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	admin, ok, err := adminID(c)
	if !ok {
		return err
	}
	b, err := h.Service.Approve(c.UserContext(), id, admin)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Borrowing approved", b, nil)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// RejectBorrow POST /api/v1/borrowings/:id/reject (admin)
func (h *Handlers) RejectBorrow(c *fiber.Ctx) error {
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
	b, err := h.Service.Reject(c.UserContext(), id, admin, body.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Borrowing rejected", b, nil)
}

type memberBody struct {
	MemberID string `json:"member_id"`
}

// CancelBorrow POST /api/v1/borrowings/:id/cancel
func (h *Handlers) CancelBorrow(c *fiber.Ctx) error {
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
	b, err := h.Service.Cancel(c.UserContext(), id, memberID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Borrowing cancelled", b, nil)
}

// HandOverBorrow POST /api/v1/borrowings/:id/handover (admin)
func (h *Handlers) HandOverBorrow(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	b, err := h.Service.MarkBorrowed(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Equipment handed over", b, nil)
}

type quantityBody struct {
	Quantity int64 `json:"quantity"`
}

// ReturnItems POST /api/v1/borrowings/:id/return (admin)
func (h *Handlers) ReturnItems(c *fiber.Ctx) error {
	id, ok, err := paramID(c)
	if !ok {
		return err
	}
	var body quantityBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	b, err := h.Service.ReturnItems(c.UserContext(), id, body.Quantity)
	if err != nil {
		return response.FromError(c, err)
	}
	msg := "Items returned"
	if b.Status == domain.BorrowingCompleted {
		msg = "Borrowing completed"
	}
	return response.Success(c, msg, b, nil)
}
