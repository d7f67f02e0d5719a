package lending

import "github.com/gofiber/fiber/v2"

// Routes mounts the lending API on r. admin guards staff-only routes.
func (h *Handlers) Routes(r fiber.Router, admin fiber.Handler) {
	bg := r.Group("/borrowings")
	bg.Post("/", h.RequestBorrow)
	bg.Get("/:id", h.GetBorrowing)
	bg.Post("/:id/cancel", h.CancelBorrow)
	bg.Post("/:id/approve", admin, h.ApproveBorrow)
	bg.Post("/:id/reject", admin, h.RejectBorrow)
	bg.Post("/:id/handover", admin, h.HandOverBorrow)
	bg.Post("/:id/return", admin, h.ReturnItems)

	dg := r.Group("/disbursements")
	dg.Post("/", h.RequestDisbursement)
	dg.Get("/:id", h.GetDisbursement)
	dg.Post("/:id/cancel", h.CancelDisbursement)
	dg.Post("/:id/approve", admin, h.ApproveDisbursement)
	dg.Post("/:id/reject", admin, h.RejectDisbursement)
	dg.Post("/:id/handover", admin, h.HandOverDisbursement)

	mg := r.Group("/members")
	mg.Post("/", admin, h.RegisterMember)
	mg.Get("/:id/balance", h.GetBalance)
	mg.Get("/:id/ledger", h.GetLedger)
	mg.Get("/:id/ledger/verify", admin, h.VerifyLedger)
	mg.Patch("/:id/status", admin, h.SetMemberStatus)
	mg.Post("/:id/adjust", admin, h.AdjustCredit)
	mg.Post("/:id/reset", admin, h.ResetCredit)
}
