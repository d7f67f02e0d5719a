package response

import (
	"errors"

	"lendpool-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Code       string      `json:"code,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	return errorWithCode(c, message, statusCode, "", details)
}

func errorWithCode(c *fiber.Ctx, message string, statusCode int, code string, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Code:       code,
			Details:    details,
		},
	})
}

// Unauthorized sends 401 with the same shape as other errors.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

type mapping struct {
	target error
	status int
	code   string
}

// Order matters only when an error wraps more than one sentinel.
var mappings = []mapping{
	{domain.ErrValidation, fiber.StatusBadRequest, "validation"},
	{domain.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{domain.ErrMemberSuspended, fiber.StatusForbidden, "member_suspended"},
	{domain.ErrInsufficientInventory, fiber.StatusConflict, "insufficient_inventory"},
	{domain.ErrAlreadyProcessed, fiber.StatusConflict, "already_processed"},
	{domain.ErrOverReturn, fiber.StatusUnprocessableEntity, "over_return"},
	{domain.ErrWouldGoNegative, fiber.StatusUnprocessableEntity, "would_go_negative"},
}

// StatusFor maps a service error to an HTTP status and a stable error code.
func StatusFor(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return fiber.StatusInternalServerError, "internal"
}

// FromError writes a business error as a 4xx with its message. Anything else
// is logged and answered with a generic 500.
func FromError(c *fiber.Ctx, err error) error {
	status, code := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		return errorWithCode(c, "Internal Server Error", status, code, nil)
	}
	return errorWithCode(c, err.Error(), status, code, nil)
}
