package rekuest

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/riftstats/backend-next/internal/pkg/rserr"
	"github.com/riftstats/backend-next/internal/util"
)

var Validate = util.NewValidator()

type ErrorResponse struct {
	Field     string `json:"field,omitempty"`
	Violation string `json:"violation"`
	Message   string `json:"message"`
}

func describe(ve validator.ValidationErrors) []*ErrorResponse {
	violations := make([]*ErrorResponse, 0, len(ve))
	for _, fe := range ve {
		violations = append(violations, &ErrorResponse{
			Field:     fe.Namespace(),
			Violation: fe.Tag(),
			Message:   fe.Error(),
		})
	}
	return violations
}

// ValidBody gets the body from *fiber.Ctx using fiber#BodyParser() and
// validates it using the validator singleton. If validation passes it writes
// the unmarshalled body to dest and returns nil, otherwise an error.
func ValidBody(ctx *fiber.Ctx, dest any) error {
	if err := ctx.BodyParser(dest); err != nil {
		return rserr.ErrInvalidReq.Msg("invalid request: %s", err)
	}
	return ValidateStruct(ctx, dest)
}

// ValidQuery parses the query string into dest and validates it.
func ValidQuery(ctx *fiber.Ctx, dest any) error {
	if err := ctx.QueryParser(dest); err != nil {
		return rserr.ErrInvalidReq.Msg("invalid request: %s", err)
	}
	return ValidateStruct(ctx, dest)
}

func ValidateStruct(ctx *fiber.Ctx, s any) error {
	if err := Validate.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return rserr.ErrInvalidReq.Msg("invalid request: %s", err)
		}
		return rserr.NewInvalidViolations(describe(ve))
	}
	return nil
}
