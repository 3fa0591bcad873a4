package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/flowerhaven/internal/paystack"
)

// PaystackSignatureMiddleware rejects webhook calls whose body is not signed with the secret key.
func PaystackSignatureMiddleware(secretKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get(paystack.SignatureHeader)
		if signature == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing webhook signature")
		}

		if !paystack.VerifySignature(secretKey, c.Body(), signature) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook signature")
		}

		return c.Next()
	}
}
