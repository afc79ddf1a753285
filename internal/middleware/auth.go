package middleware

import (
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const emailLocal = "email"

// JWTProtected verifies the bearer token and requires an email claim. The email is
// stored in the request locals for GetEmail.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: unauthorized,
		SuccessHandler: func(c *fiber.Ctx) error {
			email := emailClaim(c)
			if email == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
					Error:   true,
					Message: "Unauthorized: token has no email claim",
				})
			}
			c.Locals(emailLocal, email)
			return c.Next()
		},
	})
}

// GetEmail returns the caller's email set by JWTProtected, or "".
func GetEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(emailLocal).(string)
	return email
}

func emailClaim(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

func unauthorized(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}
