package middleware

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/evidenceledger/eseal/internal/errl"
)

// AdminUser is the user name expected with HTTP Basic credentials
const AdminUser = "admin"

// AdminAuth handles admin authentication
type AdminAuth struct {
	passwordHash []byte
}

// NewAdminAuth creates a new admin auth middleware. Only the bcrypt hash of
// the password is kept.
func NewAdminAuth(adminPassword string) (*AdminAuth, error) {
	if adminPassword == "" {
		return nil, errl.Errorf("admin password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, errl.Errorf("failed to hash admin password: %w", err)
	}
	return &AdminAuth{passwordHash: hash}, nil
}

// AuthMiddleware returns the admin authentication middleware. It accepts
// "Basic" credentials for AdminUser or a "Bearer" token equal to the password.
func (a *AdminAuth) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if auth == "" {
			c.Set(fiber.HeaderWWWAuthenticate, "Basic realm=Admin")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Admin authentication required",
			})
		}

		if !a.check(auth) {
			c.Set(fiber.HeaderWWWAuthenticate, "Basic realm=Admin")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid admin credentials",
			})
		}

		return c.Next()
	}
}

func (a *AdminAuth) check(header string) bool {
	scheme, value, ok := strings.Cut(header, " ")
	if !ok {
		return false
	}

	var password string
	switch strings.ToLower(scheme) {
	case "bearer":
		password = strings.TrimSpace(value)
	case "basic":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return false
		}
		user, pw, ok := strings.Cut(string(raw), ":")
		if !ok || user != AdminUser {
			return false
		}
		password = pw
	default:
		return false
	}

	return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
}
