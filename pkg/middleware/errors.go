package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// TimestampLayout is the format of ErrorBody.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// ErrorJSON writes an ErrorBody for status with message.
func ErrorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorBody{
		Status:    status,
		Error:     utils.StatusMessage(status),
		Message:   message,
		Path:      c.Path(),
		Timestamp: time.Now().Format(TimestampLayout),
	})
}
