package middleware

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger logs each HTTP request as one JSON line on stdout.
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.Local)
}

// LoggerWithWriter logs each HTTP request as one JSON line on w with fields:
// ts, request_id, method, path, route, status, latency (ms) and user_id when
// authenticated.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.UTC
	}
	var mu sync.Mutex
	enc := json.NewEncoder(w)

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := handleError(c, c.Next())

		entry := map[string]any{
			"ts":         start.In(loc).Format(time.RFC3339Nano),
			"request_id": RequestIDFrom(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
		}
		if route := c.Route().Path; route != "" && route != "/" {
			entry["route"] = route
		}
		if claims := ClaimsFrom(c); claims != nil {
			entry["user_id"] = claims.UserID
		}

		mu.Lock()
		_ = enc.Encode(entry)
		mu.Unlock()

		return err
	}
}

// handleError renders err through the app's error handler so the response
// status is final before it is logged or counted.
func handleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}
	if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
		_ = c.SendStatus(fiber.StatusInternalServerError)
	}
	return nil
}
