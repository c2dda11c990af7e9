package httpapi

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/i474232898/meteo-station-dashboard/internal/detection"
	"github.com/i474232898/meteo-station-dashboard/internal/meteofrance"
	"github.com/i474232898/meteo-station-dashboard/internal/store"
	"github.com/i474232898/meteo-station-dashboard/internal/transport"
	"github.com/i474232898/meteo-station-dashboard/internal/weather"
)

// NewApp builds the Fiber app with middleware, the error handler and every route.
func NewApp(appName string, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		BodyLimit:             8 * 1024 * 1024,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	RegisterRoutes(app, deps)
	return app
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		fe        *fiber.Error
		schemaErr *detection.SchemaError
		valuesErr *detection.MissingValuesError
		invalid   *detection.InvalidValueError
		apiErr    *meteofrance.APIError
	)

	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, weather.ErrUnknownStation), errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrYearsBack), errors.Is(err, weather.ErrEmptyArchiveWindow):
		return fiber.StatusBadRequest
	case errors.As(err, &schemaErr), errors.As(err, &valuesErr), errors.As(err, &invalid),
		errors.Is(err, detection.ErrEmptyBatch):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, detection.ErrModelMissing), errors.Is(err, detection.ErrInvalidModel),
		errors.Is(err, meteofrance.ErrOrderPending):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, meteofrance.ErrAuthExpired), errors.Is(err, meteofrance.ErrNoObservation),
		errors.Is(err, meteofrance.ErrNoToken), errors.As(err, &apiErr),
		errors.Is(err, weather.ErrUnexpectedRowCount), errors.Is(err, weather.ErrMissingDateColumn),
		errors.Is(err, transport.ErrCircuitOpen), errors.Is(err, transport.ErrRateLimited),
		errors.Is(err, transport.ErrServerError):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// Centralized error response
		code := statusFor(err)
		if code >= fiber.StatusInternalServerError && log != nil {
			log.Error("request failed",
				"request_id", c.Locals("requestid"),
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err,
			)
		}
		if errors.Is(err, meteofrance.ErrOrderPending) {
			c.Set(fiber.HeaderRetryAfter, "10")
		}
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
		})
	}
}
