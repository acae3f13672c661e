// Package server exposes the repository over HTTP: the package listing
// queried by devices, the thumbnails it links to, and a few diagnostics
// routes under /-/.
package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ralt/spkrepo/internal/logging"
	"github.com/ralt/spkrepo/internal/projection"
	"github.com/ralt/spkrepo/internal/repository"
)

const (
	contextKeyRequestID = "_spkrepo_request_id"

	thumbnailCacheControl = "public, max-age=31536000, immutable"
)

// AppOptions configures the HTTP application
type AppOptions struct {
	Repository *repository.Repository
	// Keyrings are the armored public keys published with every listing
	Keyrings         []string
	DistributionPath string
	Logger           *logrus.Logger
	// BaseContext bounds repository rebuilds triggered by requests
	BaseContext context.Context
}

// listing is the response body of the package listing
type listing struct {
	Packages []*projection.Descriptor `json:"packages"`
	Keyrings []string                 `json:"keyrings"`
}

// NewApp builds the fiber application
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if opts.DistributionPath == "" {
		opts.DistributionPath = projection.DefaultDistributionPath
	}
	if !strings.HasPrefix(opts.DistributionPath, "/") {
		return nil, errors.New("distribution path must start with /")
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Keyrings == nil {
		opts.Keyrings = []string{}
	}

	h := &handlers{opts: opts}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	listingPath := strings.TrimSuffix(opts.DistributionPath, "/")
	if listingPath == "" {
		listingPath = "/"
	}
	app.Get(listingPath, h.listPackages)
	app.Post(listingPath, h.listPackages)
	app.Get(strings.TrimSuffix(listingPath, "/")+"/thumbnails/:key", h.thumbnail)

	app.Get("/-/health", h.health)
	app.Post("/-/reload", h.reload)

	return app, nil
}

// requestContextMiddleware assigns a request ID and logs every request
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		entry := logger.WithFields(logging.RequestFields(reqID, c.Method(), c.Path(), status, time.Since(start)))
		if err != nil {
			entry.WithError(err).Warn("request failed")
		} else {
			entry.Debug("request served")
		}
		return err
	}
}

// RequestID returns the request identifier stored by the middleware
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

type handlers struct {
	opts AppOptions
}

func (h *handlers) listPackages(c fiber.Ctx) error {
	q, err := parseQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	descriptors, err := h.opts.Repository.ListPackages(h.opts.BaseContext, q)
	if err != nil {
		return h.internalError(c, "list_packages", err)
	}

	return c.JSON(listing{Packages: descriptors, Keyrings: h.opts.Keyrings})
}

func (h *handlers) thumbnail(c fiber.Ctx) error {
	key := c.Params("key")
	data, ok, err := h.opts.Repository.Thumbnail(h.opts.BaseContext, key)
	if err != nil {
		return h.internalError(c, "thumbnail", err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "thumbnail_not_found"})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, thumbnailCacheControl)
	return c.Send(data)
}

func (h *handlers) health(c fiber.Ctx) error {
	payload := fiber.Map{"status": "ok", "built": false}
	if s := h.opts.Repository.Current(); s != nil {
		payload["built"] = true
		payload["packages"] = len(s.Names())
		payload["thumbnails"] = s.ThumbnailCount()
		payload["built_at"] = s.BuiltAt().UTC().Format(time.RFC3339)
	}
	return c.JSON(payload)
}

func (h *handlers) reload(c fiber.Ctx) error {
	h.opts.Repository.Reload()
	h.opts.Logger.WithFields(logrus.Fields{
		"action":     "reload",
		"request_id": RequestID(c),
	}).Info("Reload requested over HTTP")
	return c.JSON(fiber.Map{"status": "reloaded"})
}

func (h *handlers) internalError(c fiber.Ctx, action string, err error) error {
	h.opts.Logger.WithFields(logrus.Fields{
		"action":     action,
		"request_id": RequestID(c),
	}).WithError(err).Error("repository query failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "repository_unavailable"})
}

// parseQuery reads the listing arguments from the query string or, for
// POST requests, the form body
func parseQuery(c fiber.Ctx) (repository.Query, error) {
	q := repository.Query{
		Beta:         strings.EqualFold(strings.TrimSpace(arg(c, "package_update_channel")), "beta"),
		Architecture: strings.TrimSpace(arg(c, "arch")),
		Language:     strings.TrimSpace(arg(c, "language")),
	}

	if raw := strings.TrimSpace(arg(c, "major")); raw != "" {
		major, err := strconv.Atoi(raw)
		if err != nil {
			return q, errors.New("invalid_major")
		}
		q.OsMajor = major
	}
	return q, nil
}

func arg(c fiber.Ctx, key string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	if c.Method() == fiber.MethodPost {
		return c.FormValue(key)
	}
	return ""
}
