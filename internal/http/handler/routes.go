package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"scanapi/internal/http/middleware"
	"scanapi/internal/service"
)

// maxBatchFiles limits how many files a single batch upload may carry.
const maxBatchFiles = 10

type uploadAcceptedResponse struct {
	Message  string `json:"message"`
	ScanID   string `json:"scan_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

type uploadDedupResponse struct {
	Message string `json:"message"`
	ScanID  string `json:"scan_id"`
	Results any    `json:"results"`
}

type batchItemResult struct {
	Filename string `json:"filename"`
	ScanID   string `json:"scan_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type batchUploadResponse struct {
	Message string            `json:"message"`
	Results []batchItemResult `json:"results"`
}

// HealthCheck reports readiness: it verifies database connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a plain liveness endpoint with no dependency checks.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadScan accepts a multipart upload (field name: file), stores it and
// schedules its analysis. It answers 202 before any verdict exists; clients
// poll GetScan for the outcome. A re-upload of content the owner already
// scanned returns 200 with the earlier scan instead of starting new work.
func UploadScan(svc service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		res, err := svc.Submit(c.UserContext(), middleware.OwnerIDFromCtx(c), f, fh.Filename, ct)
		if err != nil {
			if errors.Is(err, service.ErrOwnerRequired) {
				return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		if res.AlreadyScanned {
			return c.Status(fiber.StatusOK).JSON(uploadDedupResponse{
				Message: "File already scanned",
				ScanID:  res.Record.ID,
				Results: res.Record.Result,
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(uploadAcceptedResponse{
			Message:  "File uploaded successfully. Scan in progress.",
			ScanID:   res.Record.ID,
			Filename: res.Record.OriginalName,
			Status:   string(res.Record.Status),
		})
	}
}

// UploadScanBatch accepts up to maxBatchFiles files (field name: files) and
// submits each one independently. Per-file failures do not abort the batch.
func UploadScanBatch(svc service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "files are required")
		}
		files := form.File["files"]
		if len(files) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "files are required")
		}
		if len(files) > maxBatchFiles {
			return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES", "too many files in batch")
		}

		ownerID := middleware.OwnerIDFromCtx(c)
		results := make([]batchItemResult, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				results = append(results, batchItemResult{Filename: fh.Filename, Status: "error", Error: "cannot open uploaded file"})
				continue
			}

			ct := fh.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}

			res, err := svc.Submit(c.UserContext(), ownerID, f, fh.Filename, ct)
			f.Close()
			if err != nil {
				if errors.Is(err, service.ErrOwnerRequired) {
					return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				}
				results = append(results, batchItemResult{Filename: fh.Filename, Status: "error", Error: "upload failed"})
				continue
			}

			status := string(res.Record.Status)
			if res.AlreadyScanned {
				status = "already_scanned"
			}
			results = append(results, batchItemResult{Filename: fh.Filename, ScanID: res.Record.ID, Status: status})
		}

		return c.Status(fiber.StatusAccepted).JSON(batchUploadResponse{
			Message: "Batch accepted",
			Results: results,
		})
	}
}

// GetScan returns one of the caller's scans by ID. While the scan is still
// running the record carries status "scanning" and no result.
func GetScan(svc service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		rec, err := svc.Get(c.UserContext(), middleware.OwnerIDFromCtx(c), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "scan not found")
			}
			if errors.Is(err, service.ErrOwnerRequired) {
				return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(rec)
	}
}

// ListScans returns the caller's scans newest first, with limit and offset.
func ListScans(svc service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), middleware.OwnerIDFromCtx(c), limit, offset)
		if err != nil {
			if errors.Is(err, service.ErrOwnerRequired) {
				return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// UploadStats aggregates the caller's uploads over the last N days (?days=N).
func UploadStats(svc service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days, err := strconv.Atoi(c.Query("days", "30"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DAYS", "invalid days")
		}

		stats, err := svc.Stats(c.UserContext(), middleware.OwnerIDFromCtx(c), days)
		if err != nil {
			if errors.Is(err, service.ErrOwnerRequired) {
				return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(stats)
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Everything
// under /api/scans requires a valid bearer token.
func RegisterRoutes(app *fiber.App, db *sql.DB, scanSvc service.ScanService, jwtSecret string) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	scans := app.Group("/api/scans", middleware.Auth(jwtSecret))
	scans.Post("/", UploadScan(scanSvc))
	scans.Post("/batch", UploadScanBatch(scanSvc))
	scans.Get("/", ListScans(scanSvc))
	scans.Get("/stats", UploadStats(scanSvc))
	scans.Get("/:id", GetScan(scanSvc))
}
