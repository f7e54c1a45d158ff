package handler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mediarelay/internal/config"
	"mediarelay/internal/model"
	"mediarelay/internal/relay"
	"mediarelay/internal/staging"
)

// ProcessUpload is the primary upload-relay endpoint. Validation runs in a
// fixed order (file presence, extension allow-list, size) and a rejected
// upload never touches staging or the downstream service. An accepted upload
// is staged, relayed, and answered with the downstream body verbatim.
func ProcessUpload(upCfg config.UploadConfig, st staging.Staging, svc relay.Service) fiber.Handler {
	maxBytes := upCfg.MaxSizeBytes()

	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, string(model.KindMissingFile), "file is required", nil)
		}

		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !upCfg.Allows(ext) {
			return writeError(c, fiber.StatusBadRequest, string(model.KindUnsupportedType),
				fmt.Sprintf("file type %q is not supported", ext),
				fiber.Map{"allowed_extensions": upCfg.AllowedExtensions})
		}

		if fh.Size > maxBytes {
			return writeError(c, fiber.StatusBadRequest, string(model.KindTooLarge),
				fmt.Sprintf("file exceeds the maximum size of %d MB", upCfg.MaxSizeMB), nil)
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "cannot open uploaded file", nil)
		}
		defer f.Close()

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		up, err := st.Stage(c.UserContext(), f, fh.Filename, contentType, fh.Size)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, string(model.KindInternal), "failed to stage upload", nil)
		}

		// The relay owns the staged file from here: it is removed on every
		// path before Process returns.
		res, err := svc.Process(c.UserContext(), up)
		if err != nil {
			return writeRelayError(c, err)
		}

		contentType = res.ContentType
		if contentType == "" {
			contentType = fiber.MIMEApplicationJSON
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.Status(res.Status).Send(res.Body)
	}
}
