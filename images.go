package leadpress

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/media"
)

// handleImageUpload stores an admin-uploaded image (form field "image")
// and returns its public URL.
func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no image file provided")
	}
	if file.Size > media.MaxUploadSize {
		return echo.NewHTTPError(http.StatusBadRequest, "file too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	raw, err := io.ReadAll(io.LimitReader(src, media.MaxUploadSize+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	img, err := a.Media.Upload(c.Request().Context(), file.Filename, raw)
	switch {
	case errors.Is(err, media.ErrInvalidImage):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image")
	case errors.Is(err, media.ErrTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, "file too large (max 10MB)")
	case err != nil:
		return fmt.Errorf("store upload: %w", err)
	}
	a.Logger.Info("image uploaded", zap.String("file", img.Filename), zap.Int("bytes", img.Size))
	return c.JSON(http.StatusOK, img)
}
