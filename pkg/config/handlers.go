package config

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ReaderSettings is the part of the configuration a reader front end needs
// to pace its own updates and uploads.
type ReaderSettings struct {
	ProgressDebounceMS int64    `json:"progress_debounce_ms"`
	ChapterThrottleMS  int64    `json:"chapter_throttle_ms"`
	MaxUploadSizeMB    int64    `json:"max_upload_size_mb"`
	TextEncodings      []string `json:"text_encodings"`
}

type handler struct {
	cfg *Config
}

func (h *handler) retrieve(c echo.Context) error {
	settings := ReaderSettings{
		ProgressDebounceMS: h.cfg.ProgressDebounce.Milliseconds(),
		ChapterThrottleMS:  h.cfg.ChapterThrottle.Milliseconds(),
		MaxUploadSizeMB:    h.cfg.MaxUploadSizeMB,
		TextEncodings:      h.cfg.TextEncodings,
	}
	return errors.WithStack(c.JSON(http.StatusOK, settings))
}
