package errcodes

import (
	"fmt"
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
)

type payload struct {
	Error payloadError `json:"error"`
}

type payloadError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle is an Echo error handler. Errors that carry an HTTP status keep it;
// anything else is logged and reported as an internal server error.
func (h *Handler) Handle(err error, c echo.Context) {
	if errutils.IsIgnorableErr(err) {
		logger.FromEchoContext(c).Err(err).Warn("broken pipe")
		return
	}
	if c.Response().Committed {
		return
	}

	p := h.payloadFor(err)
	if p.Error.StatusCode == http.StatusInternalServerError {
		logger.FromEchoContext(c).Err(err).Error("server error")
	}

	if err := c.JSON(p.Error.StatusCode, p); err != nil {
		logger.FromEchoContext(c).Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func (h *Handler) payloadFor(err error) payload {
	out := payloadError{StatusCode: http.StatusInternalServerError}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		out.StatusCode = he.Code
		out.Message = fmt.Sprint(he.Message)
		out.Code = strcase.ToSnake(out.Message)
	}

	var e *Error
	if errors.As(err, &e) {
		out.StatusCode = e.HTTPCode
		out.Code = e.Code
		out.Message = e.Message
	}

	if out.StatusCode == http.StatusInternalServerError && out.Message == "" {
		out.Code = "internal_server_error"
		out.Message = "Internal Server Error"
	}

	return payload{Error: out}
}
