// Package handler wires the attendance service to the HTTP surface.
package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/metrics"
	"qrattend/internal/qr"
	"qrattend/internal/queue"
)

// Handler holds the dependencies shared by every route.
type Handler struct {
	Log           *zap.Logger
	Svc           *attendance.Service
	QR            *qr.Issuer
	Creds         auth.Credentials
	Queue         queue.Queue // receives backup jobs; nil disables archiving
	Metrics       *metrics.Metrics
	Branches      []string
	PublicBaseURL string

	cookie sessions.Options // set by NewRouter
	now    func() time.Time
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *Handler) logger(c *gin.Context) *zap.Logger {
	return httpmiddleware.Logger(c, h.Log)
}

// plainError answers with "Error: <msg>" as text, the way every storage
// failure surfaces to the browser.
func (h *Handler) plainError(c *gin.Context, msg string, err error) {
	h.logger(c).Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.String(http.StatusInternalServerError, "Error: %s", err.Error())
}

// checkInResponse maps a check-in outcome to status, body and metric label.
func checkInResponse(err error) (int, string, string) {
	var dup *attendance.DuplicateError
	switch {
	case errors.Is(err, attendance.ErrExpired):
		return http.StatusGone, "QR Expired", "expired"
	case errors.As(err, &dup) && dup.Session:
		return http.StatusConflict, "Attendance Already Marked for this Subject/Branch Today", "already_marked"
	case errors.As(err, &dup):
		return http.StatusConflict, "Attendance Already Marked", "already_marked"
	case errors.Is(err, attendance.ErrValidation):
		return http.StatusBadRequest, "Roll number and name are required", "invalid"
	default:
		return http.StatusInternalServerError, "Error: " + err.Error(), "error"
	}
}

// baseURL is the scheme and host students reach the server on.
func (h *Handler) baseURL(c *gin.Context) string {
	if h.PublicBaseURL != "" {
		return h.PublicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := firstHeaderValue(c, "X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	host := c.Request.Host
	if fh := firstHeaderValue(c, "X-Forwarded-Host"); fh != "" {
		host = fh
	}
	return scheme + "://" + host
}

func firstHeaderValue(c *gin.Context, name string) string {
	v, _, _ := strings.Cut(c.GetHeader(name), ",")
	return strings.TrimSpace(v)
}
