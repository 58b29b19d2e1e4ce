package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/qr"
)

// Generate issues a QR code scoped to ?sub= and ?branch=. A rendering
// failure still answers 200 with qr=false and qr_error set.
func (h *Handler) Generate(c *gin.Context) {
	scope := attendance.Scope{Subject: c.Query("sub"), Branch: c.Query("branch")}
	code, err := h.QR.Issue(h.baseURL(c), scope, h.clock())
	if err != nil {
		h.plainError(c, "issue qr failed", err)
		return
	}
	h.Metrics.QRIssued.Inc()

	body := gin.H{
		"qr":        false,
		"url":       code.URL,
		"expiry":    code.Expiry,
		"expiry_ts": code.ExpiresAt.Unix(),
		"subject":   code.Scope.Subject,
		"branch":    code.Scope.Branch,
		"qr_base64": nil,
		"qr_error":  nil,
	}
	png, err := qr.PNG(code.URL)
	if err != nil {
		h.logger(c).Warn("render qr failed", zap.Error(err))
		body["qr_error"] = err.Error()
	} else {
		body["qr"] = true
		body["qr_base64"] = base64.StdEncoding.EncodeToString(png)
	}
	c.JSON(http.StatusOK, body)
}

// Scan serves the check-in form on GET and records attendance on POST.
func (h *Handler) Scan(c *gin.Context) {
	sid, err := auth.SessionID(c)
	if err != nil {
		h.plainError(c, "session id failed", err)
		return
	}
	req := attendance.ScanRequest{
		SessionID: sid,
		Exp:       c.Query("exp"),
		Ticket:    c.Query("t"),
		Query:     attendance.Scope{Subject: c.Query("sub"), Branch: c.Query("branch")},
	}

	if c.Request.Method != http.MethodPost {
		if err := h.Svc.Open(c.Request.Context(), req); err != nil {
			h.rejectScan(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exp": req.Exp, "subject": req.Query.Subject, "branch": req.Query.Branch})
		return
	}

	req.Form = attendance.Scope{Subject: c.PostForm("subject"), Branch: c.PostForm("branch")}
	req.Roll = c.PostForm("roll")
	req.Name = c.PostForm("name")
	rec, err := h.Svc.CheckIn(c.Request.Context(), req)
	if err != nil {
		h.rejectScan(c, err)
		return
	}
	h.Metrics.CheckIns.WithLabelValues("accepted").Inc()
	h.logger(c).Info("attendance marked",
		zap.String("roll", rec.Roll), zap.String("subject", rec.Subject), zap.String("branch", rec.Branch))
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "message": "Attendance Marked Successfully", "record": rec})
}

func (h *Handler) rejectScan(c *gin.Context, err error) {
	status, msg, result := checkInResponse(err)
	h.Metrics.CheckIns.WithLabelValues(result).Inc()
	if status == http.StatusInternalServerError {
		h.logger(c).Error("check-in failed", zap.Error(err))
	}
	c.String(status, "%s", msg)
}
