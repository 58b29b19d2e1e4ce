package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/queue"
)

// View lists records filtered by sub, branch, name, month and day.
func (h *Handler) View(c *gin.Context) {
	f := attendance.Filter{
		Subject: c.Query("sub"),
		Branch:  c.Query("branch"),
		Name:    c.Query("name"),
		Month:   c.Query("month"),
		Day:     c.Query("day"),
	}
	recs, err := h.Svc.List(c.Request.Context(), f)
	if err != nil {
		h.plainError(c, "list attendance failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records":          nonNil(recs),
		"is_admin":         auth.IsAdmin(c),
		"branches":         h.Branches,
		"selected_subject": f.Subject,
		"selected_branch":  f.Branch,
		"selected_name":    f.Name,
		"selected_month":   f.Month,
		"selected_day":     f.Day,
		"cleared":          c.Query("cleared"),
		"backup":           c.Query("backup"),
		"added":            c.Query("added"),
	})
}

// StudentView shows one student's records with per-subject totals.
func (h *Handler) StudentView(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.Redirect(http.StatusFound, "/student")
		return
	}
	sum, err := h.Svc.StudentSummary(c.Request.Context(), name, c.Query("sub"))
	if err != nil {
		h.plainError(c, "student lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ManualAdd inserts an administrator-entered record and redirects with the outcome.
func (h *Handler) ManualAdd(c *gin.Context) {
	rec := attendance.Record{
		Roll:    c.PostForm("roll"),
		Name:    c.PostForm("name"),
		Subject: c.PostForm("subject"),
		Branch:  c.PostForm("branch"),
		Date:    c.PostForm("date"),
		Time:    c.PostForm("time"),
	}
	_, err := h.Svc.ManualAdd(c.Request.Context(), rec)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, "/admin?added=1")
	case errors.Is(err, attendance.ErrValidation):
		c.Redirect(http.StatusFound, "/admin?added=error")
	case attendance.IsDuplicate(err):
		c.Redirect(http.StatusFound, "/admin?added=exists")
	default:
		h.plainError(c, "manual add failed", err)
	}
}

// Delete removes the record matching roll, date, time and optional subject.
func (h *Handler) Delete(c *gin.Context) {
	roll, date, tm := c.Query("roll"), c.Query("date"), c.Query("time")
	subject := c.Query("subject")
	if roll == "" || date == "" || tm == "" {
		c.Redirect(http.StatusFound, "/view")
		return
	}
	n, err := h.Svc.Delete(c.Request.Context(), roll, date, tm, subject)
	if err != nil {
		h.plainError(c, "delete failed", err)
		return
	}
	h.logger(c).Info("attendance deleted", zap.String("roll", roll), zap.String("date", date), zap.Int64("rows", n))
	if subject != "" {
		c.Redirect(http.StatusFound, "/view?sub="+url.QueryEscape(subject))
		return
	}
	c.Redirect(http.StatusFound, "/view")
}

// ClearAll backs up and deletes every record in the posted subject/branch scope.
func (h *Handler) ClearAll(c *gin.Context) {
	scope := attendance.Scope{Subject: c.PostForm("subject"), Branch: c.PostForm("branch")}.Clean()
	res, err := h.Svc.Clear(c.Request.Context(), scope)
	if err != nil {
		h.plainError(c, "clear failed", err)
		return
	}
	h.Metrics.Cleared.Add(float64(res.Deleted))
	log := h.logger(c).With(zap.String("subject", scope.Subject), zap.String("branch", scope.Branch))
	log.Info("attendance cleared", zap.Int64("rows", res.Deleted), zap.String("backup", res.Backup))

	tail := "&sub=" + url.QueryEscape(scope.Subject) + "&branch=" + url.QueryEscape(scope.Branch)
	if res.Backup == "" {
		c.Redirect(http.StatusFound, "/view?cleared=2"+tail)
		return
	}
	h.publishBackup(c, queue.BackupJob{
		Path:    res.Path,
		File:    res.Backup,
		Subject: scope.Subject,
		Branch:  scope.Branch,
		Rows:    res.Deleted,
	}, log)
	c.Redirect(http.StatusFound, "/view?cleared=1&backup="+url.QueryEscape(res.Backup)+tail)
}

// publishBackup hands the backup file to the archiver. The clear has already
// committed, so a failure is logged and the local file remains.
func (h *Handler) publishBackup(c *gin.Context, job queue.BackupJob, log *zap.Logger) {
	if h.Queue == nil {
		return
	}
	msg, err := queue.NewBackupMessage(job)
	if err == nil {
		err = h.Queue.Publish(c.Request.Context(), msg)
	}
	if err != nil {
		log.Warn("queue backup failed", zap.Error(err))
	}
}

// Export downloads records for ?sub= and ?branch= as CSV.
func (h *Handler) Export(c *gin.Context) {
	scope := attendance.Scope{Subject: c.Query("sub"), Branch: c.Query("branch")}.Clean()
	recs, err := h.Svc.Export(c.Request.Context(), scope)
	if err != nil {
		h.plainError(c, "export failed", err)
		return
	}
	var buf bytes.Buffer
	if err := attendance.WriteCSV(&buf, recs); err != nil {
		h.plainError(c, "export failed", err)
		return
	}
	h.Metrics.Exports.Inc()
	c.Header("Content-Disposition", `attachment; filename="`+attendance.ExportFilename(scope)+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func nonNil(recs []attendance.Record) []attendance.Record {
	if recs == nil {
		return []attendance.Record{}
	}
	return recs
}
