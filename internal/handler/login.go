package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrattend/internal/auth"
)

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
	Remember string `form:"remember"`
}

var loginResults = map[auth.Result]string{
	auth.OK:            "ok",
	auth.WrongPassword: "wrong_password",
	auth.WrongRole:     "wrong_role",
	auth.Unknown:       "unknown",
}

var loginTitles = map[auth.Role]string{
	auth.RoleAdmin:   "Admin Login",
	auth.RoleStudent: "Student Login",
}

// AdminLoginPage describes the admin login form.
func (h *Handler) AdminLoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"title": loginTitles[auth.RoleAdmin], "role": auth.RoleAdmin})
}

// StudentLoginPage describes the student login form.
func (h *Handler) StudentLoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"title": loginTitles[auth.RoleStudent], "role": auth.RoleStudent})
}

// AdminLogin handles POST /.
func (h *Handler) AdminLogin(c *gin.Context) {
	h.login(c, auth.RoleAdmin, "/admin")
}

// StudentLogin handles POST /student_login.
func (h *Handler) StudentLogin(c *gin.Context) {
	h.login(c, auth.RoleStudent, "/student")
}

func (h *Handler) login(c *gin.Context, role auth.Role, next string) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required", "title": loginTitles[role]})
		return
	}

	res := h.Creds.Check(role, form.Username, form.Password)
	h.Metrics.Logins.WithLabelValues(string(role), loginResults[res]).Inc()
	if res != auth.OK {
		h.logger(c).Info("login rejected", zap.String("role", string(role)), zap.String("result", loginResults[res]))
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.Message(role, res), "title": loginTitles[role]})
		return
	}
	if err := auth.Login(c, role, form.Remember != "", h.cookie); err != nil {
		h.plainError(c, "save session failed", err)
		return
	}
	c.Redirect(http.StatusFound, next)
}

// Logout clears the session and returns to the admin login.
func (h *Handler) Logout(c *gin.Context) {
	if err := auth.Logout(c, h.cookie); err != nil {
		h.logger(c).Warn("clear session failed", zap.Error(err))
	}
	c.Redirect(http.StatusFound, "/")
}

// AdminDashboard reports the last manual-add outcome and the branch list.
func (h *Handler) AdminDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"title":    "Admin Dashboard",
		"added":    c.Query("added"),
		"branches": h.Branches,
	})
}

// StudentDashboard serves GET /student and turns a posted name into a listing redirect.
func (h *Handler) StudentDashboard(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		if name := strings.TrimSpace(c.PostForm("name")); name != "" {
			c.Redirect(http.StatusFound, "/view?name="+url.QueryEscape(name))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"title": "Student Dashboard"})
}
