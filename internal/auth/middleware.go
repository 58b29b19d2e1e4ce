package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	keyAdmin = "admin"
	keyRole  = "role"
	keySID   = "sid"

	rememberMaxAge = 24 * 60 * 60
)

// IsAdmin reports whether the session carries the admin marker.
func IsAdmin(c *gin.Context) bool {
	v, _ := sessions.Default(c).Get(keyAdmin).(bool)
	return v
}

// IsStudent reports whether the session carries the student role.
func IsStudent(c *gin.Context) bool {
	v, _ := sessions.Default(c).Get(keyRole).(string)
	return v == string(RoleStudent)
}

// RequireAdmin redirects to the admin login page unless the session is an admin session.
func RequireAdmin() gin.HandlerFunc {
	return gate("/", IsAdmin)
}

// RequireStudent redirects to the student login page unless the session is a student session.
func RequireStudent() gin.HandlerFunc {
	return gate("/student_login", IsStudent)
}

// RequireAny accepts admin or student sessions.
func RequireAny() gin.HandlerFunc {
	return gate("/", func(c *gin.Context) bool { return IsAdmin(c) || IsStudent(c) })
}

func gate(loginPath string, allowed func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed(c) {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Login writes the session marker for role. Student logins start from an
// empty session. base is the cookie store's option set; only MaxAge changes,
// so remember keeps the cookie for 24 hours instead of the browser session.
func Login(c *gin.Context, role Role, remember bool, base sessions.Options) error {
	s := sessions.Default(c)
	opts := base
	opts.MaxAge = 0
	if remember {
		opts.MaxAge = rememberMaxAge
	}
	switch role {
	case RoleAdmin:
		s.Set(keyAdmin, true)
	case RoleStudent:
		s.Clear()
		s.Set(keyRole, string(RoleStudent))
	}
	s.Options(opts)
	return s.Save()
}

// Logout clears the session, including its dedup identity.
func Logout(c *gin.Context, base sessions.Options) error {
	s := sessions.Default(c)
	s.Clear()
	opts := base
	opts.MaxAge = -1
	s.Options(opts)
	return s.Save()
}

// SessionID returns the browser session's id, creating one on first use.
func SessionID(c *gin.Context) (string, error) {
	s := sessions.Default(c)
	if sid, ok := s.Get(keySID).(string); ok && sid != "" {
		return sid, nil
	}
	sid := uuid.NewString()
	s.Set(keySID, sid)
	if err := s.Save(); err != nil {
		return "", err
	}
	return sid, nil
}
