package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrattend/internal/auth"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/store"
)

const sessionName = "qrattend_session"

// Options configures the router around a Handler.
type Options struct {
	SecretKey       string
	SecureCookies   bool
	RateLimitPerMin int
	DB              *store.DB
	Redis           *store.Redis // nil when no component uses redis
	Metrics         http.Handler // served on /metrics when set
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())

	h.cookie = sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	cookies := cookie.NewStore([]byte(opts.SecretKey))
	cookies.Options(h.cookie)
	r.Use(sessions.Sessions(sessionName, cookies))

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	r.GET("/healthz", health(opts.DB, opts.Redis))

	app := r.Group("/", ensureDB(opts.DB, h.Log))
	limit := httpmiddleware.NewTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin).Limit()

	app.GET("/", h.AdminLoginPage)
	app.POST("/", limit, h.AdminLogin)
	app.GET("/student_login", h.StudentLoginPage)
	app.POST("/student_login", limit, h.StudentLogin)
	app.GET("/logout", h.Logout)

	// check-ins stay unlimited: a class behind one NAT shares an IP
	app.GET("/scan", h.Scan)
	app.POST("/scan", h.Scan)

	admin := app.Group("/", auth.RequireAdmin())
	admin.GET("/admin", h.AdminDashboard)
	admin.GET("/generate", h.Generate)
	admin.POST("/manual_add", h.ManualAdd)
	admin.GET("/delete", h.Delete)
	admin.POST("/clear_all", h.ClearAll)
	admin.GET("/export", h.Export)

	student := app.Group("/", auth.RequireStudent())
	student.GET("/student", h.StudentDashboard)
	student.POST("/student", h.StudentDashboard)
	student.GET("/student_view", h.StudentView)

	app.GET("/view", auth.RequireAny(), h.View)

	return r
}

// ensureDB retries schema setup on each request until it succeeds once.
func ensureDB(db *store.DB, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil && !db.Ready() {
			if err := db.EnsureSchema(c.Request.Context()); err != nil {
				log.Warn("database not ready", zap.Error(err))
			}
		}
		c.Next()
	}
}

func health(db *store.DB, rdb *store.Redis) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbHealthy := db != nil && db.Ready() && db.Client.PingContext(c.Request.Context()) == nil
		body := gin.H{"status": "ok", "db": dbHealthy}
		healthy := dbHealthy
		if rdb != nil {
			redisHealthy := rdb.Healthy(c.Request.Context())
			body["redis"] = redisHealthy
			healthy = healthy && redisHealthy
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
