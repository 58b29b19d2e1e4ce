package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"qrattend/internal/archive"
	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/cloudinary"
	"qrattend/internal/config"
	"qrattend/internal/dedup"
	"qrattend/internal/handler"
	"qrattend/internal/metrics"
	"qrattend/internal/qr"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

func main() {
	cfg := config.Load()
	log, err := cfg.Logger()
	if err != nil {
		stdlog.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg, log.Named("store"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Warn("database init failed, retrying on each request", zap.Error(err))
	}

	var rdb *store.Redis
	if cfg.DedupBackend == "redis" || cfg.QueueBackend == "redis" {
		rdb = store.NewRedis(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
	}

	var marks dedup.Cache = dedup.NewInMemory()
	if cfg.DedupBackend == "redis" {
		marks = dedup.NewRedis(rdb.Client, "")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(rdb.Client, queue.DefaultKey)
	} else {
		mem := queue.NewInMemory(64)
		q = mem
		archiver := archive.New(mem, newUploader(cfg, log), log.Named("archiver"), m.Backups)
		go func() { _ = archiver.Run(ctx) }()
	}

	issuer := &qr.Issuer{
		TTL:    cfg.QRTTL,
		Mode:   qr.Mode(cfg.QRExpiryMode),
		Key:    cfg.SecretKey,
		Issuer: cfg.TicketIssuer,
	}
	svc := attendance.NewService(
		attendance.NewRepository(db.Client),
		marks,
		issuer,
		&attendance.Backups{Dir: cfg.BackupDir},
	)

	h := &handler.Handler{
		Log: log.Named("http"),
		Svc: svc,
		QR:  issuer,
		Creds: auth.Credentials{
			Admin:   auth.Credential{Username: cfg.AdminUsername, Password: cfg.AdminPassword},
			Student: auth.Credential{Username: cfg.StudentUsername, Password: cfg.StudentPassword},
		},
		Queue:         q,
		Metrics:       m,
		Branches:      cfg.Branches,
		PublicBaseURL: cfg.PublicBaseURL,
	}
	r := handler.NewRouter(h, handler.Options{
		SecretKey:       cfg.SecretKey,
		SecureCookies:   cfg.Production(),
		RateLimitPerMin: cfg.RateLimitPerMin,
		DB:              db,
		Redis:           rdb,
		Metrics:         promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.Bool("postgres", cfg.UsePostgres()),
			zap.String("qr_expiry_mode", cfg.QRExpiryMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// outstanding requests get 10 seconds
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func openDB(cfg config.App, log *zap.Logger) (*store.DB, error) {
	if cfg.UsePostgres() {
		return store.NewPostgres(cfg.DatabaseURL, log)
	}
	return store.NewSQLite(cfg.DBPath, log)
}

// newUploader returns nil when Cloudinary is not configured.
func newUploader(cfg config.App, log *zap.Logger) archive.Uploader {
	if !cfg.CloudinaryEnabled() {
		log.Info("cloudinary not configured, backups stay local")
		return nil
	}
	log.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	return cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
}
