package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"qrattend/internal/artifact"
	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/cloudinary"
	"qrattend/internal/config"
	"qrattend/internal/handler"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/queue"
	"qrattend/internal/staff"
	"qrattend/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.NewDB(openCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()

	var redisClient *store.Redis
	if cfg.RedisAddr != "" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			log.Printf("warning: redis at %s not reachable yet", cfg.RedisAddr)
		}
	}

	artifacts, err := newArtifactStore(cfg)
	if err != nil {
		return err
	}

	people := staff.NewRepository(db.Client)
	ledger := attendance.NewRepository(db.Client)

	opts := attendance.Options{Location: cfg.Location, ListLimit: cfg.ListLimit}
	switch cfg.QueueBackend {
	case "memory":
		q := queue.NewInMemory(256)
		msgs, err := q.Consume(ctx)
		if err != nil {
			return fmt.Errorf("queue: %w", err)
		}
		go attendance.RunAuditLog(ctx, msgs, ledger)
		opts.Publisher = q
	case "redis":
		if redisClient == nil {
			return errors.New("QUEUE_BACKEND=redis needs REDIS_ADDR")
		}
		opts.Publisher = queue.NewRedisQueue(redisClient.Client, "")
	case "none", "":
		log.Println("scan audit trail disabled")
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
	if cfg.ScanDebounce > 0 {
		if redisClient == nil {
			log.Println("SCAN_DEBOUNCE set without REDIS_ADDR, scans are not debounced")
		} else {
			opts.Debouncer = store.NewDebouncer(redisClient.Client, "", cfg.ScanDebounce)
		}
	}

	deps := handler.Deps{
		Staff:   staff.NewService(people, artifacts),
		Scans:   attendance.NewService(people, ledger, opts),
		Events:  ledger,
		Devices: auth.NewDeviceStore(db.Client),
		Signer: auth.Signer{
			Key:        cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		DB:                 db,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		EnrollKey:          cfg.DeviceEnrollKey,
		RequireDeviceToken: cfg.RequireDeviceToken,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Enroll-Key"},
		MaxAge:          24 * time.Hour,
	}))

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	if _, ok := artifacts.(*artifact.Local); ok {
		r.Static("/static", cfg.StaticDir)
	}
	if err := handler.New(deps).Routes(r); err != nil {
		return fmt.Errorf("routes: %w", err)
	}

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// newArtifactStore picks where QR codes and photos are written.
func newArtifactStore(cfg config.App) (artifact.Store, error) {
	switch cfg.ArtifactBackend {
	case "", "local":
		if err := os.MkdirAll(cfg.StaticDir, 0o755); err != nil {
			return nil, fmt.Errorf("static dir: %w", err)
		}
		return artifact.NewLocal(cfg.StaticDir, "static"), nil
	case "cloudinary":
		var (
			client *cloudinary.Client
			err    error
		)
		if cfg.CloudinaryURL != "" {
			client, err = cloudinary.NewFromURL(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		} else {
			client, err = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		}
		if err != nil {
			return nil, fmt.Errorf("cloudinary: %w", err)
		}
		log.Println("Cloudinary configured for artifacts, folder:", cfg.CloudinaryFolder)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown ARTIFACT_BACKEND %q", cfg.ArtifactBackend)
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
