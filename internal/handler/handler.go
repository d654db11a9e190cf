package handler

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrattend/internal/artifact"
	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/staff"
)

//go:embed templates/*.html
var templateFS embed.FS

// Registrar creates staff members.
type Registrar interface {
	Register(ctx context.Context, in staff.Registration) (*staff.Registered, error)
}

// Scanner records scans and lists the ledger.
type Scanner interface {
	Scan(ctx context.Context, rawID string, source attendance.Source) (attendance.Result, error)
	List(ctx context.Context) ([]attendance.Entry, error)
	Location() *time.Location
}

// EventLister pages through the scan audit trail.
type EventLister interface {
	ListScanEvents(ctx context.Context, userID string, limit, offset int) ([]attendance.ScanEvent, error)
}

// Devices persists scanner devices and their refresh tokens.
type Devices interface {
	UpsertDevice(ctx context.Context, deviceID string) error
	SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, token string, now time.Time) (string, error)
}

// Pinger reports whether a backing service answers.
type Pinger interface {
	Healthy(ctx context.Context) bool
}

// Deps wires a Handler. Events, Devices and Redis may be nil.
type Deps struct {
	Staff   Registrar
	Scans   Scanner
	Events  EventLister
	Devices Devices
	Signer  auth.Signer
	DB      Pinger
	Redis   Pinger

	MaxUploadBytes     int64
	EnrollKey          string
	RequireDeviceToken bool
	Now                func() time.Time
}

// Handler serves the registration, scanning and device APIs.
type Handler struct {
	staff   Registrar
	scans   Scanner
	events  EventLister
	devices Devices
	signer  auth.Signer
	db      Pinger
	redis   Pinger

	maxUpload     int64
	enrollKey     string
	requireDevice bool
	now           func() time.Time
}

var registerValidators sync.Once

// New creates a handler.
func New(d Deps) *Handler {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("notblank", validators.NotBlank)
		}
	})
	h := &Handler{
		staff:         d.Staff,
		scans:         d.Scans,
		events:        d.Events,
		devices:       d.Devices,
		signer:        d.Signer,
		db:            d.DB,
		redis:         d.Redis,
		maxUpload:     d.MaxUploadBytes,
		enrollKey:     d.EnrollKey,
		requireDevice: d.RequireDeviceToken,
		now:           d.Now,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 10 << 20
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Templates parses the embedded pages. Times are rendered in loc.
func Templates(loc *time.Location) (*template.Template, error) {
	if loc == nil {
		loc = time.Local
	}
	funcs := template.FuncMap{
		"asset": artifact.PublicURL,
		"clock": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.In(loc).Format("15:04:05")
		},
		"day": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
	}
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// Routes installs templates and every route on r.
func (h *Handler) Routes(r *gin.Engine) error {
	tmpl, err := Templates(h.scans.Location())
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", h.RegisterPage)
	r.POST("/register", h.Register)

	mark := []gin.HandlerFunc{h.MarkAttendance}
	if h.requireDevice {
		mark = append([]gin.HandlerFunc{auth.DeviceAuth(h.signer)}, mark...)
	}
	r.POST("/mark_attendance", mark...)
	r.GET("/scan", h.ScanPage)
	r.POST("/scan", h.ScanPage)
	r.GET("/table", h.Table)

	if h.devices != nil {
		r.POST("/v1/devices/register", h.RegisterDevice)
		r.POST("/v1/devices/refresh", h.RefreshDevice)
	}
	if h.events != nil {
		r.GET("/v1/scan_events", auth.DeviceAuth(h.signer), h.ScanEvents)
	}
	return nil
}

// ---------- Health ----------

// Healthz reports database and, when configured, Redis reachability.
func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	dbHealthy := h.db != nil && h.db.Healthy(ctx)
	body["db"] = dbHealthy
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
