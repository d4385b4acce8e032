package web

import (
	"context"
	"net/http"
	"time"

	"ministry/internal/adapters/http/middleware"
	"ministry/internal/adapters/http/perf"
	"ministry/internal/adapters/schedapi"
	contactStore "ministry/internal/adapters/storage/contact"
	credentialStore "ministry/internal/adapters/storage/credential"
	eventStore "ministry/internal/adapters/storage/event"
	galleryStore "ministry/internal/adapters/storage/gallery"
	outboxStore "ministry/internal/adapters/storage/outbox"
	programStore "ministry/internal/adapters/storage/program"
	resourceStore "ministry/internal/adapters/storage/resource"
	"ministry/internal/application/orchestrators"
	"ministry/internal/application/schedulepage"
	"ministry/internal/domain/schedule"
)

// DeviceCredentials opens the persistent credential storage of one device.
type DeviceCredentials interface {
	ForDevice(deviceID string) credentialStore.Storage
}

// Pinger reports database liveness for /readyz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Stores holds all storage dependencies.
type Stores struct {
	EventStore      eventStore.Store
	ProgramStore    programStore.Store
	ResourceStore   resourceStore.Store
	GallerySource   galleryStore.Source
	ContactStore    contactStore.Store
	OutboxStore     outboxStore.Store
	CredentialStore DeviceCredentials
	DB              Pinger
}

// API is the external scheduling and student auth service.
type API interface {
	Availability(ctx context.Context, date schedule.Date) ([]schedule.Slot, error)
	Book(ctx context.Context, req schedule.BookingRequest) (schedule.Booking, error)
	StudentProfile(ctx context.Context, token string) (schedapi.Profile, error)
	StudentLogin(ctx context.Context, email, password string) (schedapi.LoginResult, error)
}

// Options configures NewMux.
type Options struct {
	StaticDir      string
	Secure         bool // production: Secure cookies, HTTPS-only CSRF checks
	CSRFKey        []byte
	TrustedOrigins []string
	Limiter        middleware.Limiter
	Collector      *perf.Collector
	SlowRequest    time.Duration
	ContactInbox   string
	Location       *time.Location // civil dates (today, picker) are computed here
	HorizonDays    int
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global external API client (set by NewMux)
var api API

// Global session store instance
var sessions *middleware.SessionStore

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Site settings (set by NewMux)
var (
	contactInbox string
	siteLocation = time.UTC
	horizonDays  = 90
)

// Sessions exposes the visitor session store so main can purge expired sessions.
func Sessions() *middleware.SessionStore {
	return sessions
}

// NewMux wires HTTP handlers for the site.
// PRE: s and client are non-nil; opts.CSRFKey is 32 bytes
// POST: Returns the full middleware-wrapped handler
func NewMux(s *Stores, client API, opts Options) http.Handler {
	stores = s
	api = client
	perfCollector = opts.Collector
	sessions = middleware.NewSessionStore()
	contactInbox = opts.ContactInbox
	if opts.Location != nil {
		siteLocation = opts.Location
	}
	if opts.HorizonDays > 0 {
		horizonDays = opts.HorizonDays
	}
	var outbox orchestrators.OutboxWriter
	if s.OutboxStore != nil {
		outbox = s.OutboxStore
	}
	confirmSection = schedulepage.NewConfirmSection(client, outbox, generateID, func() time.Time { return timeNow() })

	mux := http.NewServeMux()
	if opts.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}
	registerRoutes(mux)

	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(120, time.Minute)
	}

	// Innermost first: Visitor -> CSRF -> SecurityHeaders -> RateLimit -> Timing -> Mux
	return middleware.Chain(mux,
		middleware.Visitor(sessions, opts.Secure),
		middleware.CSRF(opts.CSRFKey, opts.Secure, opts.TrustedOrigins),
		middleware.SecurityHeaders,
		middleware.RateLimit(limiter),
		middleware.Timing(opts.Collector, opts.SlowRequest),
	)
}

// registerRoutes registers every page and action.
func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz)

	// Site pages
	mux.HandleFunc("GET /{$}", handleHome)
	mux.HandleFunc("GET /about", handleAbout)
	mux.HandleFunc("GET /events", handleEvents)
	mux.HandleFunc("GET /gallery", handleGallery)
	mux.HandleFunc("GET /programs", handlePrograms)
	mux.HandleFunc("GET /resources", handleResources)
	mux.HandleFunc("GET /resources/{slug}", handleResource)
	mux.HandleFunc("GET /contact", handleContactForm)
	mux.HandleFunc("POST /contact", handleContactSubmit)

	// Scheduling flow
	mux.HandleFunc("GET /schedule", handleSchedule)
	mux.HandleFunc("POST /schedule/date", handleScheduleDate)
	mux.HandleFunc("POST /schedule/time", handleScheduleTime)
	mux.HandleFunc("GET /schedule/slots", handleScheduleSlots)
	mux.HandleFunc("POST /schedule/retry", handleScheduleRetry)
	mux.HandleFunc("POST /schedule/confirm", handleScheduleConfirm)

	// Student portal
	mux.HandleFunc("GET /student", handleStudentPortal)
	mux.HandleFunc("GET /student/login", handleStudentLoginForm)
	mux.HandleFunc("POST /student/login", handleStudentLogin)
	mux.HandleFunc("POST /student/logout", handleStudentLogout)
	mux.HandleFunc("GET /clear-auth", handleClearAuth)
}
