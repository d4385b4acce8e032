package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "modernc.org/sqlite"

	emailPkg "ministry/internal/adapters/email"
	web "ministry/internal/adapters/http"
	"ministry/internal/adapters/http/middleware"
	"ministry/internal/adapters/http/perf"
	"ministry/internal/adapters/schedapi"
	"ministry/internal/adapters/storage"
	contactStore "ministry/internal/adapters/storage/contact"
	credentialStore "ministry/internal/adapters/storage/credential"
	eventStore "ministry/internal/adapters/storage/event"
	galleryStore "ministry/internal/adapters/storage/gallery"
	outboxStorePkg "ministry/internal/adapters/storage/outbox"
	programStore "ministry/internal/adapters/storage/program"
	resourceStore "ministry/internal/adapters/storage/resource"
	"ministry/internal/application/orchestrators"
	"ministry/internal/config"
	"ministry/internal/domain/outbox"
	"ministry/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// Retention for housekeeping: remembered credentials untouched this long and
// delivered emails older than this are deleted.
const (
	credentialRetention = 180 * 24 * time.Hour
	outboxRetention     = 30 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(telemetry.NewLogger(os.Stdout, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.OTelSampleRate,
		Version:     version,
	})
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	// WAL, foreign keys and a busy timeout on every pooled connection
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	log.Println("Database initialized successfully!")

	// Performance instrumentation: wrap DB with timing, share the collector with the API client
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	credentialKey := cfg.CredentialKey
	if credentialKey == nil {
		credentialKey = randomKey()
		log.Println("MINISTRY_CREDENTIAL_KEY not set: remembered student sign-ins will not survive a restart")
	}
	sealer, err := credentialStore.NewSealer(credentialKey)
	if err != nil {
		log.Fatalf("invalid credential key: %v", err)
	}
	credentials := credentialStore.NewSQLiteStore(timedDB, sealer)

	galleryRows := galleryStore.NewSQLiteStore(timedDB)
	stores := &web.Stores{
		EventStore:      eventStore.NewSQLiteStore(timedDB),
		ProgramStore:    programStore.NewSQLiteStore(timedDB),
		ResourceStore:   resourceStore.NewSQLiteStore(timedDB),
		GallerySource:   galleryRows,
		ContactStore:    contactStore.NewSQLiteStore(timedDB),
		OutboxStore:     outboxStorePkg.NewSQLiteStore(timedDB),
		CredentialStore: credentials,
		DB:              timedDB,
	}
	if cfg.GalleryBucket != "" {
		s3cfg := galleryStore.S3Config{
			Bucket:    cfg.GalleryBucket,
			Prefix:    cfg.GalleryPrefix,
			Region:    cfg.GalleryRegion,
			Endpoint:  cfg.GalleryEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			PublicURL: cfg.GalleryPublicURL,
		}
		if s3cfg.PublicURL == "" {
			s3cfg.PublicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.GalleryBucket, cfg.GalleryRegion)
		}
		stores.GallerySource = galleryStore.NewS3Source(galleryStore.NewS3Client(s3cfg), s3cfg)
		log.Printf("Gallery served from bucket %s", cfg.GalleryBucket)
	}

	// Seed starter content so no page is empty on first start
	seedDeps := orchestrators.SeedContentDeps{
		EventStore:    stores.EventStore,
		ProgramStore:  stores.ProgramStore,
		ResourceStore: stores.ResourceStore,
		GalleryStore:  galleryRows,
		Now:           time.Now,
	}
	if err := orchestrators.ExecuteSeedContent(ctx, seedDeps); err != nil {
		log.Fatalf("failed to seed content: %v", err)
	}

	// Configure email sender
	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.EmailFrom)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			log.Println("WARNING: MINISTRY_RESEND_KEY is not set, email delivery is DISABLED in production")
		} else {
			log.Println("Email sender configured (noop, set MINISTRY_RESEND_KEY for real delivery)")
		}
	}

	// Start outbox background worker for email delivery and retries
	outboxProcessor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: sender, ReplyTo: cfg.ReplyTo},
	})
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := orchestrators.StartBackgroundWorker(workerCtx, outboxProcessor, time.Minute)

	client := schedapi.New(schedapi.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		RPS:       cfg.APIRPS,
		Collector: collector,
	})
	log.Printf("Scheduling API: %s", client.BaseURL())

	csrfKey := cfg.CSRFKey
	if csrfKey == nil {
		csrfKey = randomKey()
	}

	limiter := rateLimiter(ctx, cfg)
	handler := web.NewMux(stores, client, web.Options{
		StaticDir:      "static",
		Secure:         cfg.IsProduction(),
		CSRFKey:        csrfKey,
		TrustedOrigins: []string{cfg.PublicHost},
		Limiter:        limiter,
		Collector:      collector,
		SlowRequest:    cfg.SlowRequest,
		ContactInbox:   cfg.ContactTo,
		Location:       cfg.Location,
	})
	handler = otelhttp.NewHandler(handler, "ministry")

	go housekeeping(ctx, credentials, stores.OutboxStore)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Printf("Ministry %s starting on %s (env=%s, schema=%d)", version, cfg.Addr, cfg.Env, storage.LatestSchemaVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http_shutdown_failed", "error", err)
	}
	stopWorker()
	<-workerDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("tracing_shutdown_failed", "error", err)
	}
}

// rateLimiter uses Redis when configured so limits hold across instances.
// An unreachable Redis falls back to the in-memory limiter.
func rateLimiter(ctx context.Context, cfg config.Config) middleware.Limiter {
	if cfg.RedisAddr == "" {
		return middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARNING: redis at %s unreachable (%v), using in-memory rate limiting", cfg.RedisAddr, err)
		rdb.Close()
		return middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	log.Printf("Rate limiting via redis at %s", cfg.RedisAddr)
	return middleware.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "ministry:ratelimit")
}

// housekeeping drops idle visitor sessions, stale remembered credentials and delivered emails.
func housekeeping(ctx context.Context, credentials *credentialStore.SQLiteStore, outboxes outboxStorePkg.Store) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := web.Sessions().PurgeExpired(); n > 0 {
				slog.Info("sessions_purged", "count", n)
			}
			n, err := credentials.PurgeOlderThan(ctx, time.Now().Add(-credentialRetention))
			if err != nil {
				slog.Error("credential_purge_failed", "error", err)
			} else if n > 0 {
				slog.Info("credentials_purged", "count", n)
			}
			n, err = outboxes.PurgeDone(ctx, time.Now().Add(-outboxRetention))
			if err != nil {
				slog.Error("outbox_purge_failed", "error", err)
			} else if n > 0 {
				slog.Info("outbox_purged", "count", n)
			}
		}
	}
}

func randomKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}
	return key
}
