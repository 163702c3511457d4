package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusconnect/messaging/internal/config"
	"github.com/campusconnect/messaging/internal/handler"
	"github.com/campusconnect/messaging/internal/identity"
	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/middleware"
	"github.com/campusconnect/messaging/internal/notify"
	"github.com/campusconnect/messaging/internal/presence"
	"github.com/campusconnect/messaging/internal/repository"
	"github.com/campusconnect/messaging/internal/startup"
	"github.com/campusconnect/messaging/internal/storage"
	"github.com/campusconnect/messaging/internal/storage/memory"
	"github.com/campusconnect/messaging/internal/ws"
	"github.com/campusconnect/messaging/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory store (no external deps)")
	flag.Parse()

	logger.Info("starting messaging service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	var store storage.Store
	if *dev {
		store = memory.New()
		logger.Info("using in-memory store")
	} else {
		store = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
		logger.Info("redis connected")
	}
	defer store.Close()

	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		if keys, err := notify.EnsureVAPIDKeys(cfg.VAPIDKeysFile); err == nil {
			cfg.VAPIDPublicKey = keys.PublicKey
			cfg.VAPIDPrivateKey = keys.PrivateKey
		} else {
			logger.Errorf("VAPID keys unavailable: %v (push sending disabled)", err)
		}
	}
	push := notify.NewWebPush(store, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)

	identityClient := identity.NewClient(cfg.IdentityServiceURL, 5*time.Minute)

	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	reactRepo := repository.NewReactionRepository(pool)

	tracker := presence.NewTracker(presence.Config{
		HeartbeatTTL: cfg.PresenceTTL,
		AwayAfter:    cfg.PresenceAwayAfter,
	}, store)
	trackerCtx, trackerCancel := context.WithCancel(context.Background())
	var trackerWg sync.WaitGroup
	trackerWg.Add(1)
	go func() {
		defer trackerWg.Done()
		tracker.Run(trackerCtx)
	}()

	hub := ws.NewHub(ws.Config{
		MaxConns:   cfg.MaxWSConnections,
		EditWindow: cfg.EditWindow,
		TypingTTL:  cfg.TypingTTL,
	}, convRepo, msgRepo, reactRepo, tracker, identityClient, push)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	convH := handler.NewConversationHandler(convRepo, identityClient, tracker, hub)
	msgH := handler.NewMessageHandler(msgRepo, convRepo, reactRepo, identityClient, hub, cfg.EditWindow)
	presenceH := handler.NewPresenceHandler(tracker)
	pushH := handler.NewPushHandler(push)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Never compress WebSocket responses: a wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id", "X-Timestamp", "X-Signature", "X-User-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/push/vapid-public", pushH.VAPIDPublic)

	var auth func(http.Handler) http.Handler
	if cfg.IdentityServiceURL != "" {
		auth = middleware.AuthValidate(cfg.IdentityServiceURL, nil)
	} else {
		logger.Info("IDENTITY_SERVICE_URL not set, using X-User-Id dev auth")
		auth = middleware.DevAuth
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Get("/api/conversations", convH.List)
		r.Post("/api/conversations", convH.Create)
		r.Get("/api/conversations/{conversationID}", convH.Get)
		r.Put("/api/conversations/{conversationID}/pin", convH.SetPinned)
		r.Put("/api/conversations/{conversationID}/archive", convH.SetArchived)
		r.Put("/api/conversations/{conversationID}/mute", convH.SetMuted)
		r.Post("/api/conversations/{conversationID}/clear", convH.Clear)
		r.Get("/api/conversations/{conversationID}/messages", msgH.GetMessages)
		r.Post("/api/conversations/{conversationID}/read", msgH.MarkRead)
		r.Get("/api/unread", convH.Unread)
		r.Put("/api/messages/{messageID}", msgH.EditMessage)
		r.Delete("/api/messages/{messageID}", msgH.DeleteMessage)
		r.Post("/api/messages/{messageID}/reactions", msgH.React)
		r.Get("/api/messages/{messageID}/reactions", msgH.GetReactions)
		r.Post("/api/messages/{messageID}/star", msgH.StarMessage)
		r.Delete("/api/messages/{messageID}/star", msgH.UnstarMessage)
		r.Post("/api/messages/{messageID}/forward", msgH.Forward)
		r.Get("/api/presence/{userID}", presenceH.Get)
		r.Post("/api/presence/heartbeat", presenceH.Heartbeat)
		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	trackerCancel()
	trackerWg.Wait()
	logger.Info("presence tracker stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "messaging"
		password = "messaging_secret"
		database = "messaging"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
