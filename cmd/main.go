package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
	_ "modernc.org/sqlite"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/chat"
	"github.com/Vovarama1992/meta-ai-router/internal/config"
	"github.com/Vovarama1992/meta-ai-router/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	store, closeStore, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer closeStore()

	// --- Providers ---
	registry, err := ai.BuildRegistry(cfg.Providers)
	if err != nil {
		log.Fatalf("provider error: %v", err)
	}
	for _, p := range registry.Providers() {
		state := "ready"
		if !p.Configured() {
			state = "not configured"
		}
		log.Printf("[ai] %s (%s): %s", p.ID(), p.Kind(), state)
	}
	rt := router.New(registry, router.Options{Fallback: cfg.RouterFallback})

	// --- Router ---
	r := chi.NewRouter()
	// the session cookie crosses origins only for an explicit origin list
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: cfg.CORSAllowCredentials(),
	}))

	// --- Chat module wiring ---
	sessions := chat.NewSessions(store)
	chatService := chat.NewService(sessions, rt, cfg.ProviderTimeout)
	chatHandler := chat.NewHandler(chatService)

	chat.RegisterRoutes(r, chatHandler)

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.RunSweeper(gctx, cfg.SessionIdleTTL, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server error: %v", err)
	}
}

// openStore picks the session store from DATABASE_URL: empty keeps sessions
// in memory, "sqlite:<path>" uses SQLite, anything else is a Postgres DSN.
func openStore(ctx context.Context, dsn string) (chat.Store, func(), error) {
	if dsn == "" {
		log.Println("DATABASE_URL is not set, sessions are kept in memory")
		return chat.NewMemoryStore(), func() {}, nil
	}

	dialect, source := chat.DialectPostgres, dsn
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		dialect, source = chat.DialectSQLite, rest
	}

	db, err := sql.Open(string(dialect), source)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, err
	}

	store, err := chat.NewSQLStore(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Printf("sessions stored in %s", dialect)
	return store, func() { db.Close() }, nil
}
