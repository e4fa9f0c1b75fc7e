package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/handler"
	sessionHandler "github.com/zhouzirui/z-companion/backend/internal/handler/session"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/companion"
	"github.com/zhouzirui/z-companion/backend/internal/service/provider"
	"github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/internal/storage/archive"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	if _, ok := personaStore.FindByID(cfg.Companion.PersonaID); !ok {
		log.Fatalf("unknown COMPANION_PERSONA %q", cfg.Companion.PersonaID)
	}

	gw, err := provider.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize generation gateway: %v", err)
	}

	// 归档可选：未配置 ARCHIVE_PATH 时只保留内存状态
	var (
		recorder companion.Recorder
		history  sessionHandler.HistoryReader
	)
	if cfg.Companion.ArchivePath != "" {
		store, err := archive.Open(cfg.Companion.ArchivePath)
		if err != nil {
			log.Fatalf("failed to open archive: %v", err)
		}
		defer store.Close()
		recorder, history = store, store
		log.Printf("archive enabled at %s", cfg.Companion.ArchivePath)
	} else {
		log.Println("ARCHIVE_PATH 未配置，历史记录不会持久化")
	}

	hub := session.NewHub(0)
	sessions := session.NewService(personaStore, gw, hub, recorder, session.Defaults{
		PersonaID:     cfg.Companion.PersonaID,
		UserName:      cfg.Companion.UserName,
		VoiceEnabled:  cfg.Companion.VoiceEnabled,
		FailurePolicy: cfg.Companion.FailurePolicy,
	})

	router := handler.NewRouter(handler.Options{
		Personas: personaStore,
		Sessions: sessions,
		History:  history,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Z Companion backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
