package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/cart"
	"retailpos/backend/internal/config"
	"retailpos/backend/internal/httpapi"
	"retailpos/backend/internal/service"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/store/memory"
	pgstore "retailpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		} else {
			repo = pg
			closers = append(closers, pg.Close)
			log.Println("repository: postgres")
		}
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	sessions := cache.SessionCache(cache.NewMemorySessionCache())
	if cfg.RedisAddr != "" {
		redisSessions := cache.NewRedisSessionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisSessions.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), carts held in process memory", err)
		} else {
			sessions = redisSessions
			closers = append(closers, redisSessions.Close)
			log.Println("sessions: redis")
		}
	} else {
		log.Println("sessions: in-memory")
	}

	carts := cart.NewManager(sessions)
	svc := service.New(repo, carts, cfg.TaxRateBP)
	auth := httpapi.NewAuthManager(cfg.JWTSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.UnlockCode, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be set and at least 32 characters")
	}
	if len(cfg.UnlockCode) != 4 {
		return fmt.Errorf("UNLOCK_CODE must be exactly 4 digits")
	}
	for i := 0; i < len(cfg.UnlockCode); i++ {
		if cfg.UnlockCode[i] < '0' || cfg.UnlockCode[i] > '9' {
			return fmt.Errorf("UNLOCK_CODE must contain digits only")
		}
	}
	if err := validateCodeStrength(cfg.UnlockCode); err != nil {
		return fmt.Errorf("UNLOCK_CODE is too weak: %w", err)
	}
	return nil
}

// validateCodeStrength rejects codes that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validateCodeStrength(code string) error {
	known := map[string]bool{
		"1234": true, "4321": true, "0000": true, "1111": true,
		"2222": true, "3333": true, "4444": true, "5555": true,
		"6666": true, "7777": true, "8888": true, "9999": true,
		"1212": true, "1122": true, "2580": true, "0852": true,
	}
	if known[code] {
		return fmt.Errorf("common code not allowed")
	}

	// Reject all-same-digit codes.
	allSame := true
	for i := 1; i < len(code); i++ {
		if code[i] != code[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit code not allowed")
	}

	// Reject ascending or descending sequential codes (e.g. 1234, 9876).
	ascending, descending := true, true
	for i := 1; i < len(code); i++ {
		diff := int(code[i]) - int(code[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential code not allowed")
	}

	return nil
}
