package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"seriescomplete/api"
	"seriescomplete/config"
	"seriescomplete/handlers"
	"seriescomplete/internal/database"
	"seriescomplete/services/library"
	"seriescomplete/services/providers"
	"seriescomplete/services/resolver"
	"seriescomplete/services/scheduler"
	"seriescomplete/utils"
)

func main() {
	var (
		configPath = flag.String("config", "./data/settings.json", "path to settings file")
		logPath    = flag.String("log", "", "log file (rotated); empty logs to stdout only")
	)
	flag.Parse()

	if *logPath != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   *logPath,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}))
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(configPath string) error {
	mgr := config.NewManager(configPath)
	settings, err := mgr.Load()
	if err != nil {
		return err
	}
	// Persist defaults on first run so the file is there to edit.
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		if err := mgr.Save(settings); err != nil {
			log.Printf("[main] could not write initial settings: %v", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(settings.Database.Path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	repo := database.NewSeriesRepository(db.Connection())

	cache, err := resolver.NewTwoTierCache(afero.NewOsFs(), settings.Cache.Dir, settings.Cache.MaxMemoryItems)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	res := resolver.NewService(buildProviders(settings), cache, resolver.DefaultRetryPolicy())
	lib := library.NewService(repo, res)
	sched := scheduler.NewService(repo, res,
		time.Duration(settings.Scheduler.RefreshIntervalHours)*time.Hour,
		time.Duration(settings.Scheduler.StaleAfterHours)*time.Hour,
		settings.Scheduler.Workers)

	handler := handlers.NewMetadataHandler(res, lib)
	limiter := api.NewClientLimiter(rate.Every(time.Second), 30)
	router := utils.NewRouter(handler, limiter)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("[main] shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] http shutdown: %v", err)
	}
	sched.Stop()
	res.Close()
	return nil
}

// buildProviders assembles the fallback chain from settings. Order matters:
// TMDB primary, TVDB secondary, Gemini AI fallback, TVmaze last resort.
func buildProviders(s config.Settings) []resolver.ProviderConfig {
	httpc := &http.Client{Timeout: 15 * time.Second}
	var out []resolver.ProviderConfig

	if p := s.Providers.TMDB; p.Enabled && p.APIKey != "" {
		out = append(out, resolver.ProviderConfig{
			Provider: providers.NewTMDB(p.APIKey, httpc),
			Role:     resolver.RolePrimary,
			Bucket:   bucketFor(p),
		})
	}
	if p := s.Providers.TVDB; p.Enabled && p.APIKey != "" {
		out = append(out, resolver.ProviderConfig{
			Provider: providers.NewTVDB(p.APIKey, httpc),
			Role:     resolver.RoleSecondary,
			Bucket:   bucketFor(p),
		})
	}
	if p := s.Providers.Gemini; p.Enabled && p.APIKey != "" {
		out = append(out, resolver.ProviderConfig{
			Provider: providers.NewGemini(p.APIKey, "", httpc),
			Role:     resolver.RoleAI,
			Bucket:   bucketFor(p),
			CacheTTL: time.Duration(s.Cache.AITTLHours) * time.Hour,
		})
	}
	if p := s.Providers.TVMaze; p.Enabled {
		out = append(out, resolver.ProviderConfig{
			Provider: providers.NewTVmaze(httpc),
			Role:     resolver.RoleLastResort,
			Bucket:   bucketFor(p),
		})
	}
	return out
}

func bucketFor(p config.ProviderEntry) resolver.BucketConfig {
	return resolver.BucketConfig{
		Capacity: p.RequestsPer,
		Window:   time.Duration(p.WindowSeconds) * time.Second,
	}
}
