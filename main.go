package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"gorm.io/gorm"
	"p9e.in/zeladoria/accounts"
	"p9e.in/zeladoria/areas"
	"p9e.in/zeladoria/config"
	"p9e.in/zeladoria/handlers"
	"p9e.in/zeladoria/live"
	"p9e.in/zeladoria/metrics"
	"p9e.in/zeladoria/middleware"
	"p9e.in/zeladoria/photos"
	"p9e.in/zeladoria/routes"
	"p9e.in/zeladoria/storage"
	"p9e.in/zeladoria/store"
	"p9e.in/zeladoria/tracking"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {

	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	if cfg.NeedsDB() {
		if db, err = config.Connect(cfg.DBDSN); err != nil {
			log.WithError(err).Fatal("database")
		}
	}

	kv, err := openKV(cfg, db)
	if err != nil {
		log.WithError(err).Fatal("key-value storage")
	}

	reports, err := openReports(ctx, cfg, kv, db)
	if err != nil {
		log.WithError(err).Fatal("report store")
	}

	users := accounts.NewService(kv)
	if err := config.SeedAdmin(ctx, cfg, users); err != nil {
		log.WithError(err).Fatal("admin seed")
	}

	uploads, uploadDir, err := openPhotos(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("photo storage")
	}

	metrics.Register()
	hub := live.NewHub()
	go hub.Run(ctx)

	h := &handlers.Handler{
		Reports:  reports,
		Accounts: users,
		Tokens:   middleware.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Tracker:  tracking.NewTracker(kv),
		Photos:   uploads,
		Areas:    areas.NewRegistry(kv),
		Events:   hub,
		Hub:      hub,
		PageSize: cfg.PageSize,

		SignupGabinete: cfg.SignupGabinete,
	}
	handler := routes.RegisterRoutes(h, routes.Options{
		UploadDir:      uploadDir,
		LoginPerMinute: cfg.LoginPerMinute,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           enableCORS(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("port", cfg.Port).WithField("version", Version).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
	log.Info("server stopped")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func openKV(cfg *config.Config, db *gorm.DB) (storage.KeyValue, error) {
	if cfg.StorageBackend == config.StoragePostgres {
		return storage.NewPostgresKV(db), nil
	}
	return storage.NewFileKV(cfg.DataDir)
}

func openReports(ctx context.Context, cfg *config.Config, kv storage.KeyValue, db *gorm.DB) (store.Repository, error) {
	if cfg.ReportBackend == config.ReportsRelational {
		repo := store.NewRelationalRepository(db)
		if cfg.SeedReports {
			if err := repo.SeedIfEmpty(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	}
	return store.Open(ctx, storage.NewReportStorage(kv, cfg.ReportsKey),
		store.WithSeed(cfg.SeedReports),
		store.WithFailOpen(cfg.StorageFailOpen),
	)
}

// openPhotos returns the upload store and, for local storage, the directory
// to serve under /uploads/.
func openPhotos(ctx context.Context, cfg *config.Config) (photos.Store, string, error) {
	if cfg.UploadBackend == config.UploadGCS {
		s, err := photos.NewGCSStore(ctx, cfg.GCSBucket)
		return s, "", err
	}
	return photos.NewLocalStore(cfg.UploadDir, "/uploads"), cfg.UploadDir, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Required CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		// Handle preflight (OPTIONS)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
