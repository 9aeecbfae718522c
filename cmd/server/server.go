package main

import (
	"context"
	"errors"
	repository "github.com/adamlounds/weather-diary/adapters"
	"github.com/adamlounds/weather-diary/config"
	"github.com/adamlounds/weather-diary/controllers"
	diarymw "github.com/adamlounds/weather-diary/middleware"
	"github.com/adamlounds/weather-diary/models"
	"github.com/adamlounds/weather-diary/scheduler"
	bucketstore "github.com/adamlounds/weather-diary/stores/bucket"
	"github.com/adamlounds/weather-diary/stores/openweathermap"
	pgstore "github.com/adamlounds/weather-diary/stores/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogctx "github.com/veqryn/slog-context"
	"gopkg.in/lumberjack.v2"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// a missing .env is fine, real deployments set the environment directly
	_ = godotenv.Load()

	var cfg config.ServerConfig
	err := cfg.RegisterEnv()
	if err != nil {
		panic(err)
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	h := slogctx.NewHandler(slog.NewJSONHandler(out, opts), nil)
	log := slog.New(h)
	slog.SetDefault(log.With(slog.Int("pid", os.Getpid())))
	ctx := slogctx.NewCtx(context.Background(), slog.Default())

	run(ctx, cfg)
}

type pinger func(ctx context.Context) error

func run(ctx context.Context, cfg config.ServerConfig) {
	log := slogctx.FromCtx(ctx)
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	transactor, ping, closeStore, err := openStore(serverCtx, cfg)
	if err != nil {
		log.Error("run cannot open store", slog.String("store", cfg.Store), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	archive, closeArchive, err := openArchive(serverCtx, cfg)
	if err != nil {
		log.Error("run cannot configure weather archive", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeArchive()

	weather := &models.WeatherSource{
		Provider: openweathermap.New(cfg.Weather),
		Location: cfg.Location,
	}
	diaryService := &models.DiaryService{Transactor: transactor, Weather: weather}
	refresher := &models.WeatherRefresher{Transactor: transactor, Weather: weather}
	if archive != nil {
		refresher.Archive = archive
	}

	if cfg.RefreshOnStart {
		if err := refresher.RefreshWeather(serverCtx); err != nil {
			log.Warn("run cannot refresh weather on start", slog.Any("error", err))
		}
	}

	sched := scheduler.New(refresher, cfg.RefreshAt, cfg.Location)
	if err := sched.Start(serverCtx); err != nil {
		log.Error("run cannot start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	diaryC := controllers.DiaryController{DiaryService: diaryService}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(diarymw.RequestLogger(slog.Default()))
	r.Group(diaryC.Routes)
	r.Get("/health", healthHandler(ping))
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: r}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		shutdownCtx, _ := context.WithTimeout(serverCtx, time.Second*10) //nolint:govet
		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Error("graceful shutdown timed out, forcing exit")
			}
		}()

		// let an in-flight refresh finish before the store goes away
		sched.Stop()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Error("cannot shutdown server", slog.Any("error", err))
		}
		serverStopCtx()
	}()

	log.Info("Starting server on", "address", cfg.Server.Address, "store", cfg.Store, "city", cfg.Weather.City)
	err = serve(serverCtx, server, serverStopCtx)
	if err != nil {
		log.Error("server terminated", slog.Any("error", err))
		return
	}
	log.Info("shutdown ok")
}

// serve blocks until the server has shut down, or returns the listen error
// after cancelling serverCtx when it could not start.
func serve(serverCtx context.Context, server *http.Server, serverStopCtx context.CancelFunc) error {
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		serverStopCtx()
		return err
	}
	<-serverCtx.Done()
	return nil
}

// healthHandler logs failures only.
func healthHandler(ping pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			slogctx.FromCtx(r.Context()).Warn("health check failed", slog.Any("error", err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "unavailable"})
			return
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

func openStore(ctx context.Context, cfg config.ServerConfig) (models.Transactor, pinger, func(), error) {
	if cfg.Store == config.StoreMemory {
		slogctx.FromCtx(ctx).Warn("using in-memory store, diaries will not survive a restart")
		return repository.NewMemoryRepository(), func(context.Context) error { return nil }, func() {}, nil
	}

	pgs, err := pgstore.New(ctx, pgstore.PostgresConfig(cfg.Postgres))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pgs.Ping(ctx); err != nil {
		pgs.Close()
		return nil, nil, nil, err
	}
	if err := pgs.Migrate(ctx); err != nil {
		pgs.Close()
		return nil, nil, nil, err
	}
	return repository.NewPostgresRepository(pgs), pgs.Healthy, pgs.Close, nil
}

// openArchive returns a nil archive when neither S3_CONFIG nor ARCHIVE_DIR is
// set. The returned close func is always safe to call.
func openArchive(ctx context.Context, cfg config.ServerConfig) (*repository.BucketWeatherArchive, func(), error) {
	var bs *bucketstore.BucketStore
	var err error
	switch {
	case cfg.S3Config != nil:
		bs, err = bucketstore.New(*cfg.S3Config)
	case cfg.ArchiveDir != "":
		bs, err = bucketstore.NewFilesystem(cfg.ArchiveDir)
	default:
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	closeBucket := func() {
		if err := bs.Close(); err != nil {
			slogctx.FromCtx(ctx).Warn("cannot close weather archive", slog.Any("error", err))
		}
	}
	if err := bs.Ping(ctx); err != nil {
		closeBucket()
		return nil, nil, err
	}
	return repository.NewBucketWeatherArchive(bs), closeBucket, nil
}
