package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/franz/shelf/internal/controller"
	"github.com/franz/shelf/internal/cover"
	"github.com/franz/shelf/internal/library"
	"github.com/franz/shelf/internal/reader"
	"github.com/franz/shelf/internal/report"
	"github.com/franz/shelf/internal/stats"
	"github.com/franz/shelf/internal/store"
	"github.com/franz/shelf/internal/util"
	"github.com/spf13/viper"
)

const (
	defaultDB        = "shelf.db"
	defaultEventsDir = "artifacts"
)

func setDefaults() {
	viper.SetDefault("save_interval", controller.DefaultSaveInterval)
	viper.SetDefault("cache_size", controller.DefaultCacheSize)
	viper.SetDefault("location_chars", reader.DefaultConfig().LocationChars)
	viper.SetDefault("render_buffer", reader.DefaultConfig().RenderBuffer)
	viper.SetDefault("render_dpi", reader.DefaultConfig().RenderDPI)
	viper.SetDefault("render_pages", true)
	viper.SetDefault("stats_interval", stats.DefaultPersistInterval)
	viper.SetDefault("cover_dpi", cover.DefaultDPI)
	viper.SetDefault("max_file_size", library.DefaultMaxFileSize)
	viper.SetDefault("concurrency", 4)
	viper.SetDefault("daily_target", store.DefaultDailyTarget)
	viper.SetDefault("event_level", string(report.LevelInfo))
	viper.SetDefault("network_db", false)
}

// settings is the resolved configuration of one command run
type settings struct {
	DB            string
	NetworkDB     bool
	EventsDir     string
	EventLevel    report.EventLevel
	SaveInterval  time.Duration
	CacheSize     int
	LocationChars int
	RenderBuffer  int
	RenderDPI     int
	RenderPages   bool
	StatsInterval time.Duration
	CoverDPI      int
	MaxFileSize   int64
	Concurrency   int
	DailyTarget   int
}

// loadSettings reads every key with precedence flag > SHELF_* env >
// config file > default, and validates it.
func loadSettings() (*settings, error) {
	s := &settings{
		DB:            GetConfigString("db", defaultDB),
		NetworkDB:     viper.GetBool("network_db"),
		EventsDir:     viper.GetString("events_dir"),
		EventLevel:    report.ParseLevel(viper.GetString("event_level")),
		SaveInterval:  viper.GetDuration("save_interval"),
		CacheSize:     viper.GetInt("cache_size"),
		LocationChars: viper.GetInt("location_chars"),
		RenderBuffer:  viper.GetInt("render_buffer"),
		RenderDPI:     viper.GetInt("render_dpi"),
		RenderPages:   viper.GetBool("render_pages"),
		StatsInterval: viper.GetDuration("stats_interval"),
		CoverDPI:      viper.GetInt("cover_dpi"),
		Concurrency:   viper.GetInt("concurrency"),
		DailyTarget:   viper.GetInt("daily_target"),
	}

	size, err := library.ParseSize(GetConfigString("max_file_size", library.DefaultMaxFileSize))
	if err != nil {
		return nil, err
	}
	s.MaxFileSize = size

	switch {
	case s.SaveInterval <= 0:
		return nil, fmt.Errorf("%w: save_interval must be positive", util.ErrInvalidConfig)
	case s.CacheSize <= 0:
		return nil, fmt.Errorf("%w: cache_size must be positive", util.ErrInvalidConfig)
	case s.LocationChars <= 0:
		return nil, fmt.Errorf("%w: location_chars must be positive", util.ErrInvalidConfig)
	case s.RenderBuffer < 0:
		return nil, fmt.Errorf("%w: render_buffer cannot be negative", util.ErrInvalidConfig)
	case s.StatsInterval <= 0:
		return nil, fmt.Errorf("%w: stats_interval must be positive", util.ErrInvalidConfig)
	case s.Concurrency <= 0:
		return nil, fmt.Errorf("%w: concurrency must be positive", util.ErrInvalidConfig)
	case s.DailyTarget < 0:
		return nil, fmt.Errorf("%w: daily_target cannot be negative", util.ErrInvalidConfig)
	}
	if util.IsVerbose() {
		s.EventLevel = report.LevelDebug
	}
	return s, nil
}

// GetConfigString retrieves a string config value, or defaultValue when
// it is unset or empty
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// app holds the components a command needs
type app struct {
	cfg     *settings
	db      *store.Store
	logger  *report.EventLogger
	lib     *library.Library
	tracker *stats.Tracker
}

// openApp loads settings and opens the store and audit log
func openApp() (*app, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}

	util.DebugLog("Opening database: %s", cfg.DB)
	db, err := store.OpenWithOptions(cfg.DB, &store.OpenOptions{NetworkOptimized: cfg.NetworkDB})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := report.NullLogger()
	if cfg.EventsDir != "" {
		logger, err = report.NewEventLogger(cfg.EventsDir, cfg.EventLevel)
		if err != nil {
			util.WarnLog("Failed to create event logger: %v", err)
			logger = report.NullLogger()
		}
	}

	a := &app{cfg: cfg, db: db, logger: logger, tracker: stats.NewTracker(db)}
	a.tracker.SetPersistInterval(cfg.StatsInterval)
	a.lib = library.New(db, library.Config{
		MaxFileSize: cfg.MaxFileSize,
		Concurrency: cfg.Concurrency,
		Covers:      cover.NewResolver(cover.Config{DPI: cfg.CoverDPI}),
		Logger:      logger,
	})
	return a, nil
}

func (a *app) readerConfig() reader.Config {
	cfg := reader.DefaultConfig()
	cfg.LocationChars = a.cfg.LocationChars
	cfg.RenderBuffer = a.cfg.RenderBuffer
	cfg.RenderDPI = a.cfg.RenderDPI
	if a.cfg.RenderPages {
		// document-context shells out to ImageMagick
		if _, err := exec.LookPath("magick"); err == nil {
			cfg.Render = true
		} else {
			util.DebugLog("ImageMagick not found, PDF pages will not be rendered")
		}
	}
	return cfg
}

// controller builds the reading controller over the app's store
func (a *app) controller(display reader.DisplayOptions, vp reader.Viewport) *controller.Controller {
	return controller.New(a.db, reader.DefaultRegistry(a.readerConfig()), a.tracker, a.logger, controller.Config{
		SaveInterval: a.cfg.SaveInterval,
		CacheSize:    a.cfg.CacheSize,
		Display:      display,
		Viewport:     vp,
	})
}

// syncDailyTarget writes the configured daily target into the goal when
// it differs
func (a *app) syncDailyTarget(ctx context.Context) error {
	g, err := a.tracker.Goal(ctx)
	if err != nil {
		return err
	}
	if a.cfg.DailyTarget > 0 && g.DailyTarget != a.cfg.DailyTarget {
		return a.tracker.SetDailyTarget(ctx, a.cfg.DailyTarget)
	}
	return nil
}

func (a *app) Close() error {
	a.logger.Close()
	return a.db.Close()
}
