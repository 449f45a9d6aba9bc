package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"duofernd/internal/events"
	"duofernd/internal/frame"
	"duofernd/internal/registrar"
	"duofernd/internal/session"
	"duofernd/internal/store"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// Config is the YAML-loaded configuration for the duofernd process.
// Loading and validating it is the only configuration-UX surface this
// module owns; broader host configuration is a collaborator's job.
type Config struct {
	Serial struct {
		Port string `yaml:"port"`
	} `yaml:"serial"`
	Dongle struct {
		ID string `yaml:"id"`
	} `yaml:"dongle"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if c.Dongle.ID == "" {
		return fmt.Errorf("dongle.id is required")
	}
	if _, err := frame.ParseDongleID(c.Dongle.ID); err != nil {
		return fmt.Errorf("dongle.id: %w", err)
	}
	return nil
}

func main() {
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("duofernd starting", "version", version)

	dongle, err := frame.ParseDongleID(cfg.Dongle.ID)
	if err != nil {
		logger.Error("parse dongle id", "err", err)
		os.Exit(1)
	}

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var initialPairSet []frame.DeviceCode
	if saved, err := db.GetSessionState(); err == nil {
		initialPairSet = saved.PairSet
		logger.Info("resumed session state", "dongle", saved.DongleID, "devices", len(initialPairSet))
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Warn("load session state", "err", err)
	}

	bus := events.NewBus(logger)

	sess := session.New(cfg.Serial.Port, dongle, initialPairSet, bus, logger)
	sess.SetStore(db)

	if err := sess.Start(); err != nil {
		logger.Error("start session", "err", err)
		os.Exit(1)
	}

	reg := registrar.New(sess.Dispatcher(), sess, bus, logger)
	defer reg.Close()

	gw := initMQTT(sess.Dispatcher(), dongle, cfg, logger)

	gw.Start(bus)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	gw.Stop()
	if err := sess.Close(); err != nil {
		logger.Error("close session", "err", err)
	}

	logger.Info("goodbye")
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "duofernd.db"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "duofern"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
