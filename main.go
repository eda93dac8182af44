package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-giftcard-verifier/checks"
	"go-giftcard-verifier/logging"
	"go-giftcard-verifier/mailer"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	StorageType string `json:"storage_type"`
	DatabaseURL string `json:"database_url,omitempty"`

	MailConfig mailer.Config `json:"mail_config"`

	RateLimitWindowSeconds int `json:"rate_limit_window_seconds,omitempty"`
	RateLimitMaxRequests   int `json:"rate_limit_max_requests,omitempty"`
}

func defaultConfig() Config {
	return Config{
		ServerConfig: ServerConfig{Host: "0.0.0.0", Port: 8080},
		LogLevel:     "info",
		StorageType:  "memory",
		MailConfig: mailer.Config{
			Host:        "smtp.gmail.com",
			Port:        465,
			User:        "giftsafer@gmail.com",
			To:          "giftsafer@gmail.com",
			ImplicitTLS: true,
		},
		RateLimitWindowSeconds: int(checks.DefaultWindow / time.Second),
		RateLimitMaxRequests:   checks.DefaultMaxRequests,
	}
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	config := defaultConfig()
	if *configPath != "" {
		var err error
		config, err = readConfigFile(*configPath)
		if err != nil {
			slog.Error("failed to read config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	applyEnv(&config, os.Getenv)

	logging.Init(logging.Options{Level: config.LogLevel, Format: config.LogFormat})
	slog.Info("using config", "path", *configPath, "storage_type", config.StorageType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := createCheckStore(ctx, &config)
	if err != nil {
		slog.Error("failed to instantiate check storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	limiter := checks.NewRateLimiter(time.Duration(config.RateLimitWindowSeconds)*time.Second, config.RateLimitMaxRequests)
	state := NewServerState(mailer.NewSMTPMailer(config.MailConfig), checks.NewChecker(store, limiter))

	server, err := NewServer(state, config.ServerConfig)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		_ = server.Stop()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

// readConfigFile overlays the file on the defaults.
func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	config := defaultConfig()
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	// a zero window or limit would reject every check
	if config.RateLimitWindowSeconds <= 0 {
		config.RateLimitWindowSeconds = int(checks.DefaultWindow / time.Second)
	}
	if config.RateLimitMaxRequests <= 0 {
		config.RateLimitMaxRequests = checks.DefaultMaxRequests
	}

	return config, nil
}

// applyEnv lets the deployment environment override the file.
func applyEnv(config *Config, getenv func(string) string) {
	if v := getenv("DATABASE_URL"); v != "" {
		config.DatabaseURL = v
	}
	if v := getenv("GMAIL_USER"); v != "" {
		config.MailConfig.User = v
	}
	if v := getenv("GMAIL_APP_PASSWORD"); v != "" {
		config.MailConfig.Password = v
	}
	if v := getenv("CONTACT_EMAIL"); v != "" {
		config.MailConfig.To = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
}

func createCheckStore(ctx context.Context, config *Config) (checks.Store, func(), error) {
	if config.StorageType == "postgres" {
		slog.Info("Using postgres check storage")
		if config.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		pool, err := checks.OpenPostgres(ctx, config.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := checks.NewPostgresStore(pool)
		if err := store.InitSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}
	if config.StorageType == "memory" {
		slog.Info("Using in memory check storage")
		return checks.NewInMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}
