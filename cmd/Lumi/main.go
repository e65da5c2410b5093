// Command Lumi runs the Lumi support chatbot: the WhatsApp transport, the
// follow-up scheduler and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/BTreeMap/Lumi/internal/api"
	"github.com/BTreeMap/Lumi/internal/genai"
	"github.com/BTreeMap/Lumi/internal/media"
	"github.com/BTreeMap/Lumi/internal/store"
	"github.com/BTreeMap/Lumi/internal/util"
	"github.com/BTreeMap/Lumi/internal/whatsapp"
)

const (
	// DefaultAppDBFileName is the SQLite database used when DATABASE_URL is unset.
	DefaultAppDBFileName = "lumi.db"
	// DefaultWhatsAppDBFileName holds the linked device session.
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

// Config is read from the environment (and .env) and then overridden by flags.
type Config struct {
	StateDir         string  `env:"LUMI_STATE_DIR" envDefault:"/var/lib/lumi"`
	DatabaseURL      string  `env:"DATABASE_URL"`
	WhatsAppDSN      string  `env:"WHATSAPP_DB_DSN"`
	OpenAIKey        string  `env:"OPENAI_API_KEY"`
	OpenAIModel      string  `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	OpenAITemp       float64 `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	APIAddr          string  `env:"API_ADDR" envDefault:":8080"`
	FollowUpCron     string  `env:"FOLLOWUP_CRON" envDefault:"* * * * *"`
	FollowUpTimezone string  `env:"FOLLOWUP_TIMEZONE" envDefault:"America/Guayaquil"`
	TwilioSID        string  `env:"TWILIO_ACCOUNT_SID"`
	TwilioToken      string  `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string  `env:"TWILIO_FROM_NUMBER"`
	TwilioWebhookURL string  `env:"TWILIO_WEBHOOK_URL"`
	UnsplashKey      string  `env:"UNSPLASH_ACCESS_KEY"`
	UnsplashURL      string  `env:"UNSPLASH_API_URL"`
	YouTubeKey       string  `env:"YOUTUBE_API_KEY"`
	YouTubeURL       string  `env:"YOUTUBE_API_URL"`
	LogLevel         string  `env:"LOG_LEVEL" envDefault:"info"`

	// DebugPrompts accepts loose booleans (yes/on), so it is parsed separately.
	DebugPrompts bool `env:"-"`

	QROutput    string `env:"-"`
	NumericCode bool   `env:"-"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("Lumi failed to run", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
	}

	cfg, err := loadEnvironmentConfig()
	if err != nil {
		return err
	}
	if err := parseFlags(flag.NewFlagSet("lumi", flag.ContinueOnError), args, &cfg); err != nil {
		return err
	}
	initializeLogger(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.FollowUpTimezone)
	if err != nil {
		return fmt.Errorf("invalid FOLLOWUP_TIMEZONE %q: %w", cfg.FollowUpTimezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Lumi", "state_dir", cfg.StateDir, "api_addr", cfg.APIAddr,
		"store", store.DetectDSNType(cfg.DatabaseURL), "twilio", cfg.TwilioSID != "", "timezone", loc.String())
	return api.Run(ctx,
		buildWhatsAppOptions(cfg),
		buildStoreOptions(cfg),
		buildGenAIOptions(cfg),
		buildAPIOptions(cfg, loc),
	)
}

// loadEnvironmentConfig parses the environment and fills in DSNs derived from the state directory.
func loadEnvironmentConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.DebugPrompts = util.ParseBoolEnv("DEBUG_PROMPTS", false)
	applyDerivedDefaults(&cfg)
	return cfg, nil
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultAppDBFileName)
	}
	if cfg.WhatsAppDSN == "" {
		cfg.WhatsAppDSN = "file:" + filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
}

// parseFlags overrides cfg with any flags given on the command line.
func parseFlags(fs *flag.FlagSet, args []string, cfg *Config) error {
	stateDirBefore := cfg.StateDir
	derived := *cfg
	derived.DatabaseURL, derived.WhatsAppDSN = "", ""
	applyDerivedDefaults(&derived)

	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for Lumi data (overrides $LUMI_STATE_DIR)")
	fs.StringVar(&cfg.DatabaseURL, "db-dsn", cfg.DatabaseURL, "application database DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)")
	fs.StringVar(&cfg.WhatsAppDSN, "whatsapp-db-dsn", cfg.WhatsAppDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&cfg.OpenAIKey, "openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", cfg.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)")
	fs.Float64Var(&cfg.OpenAITemp, "openai-temperature", cfg.OpenAITemp, "sampling temperature for generated replies (overrides $OPENAI_TEMPERATURE)")
	fs.StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&cfg.FollowUpCron, "followup-cron", cfg.FollowUpCron, "cron expression for the follow-up sweep (overrides $FOLLOWUP_CRON)")
	fs.StringVar(&cfg.FollowUpTimezone, "timezone", cfg.FollowUpTimezone, "IANA time zone for follow-up times (overrides $FOLLOWUP_TIMEZONE)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error (overrides $LOG_LEVEL)")
	fs.BoolVar(&cfg.DebugPrompts, "debug-prompts", cfg.DebugPrompts, "write every OpenAI request to <state-dir>/debug (overrides $DEBUG_PROMPTS)")
	fs.StringVar(&cfg.QROutput, "qr-output", "", "path to write the WhatsApp login QR code")
	fs.BoolVar(&cfg.NumericCode, "numeric-code", false, "print the raw pairing code instead of a QR code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// DSNs that were derived from the old state directory follow a -state-dir override.
	if cfg.StateDir != stateDirBefore {
		moved := Config{StateDir: cfg.StateDir}
		applyDerivedDefaults(&moved)
		if cfg.DatabaseURL == derived.DatabaseURL {
			cfg.DatabaseURL = moved.DatabaseURL
		}
		if cfg.WhatsAppDSN == derived.WhatsAppDSN {
			cfg.WhatsAppDSN = moved.WhatsAppDSN
		}
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func buildWhatsAppOptions(cfg Config) []whatsapp.Option {
	opts := []whatsapp.Option{whatsapp.WithDBDSN(cfg.WhatsAppDSN)}
	if cfg.QROutput != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(cfg.QROutput))
	}
	if cfg.NumericCode {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	if parseLogLevel(cfg.LogLevel) == slog.LevelDebug {
		opts = append(opts, whatsapp.WithLogLevel("DEBUG"))
	}
	return opts
}

func buildStoreOptions(cfg Config) []store.Option {
	if store.DetectDSNType(cfg.DatabaseURL) == store.DSNTypePostgres {
		return []store.Option{store.WithPostgresDSN(cfg.DatabaseURL)}
	}
	return []store.Option{store.WithSQLiteDSN(cfg.DatabaseURL)}
}

func buildGenAIOptions(cfg Config) []genai.Option {
	opts := []genai.Option{genai.WithAPIKey(cfg.OpenAIKey), genai.WithModel(cfg.OpenAIModel), genai.WithTemperature(cfg.OpenAITemp)}
	if cfg.DebugPrompts {
		opts = append(opts, genai.WithDebugMode(true, cfg.StateDir))
	}
	return opts
}

func buildAPIOptions(cfg Config, loc *time.Location) []api.Option {
	opts := []api.Option{
		api.WithAddr(cfg.APIAddr),
		api.WithStateDir(cfg.StateDir),
		api.WithFollowUpCron(cfg.FollowUpCron),
		api.WithLocation(loc),
	}
	if cfg.TwilioSID != "" {
		opts = append(opts, api.WithTwilio(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom))
		if cfg.TwilioWebhookURL != "" {
			opts = append(opts, api.WithTwilioWebhookURL(cfg.TwilioWebhookURL))
		}
	}
	if cfg.UnsplashKey != "" {
		opts = append(opts, api.WithUnsplash(mediaOptions(cfg.UnsplashKey, cfg.UnsplashURL)...))
	}
	if cfg.YouTubeKey != "" {
		opts = append(opts, api.WithYouTube(mediaOptions(cfg.YouTubeKey, cfg.YouTubeURL)...))
	}
	return opts
}

func mediaOptions(key, baseURL string) []media.Option {
	opts := []media.Option{media.WithAPIKey(key)}
	if baseURL != "" {
		opts = append(opts, media.WithBaseURL(baseURL))
	}
	return opts
}
