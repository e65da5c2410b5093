package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Lumi/internal/api"
	"github.com/BTreeMap/Lumi/internal/genai"
	"github.com/BTreeMap/Lumi/internal/store"
	"github.com/BTreeMap/Lumi/internal/whatsapp"
)

var configKeys = []string{
	"LUMI_STATE_DIR", "DATABASE_URL", "WHATSAPP_DB_DSN", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_TEMPERATURE",
	"API_ADDR", "FOLLOWUP_CRON", "FOLLOWUP_TIMEZONE", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN",
	"TWILIO_FROM_NUMBER", "TWILIO_WEBHOOK_URL", "UNSPLASH_ACCESS_KEY", "UNSPLASH_API_URL",
	"YOUTUBE_API_KEY", "YOUTUBE_API_URL", "LOG_LEVEL", "DEBUG_PROMPTS",
}

// clearConfigEnv unsets every variable Config reads; t.Setenv restores them afterwards.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("lumi-test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := loadEnvironmentConfig()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/lumi", cfg.StateDir)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, "* * * * *", cfg.FollowUpCron)
	assert.Equal(t, "America/Guayaquil", cfg.FollowUpTimezone)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 0.7, cfg.OpenAITemp, 1e-9)
	assert.Equal(t, filepath.Join("/var/lib/lumi", DefaultAppDBFileName), cfg.DatabaseURL)
	assert.Equal(t, "file:/var/lib/lumi/whatsmeow.db?_foreign_keys=on", cfg.WhatsAppDSN)
	assert.False(t, cfg.DebugPrompts)
}

func TestLoadEnvironmentConfigFromEnv(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	t.Setenv("LUMI_STATE_DIR", dir)
	t.Setenv("DATABASE_URL", "postgres://lumi@localhost/lumi")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("DEBUG_PROMPTS", "on")

	cfg, err := loadEnvironmentConfig()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.StateDir)
	assert.Equal(t, "postgres://lumi@localhost/lumi", cfg.DatabaseURL)
	assert.Equal(t, "file:"+filepath.Join(dir, DefaultWhatsAppDBFileName)+"?_foreign_keys=on", cfg.WhatsAppDSN)
	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, "AC123", cfg.TwilioSID)
	assert.True(t, cfg.DebugPrompts)
}

func TestParseFlagsOverridesEnvironment(t *testing.T) {
	cfg := Config{StateDir: "/srv/lumi", APIAddr: ":8080", LogLevel: "info"}
	applyDerivedDefaults(&cfg)

	err := parseFlags(newFlagSet(), []string{"-api-addr", ":9090", "-log-level", "debug", "-numeric-code"}, &cfg)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.APIAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.NumericCode)
	assert.Equal(t, "/srv/lumi/lumi.db", cfg.DatabaseURL)
}

func TestParseFlagsStateDirMovesDerivedDSNs(t *testing.T) {
	cfg := Config{StateDir: "/srv/lumi"}
	applyDerivedDefaults(&cfg)

	require.NoError(t, parseFlags(newFlagSet(), []string{"-state-dir", "/tmp/lumi"}, &cfg))

	assert.Equal(t, "/tmp/lumi/lumi.db", cfg.DatabaseURL)
	assert.Equal(t, "file:/tmp/lumi/whatsmeow.db?_foreign_keys=on", cfg.WhatsAppDSN)
}

func TestParseFlagsStateDirKeepsExplicitDSN(t *testing.T) {
	cfg := Config{StateDir: "/srv/lumi", DatabaseURL: "postgres://db/lumi"}
	applyDerivedDefaults(&cfg)

	require.NoError(t, parseFlags(newFlagSet(), []string{"-state-dir", "/tmp/lumi"}, &cfg))

	assert.Equal(t, "postgres://db/lumi", cfg.DatabaseURL)
	assert.Equal(t, "file:/tmp/lumi/whatsmeow.db?_foreign_keys=on", cfg.WhatsAppDSN)
}

func TestParseFlagsRejectsUnknownFlag(t *testing.T) {
	cfg := Config{}
	assert.Error(t, parseFlags(newFlagSet(), []string{"-bogus"}, &cfg))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), "level %q", in)
	}
}

func TestBuildStoreOptions(t *testing.T) {
	var pg store.Opts
	for _, opt := range buildStoreOptions(Config{DatabaseURL: "postgres://db/lumi"}) {
		opt(&pg)
	}
	assert.Equal(t, store.DSNTypePostgres, pg.Driver)

	var lite store.Opts
	for _, opt := range buildStoreOptions(Config{DatabaseURL: "/var/lib/lumi/lumi.db"}) {
		opt(&lite)
	}
	assert.Equal(t, store.DSNTypeSQLite, lite.Driver)
	assert.Equal(t, "/var/lib/lumi/lumi.db", lite.DSN)
}

func TestBuildWhatsAppOptions(t *testing.T) {
	var opts whatsapp.Opts
	cfg := Config{WhatsAppDSN: "file:wa.db?_foreign_keys=on", QROutput: "/tmp/qr.txt", LogLevel: "debug"}
	for _, opt := range buildWhatsAppOptions(cfg) {
		opt(&opts)
	}
	assert.Equal(t, "file:wa.db?_foreign_keys=on", opts.DBDSN)
	assert.Equal(t, "/tmp/qr.txt", opts.QRPath)
	assert.False(t, opts.NumericCode)
	assert.Equal(t, "DEBUG", opts.LogLevel)
}

func TestBuildGenAIOptions(t *testing.T) {
	var opts genai.Opts
	for _, opt := range buildGenAIOptions(Config{OpenAIKey: "sk", OpenAIModel: "gpt-4o-mini", OpenAITemp: 0.2, DebugPrompts: true, StateDir: "/srv/lumi"}) {
		opt(&opts)
	}
	assert.Equal(t, "sk", opts.APIKey)
	assert.Equal(t, "gpt-4o-mini", opts.Model)
	assert.InDelta(t, 0.2, opts.Temperature, 1e-9)
	assert.True(t, opts.DebugMode)
	assert.Equal(t, "/srv/lumi", opts.StateDir)
}

func TestBuildAPIOptions(t *testing.T) {
	cfg := Config{
		APIAddr:          ":9000",
		StateDir:         "/srv/lumi",
		FollowUpCron:     "*/5 * * * *",
		TwilioSID:        "AC1",
		TwilioToken:      "tok",
		TwilioFrom:       "+15550001111",
		TwilioWebhookURL: "https://lumi.example.com/webhook/twilio",
		UnsplashKey:      "unsplash",
	}
	var opts api.Opts
	for _, opt := range buildAPIOptions(cfg, time.UTC) {
		opt(&opts)
	}

	assert.Equal(t, ":9000", opts.Addr)
	assert.Equal(t, "/srv/lumi", opts.StateDir)
	assert.Equal(t, "*/5 * * * *", opts.FollowUpCron)
	assert.Equal(t, time.UTC, opts.Location)
	assert.Equal(t, "AC1", opts.TwilioAccountSID)
	assert.Equal(t, "tok", opts.TwilioAuthToken)
	assert.Equal(t, "+15550001111", opts.TwilioFrom)
	assert.Equal(t, "https://lumi.example.com/webhook/twilio", opts.TwilioWebhookURL)
	assert.Len(t, opts.UnsplashOpts, 1)
	assert.Empty(t, opts.YouTubeOpts)
}

func TestBuildAPIOptionsWithoutTwilio(t *testing.T) {
	var opts api.Opts
	for _, opt := range buildAPIOptions(Config{TwilioWebhookURL: "https://ignored"}, time.UTC) {
		opt(&opts)
	}
	assert.Empty(t, opts.TwilioAccountSID)
	assert.Empty(t, opts.TwilioWebhookURL)
}
