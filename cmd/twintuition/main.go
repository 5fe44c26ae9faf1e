// Command twintuition runs the behavioral synchronicity engine as a
// standalone service: it assembles the store, notifier, and engine from
// environment configuration and keeps the batch sweep running until
// interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/twinsense/twintuition/internal/alert"
	"github.com/twinsense/twintuition/internal/engine"
	"github.com/twinsense/twintuition/internal/genai"
	"github.com/twinsense/twintuition/internal/models"
	"github.com/twinsense/twintuition/internal/notify"
	"github.com/twinsense/twintuition/internal/store"
	"github.com/twinsense/twintuition/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for twintuition state data
	DefaultStateDir = "/var/lib/twintuition"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "twintuition.db"
	// DefaultSweepSeconds is the default batch sweep interval in seconds
	DefaultSweepSeconds = 30
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	svc := engine.NewService(buildEngineOptions(flags, st)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Initialize(ctx); err != nil {
		slog.Error("Twintuition engine failed to initialize", "error", err)
		os.Exit(1)
	}

	slog.Info("Twintuition engine running", "state_dir", *flags.stateDir, "driver", *flags.dbDriver)
	<-ctx.Done()

	svc.Stop()
	slog.Info("Twintuition engine exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver      string
	DatabaseURL   string
	StateDir      string
	UserID        string
	TwinID        string
	OpenAIKey     string
	SweepSeconds  int
	NotifyEnabled bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDriver      *string
	dbDSN         *string
	userID        *string
	twinID        *string
	openaiKey     *string
	sweepSeconds  *int
	notifyEnabled *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:      os.Getenv("TWINTUITION_DB_DRIVER"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("TWINTUITION_STATE_DIR"),
		UserID:        os.Getenv("TWINTUITION_USER_ID"),
		TwinID:        os.Getenv("TWINTUITION_TWIN_ID"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		SweepSeconds:  util.ParseIntEnv("TWINTUITION_SWEEP_SECONDS", DefaultSweepSeconds),
		NotifyEnabled: util.ParseBoolEnv("TWINTUITION_NOTIFICATIONS", true),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TWINTUITION_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DbDriver == "" {
		config.DbDriver = "sqlite3"
	}

	return config
}

// parseCommandLineFlags parses command line flags, using environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "Directory for engine state data"),
		dbDriver:      flag.String("db-driver", config.DbDriver, "Database driver (sqlite3 or postgres)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "Database DSN (file path for sqlite3, URL for postgres)"),
		userID:        flag.String("user-id", config.UserID, "Identifier of the local user"),
		twinID:        flag.String("twin-id", config.TwinID, "Identifier of the paired twin (empty when unpaired)"),
		openaiKey:     flag.String("openai-key", config.OpenAIKey, "OpenAI API key for GenAI alert messages (optional)"),
		sweepSeconds:  flag.Int("sweep-seconds", config.SweepSeconds, "Batch sweep interval in seconds"),
		notifyEnabled: flag.Bool("notifications", config.NotifyEnabled, "Enable notification delivery"),
	}
	flag.Parse()
	return flags
}

// buildStore selects and constructs the persistence backend
func buildStore(flags Flags) (store.Store, error) {
	switch *flags.dbDriver {
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	default:
		dsn := *flags.dbDSN
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		return store.NewSQLiteStore(store.WithDSN(dsn))
	}
}

// buildEngineOptions assembles the engine's collaborators from flags
func buildEngineOptions(flags Flags, st store.Store) []engine.Option {
	opts := []engine.Option{
		engine.WithStore(st),
		engine.WithSweepInterval(time.Duration(*flags.sweepSeconds) * time.Second),
		engine.WithIdentity(alert.StaticIdentity{
			User:          *flags.userID,
			Twin:          *flags.twinID,
			IsPaired:      *flags.twinID != "",
			NotifyEnabled: *flags.notifyEnabled,
		}),
	}

	if notifier, err := notify.NewTwilioNotifier(); err != nil {
		slog.Debug("Twilio not configured, falling back to log notifier", "error", err)
	} else {
		opts = append(opts, engine.WithNotifier(notifier))
	}

	if *flags.openaiKey != "" {
		client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Warn("GenAI renderer unavailable, using templates", "error", err)
		} else {
			opts = append(opts, engine.WithRenderer(genaiRenderer{client}))
		}
	}

	return opts
}

// genaiRenderer adapts the GenAI client to the dispatcher's renderer contract.
type genaiRenderer struct {
	client *genai.Client
}

func (r genaiRenderer) Render(ctx context.Context, sync models.SyncEvent) (string, error) {
	return r.client.RenderAlertMessage(ctx, sync)
}
