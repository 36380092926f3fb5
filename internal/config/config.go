package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/scythe504/turing-backend/internal"
)

const (
	FallbackDelay  = "delay"
	FallbackChance = "chance"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Bind           string
	Port           int
	AllowedOrigins []string
	Debug          bool
	Verbose        bool
	LogJSON        bool

	ConversationDuration time.Duration
	GuessWindow          time.Duration
	FallbackMode         string
	FallbackDelay        time.Duration
	FallbackChance       float64
	HeartbeatTimeout     time.Duration
	SweepInterval        time.Duration
	MaxMessageLength     int
	MessageRate          float64
	MessageBurst         int

	Store       string
	DatabaseURL string
	SQLitePath  string

	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	Persona           string
	ReplyFile         string
	GenerationTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.FallbackMode {
	case FallbackDelay, FallbackChance:
	default:
		return fmt.Errorf("invalid --fallback-mode %q (want %q or %q)", c.FallbackMode, FallbackDelay, FallbackChance)
	}
	if c.FallbackChance < 0 || c.FallbackChance > 1 {
		return fmt.Errorf("invalid --fallback-chance (must be between 0 and 1): %v", c.FallbackChance)
	}
	if c.ConversationDuration <= 0 || c.GuessWindow <= 0 || c.FallbackDelay <= 0 {
		return errors.New("--conversation, --guess-window and --fallback-delay must be positive")
	}
	if c.HeartbeatTimeout <= 0 || c.SweepInterval <= 0 {
		return errors.New("--heartbeat-timeout and --sweep-interval must be positive")
	}
	if c.MaxMessageLength < 1 {
		return fmt.Errorf("invalid --max-message-length: %d", c.MaxMessageLength)
	}
	if c.MessageRate <= 0 || c.MessageBurst < 1 {
		return errors.New("--message-rate and --message-burst must be positive")
	}
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("--database-url is required with --store=postgres")
		}
	default:
		return fmt.Errorf("unknown --store %q", c.Store)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// LoadDotEnv reads .env into the process environment if the file exists.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("[LoadDotEnv] no .env file found, using environment variables only")
	}
}

// NewCommand builds the root command. Every flag can also be set through a
// TURING_ prefixed environment variable, e.g. TURING_FALLBACK_MODE.
func NewCommand(cfg *Config, version string, run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TURING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "turing",
		Short:   "Pairs anonymous chatters with a human or a bot and asks them to tell which.",
		Args:    cobra.ExactArgs(0),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: TURING_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: TURING_PORT)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "origins allowed by CORS and the websocket upgrader (env: TURING_ALLOWED_ORIGINS)")
	fs.BoolVar(&cfg.Debug, "debug", false, "expose /debug endpoints (env: TURING_DEBUG)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log at debug level (env: TURING_VERBOSE)")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "write logs as JSON (env: TURING_LOG_JSON)")

	fs.DurationVar(&cfg.ConversationDuration, "conversation", internal.ConversationDuration, "length of a conversation before guessing (env: TURING_CONVERSATION)")
	fs.DurationVar(&cfg.GuessWindow, "guess-window", internal.GuessWindowDuration, "time allowed for guesses after time up (env: TURING_GUESS_WINDOW)")
	fs.StringVar(&cfg.FallbackMode, "fallback-mode", FallbackDelay, "automated partner policy: delay or chance (env: TURING_FALLBACK_MODE)")
	fs.DurationVar(&cfg.FallbackDelay, "fallback-delay", internal.FallbackDelay, "wait before assigning an automated partner (env: TURING_FALLBACK_DELAY)")
	fs.Float64Var(&cfg.FallbackChance, "fallback-chance", 0.3, "probability of an immediate automated partner in chance mode (env: TURING_FALLBACK_CHANCE)")
	fs.DurationVar(&cfg.HeartbeatTimeout, "heartbeat-timeout", internal.HeartbeatTimeout, "silence before a session is evicted (env: TURING_HEARTBEAT_TIMEOUT)")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", 15*time.Second, "how often stale sessions are swept (env: TURING_SWEEP_INTERVAL)")
	fs.IntVar(&cfg.MaxMessageLength, "max-message-length", internal.MaxMessageLength, "longest accepted chat message in bytes (env: TURING_MAX_MESSAGE_LENGTH)")
	fs.Float64Var(&cfg.MessageRate, "message-rate", 5, "inbound events per second per connection (env: TURING_MESSAGE_RATE)")
	fs.IntVar(&cfg.MessageBurst, "message-burst", 10, "inbound burst per connection (env: TURING_MESSAGE_BURST)")

	fs.StringVar(&cfg.Store, "store", StoreSQLite, "record store: memory, sqlite or postgres (env: TURING_STORE)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres connection string (env: TURING_DATABASE_URL)")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", "turing.db", "sqlite database file (env: TURING_SQLITE_PATH)")

	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "API key for the chat completion service (env: TURING_OPENAI_KEY)")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "gpt-3.5-turbo", "chat completion model (env: TURING_OPENAI_MODEL)")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", "", "override the chat completion endpoint (env: TURING_OPENAI_BASE_URL)")
	fs.StringVar(&cfg.Persona, "ai-persona", "", "system prompt for the automated partner (env: TURING_AI_PERSONA)")
	fs.StringVar(&cfg.ReplyFile, "reply-file", "", "CSV of canned replies used when no OpenAI key is set (env: TURING_REPLY_FILE)")
	fs.DurationVar(&cfg.GenerationTimeout, "generation-timeout", 20*time.Second, "deadline for one automated reply (env: TURING_GENERATION_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("turing v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
