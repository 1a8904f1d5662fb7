package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spigell/rfp-evaluator/internal/ai/gemini"
	"github.com/spigell/rfp-evaluator/internal/ai/openrouter"
	"github.com/spigell/rfp-evaluator/internal/evaluation"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app       = "rfp-evaluator"
	envPrefix = "RFP_EVALUATOR"
)

type Config struct {
	AI         *AIConfig         `mapstructure:"ai"`
	Evaluation *EvaluationConfig `mapstructure:"evaluation"`
	Store      *StoreConfig      `mapstructure:"store"`
	Output     *OutputConfig     `mapstructure:"output"`
}

type AIConfig struct {
	Provider     string            `mapstructure:"provider"`
	CallTimeout  time.Duration     `mapstructure:"call-timeout"`
	MaxLogLength int               `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig     `mapstructure:"gemini"`
	OpenRouter   *OpenRouterConfig `mapstructure:"openrouter"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenRouterConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
	BaseURL    string `mapstructure:"base-url"`
	Referer    string `mapstructure:"referer"`
	Title      string `mapstructure:"title"`
}

type EvaluationConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// ExcludeVendors lists vendor names or emails that are never evaluated.
	ExcludeVendors    []string `mapstructure:"exclude-vendors"`
	ExcludeFile       string   `mapstructure:"exclude-file"`
	MinProposalLength int      `mapstructure:"min-proposal-length"`
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto-migrate"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	// Color is auto, always or never.
	Color string `mapstructure:"color"`
	Width int    `mapstructure:"width"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "rfp-evaluator scores vendor proposals for an RFP and ranks them against each other",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE")
	bindEnv("ai.openrouter.api-key-file", "OPENROUTER_API_KEY_FILE")

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is rfp-evaluator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: table, json or csv")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
}

func bindEnv(key, env string) {
	if err := viper.BindEnv(key, env); err != nil {
		log.Fatalf("binding %s environment variable: %v", env, err)
	}
}

// setDefaults registers every key so environment overrides reach viper.Unmarshal.
func setDefaults() {
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.call-timeout", evaluation.DefaultCallTimeout)
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("ai.gemini.api-key", "")
	viper.SetDefault("ai.gemini.model", gemini.DefaultModel)
	viper.SetDefault("ai.gemini.max-retries", gemini.DefaultMaxRetries)
	viper.SetDefault("ai.openrouter.api-key", "")
	viper.SetDefault("ai.openrouter.model", openrouter.DefaultModel)
	viper.SetDefault("ai.openrouter.max-retries", openrouter.DefaultMaxRetries)
	viper.SetDefault("ai.openrouter.base-url", openrouter.DefaultBaseURL)
	viper.SetDefault("ai.openrouter.referer", "")
	viper.SetDefault("ai.openrouter.title", openrouter.DefaultTitle)
	viper.SetDefault("evaluation.concurrency", evaluation.DefaultConcurrency)
	viper.SetDefault("evaluation.exclude-vendors", []string{})
	viper.SetDefault("evaluation.exclude-file", "")
	viper.SetDefault("evaluation.min-proposal-length", 1)
	viper.SetDefault("store.backend", string(store.SQLiteBackend))
	viper.SetDefault("store.dsn", store.DefaultSQLitePath)
	viper.SetDefault("store.auto-migrate", true)
	viper.SetDefault("output.format", "table")
	viper.SetDefault("output.color", "auto")
	viper.SetDefault("output.width", 0)
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// The version command works without any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine, a broken or explicitly given one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// setup builds the logger and config every command starts from.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.AI == nil || config.Store == nil || config.Evaluation == nil || config.Output == nil {
		logger.Fatal("config is incomplete")
	}

	if file := viper.ConfigFileUsed(); file != "" {
		logger.Debug("using config file", zap.String("file", file))
	}

	return logger, config
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore connects to the configured database and migrates it when enabled.
func openStore(config *Config, log *zap.Logger) (*store.Store, error) {
	backend, err := store.ParseBackend(config.Store.Backend)
	if err != nil {
		return nil, err
	}

	dsn := config.Store.DSN
	if backend != store.SQLiteBackend && dsn == store.DefaultSQLitePath {
		return nil, errors.New("store.dsn is required for " + string(backend))
	}

	db, err := store.Open(backend, dsn, log)
	if err != nil {
		return nil, err
	}

	if config.Store.AutoMigrate {
		if err := db.Migrate(store.LatestVersion); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}
