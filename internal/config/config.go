package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"flipwatch/internal/alerting"
	"flipwatch/internal/detect"
	"flipwatch/internal/logging"
	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Source     SourceConfig     `mapstructure:"source"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SourceConfig tunes the simulated metrics source.
type SourceConfig struct {
	Regions int   `mapstructure:"regions"`
	Seed    int64 `mapstructure:"seed"`
}

// ProfileConfig is a user-defined weight profile.
type ProfileConfig struct {
	Name         string  `mapstructure:"name"`
	Appreciation float64 `mapstructure:"appreciation"`
	Velocity     float64 `mapstructure:"velocity"`
	Distress     float64 `mapstructure:"distress"`
	PricingPower float64 `mapstructure:"pricing_power"`
	ValueGap     float64 `mapstructure:"value_gap"`
}

// ScoringConfig selects the strategy, normalization, and ranked-table filters.
type ScoringConfig struct {
	Strategy      string          `mapstructure:"strategy"`
	Normalization string          `mapstructure:"normalization"`
	Workers       int             `mapstructure:"workers"`
	MinScore      float64         `mapstructure:"min_score"`
	MinValue      float64         `mapstructure:"min_value"`
	MaxValue      float64         `mapstructure:"max_value"`
	Profiles      []ProfileConfig `mapstructure:"profiles"`
}

// DetectionConfig sets the period-over-period movement thresholds.
type DetectionConfig struct {
	ImprovementThreshold float64 `mapstructure:"improvement_threshold"`
	DegradationThreshold float64 `mapstructure:"degradation_threshold"`
}

// AlertingConfig defines alert tiering and routing.
type AlertingConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	HotThreshold   float64        `mapstructure:"hot_threshold"`
	WarmThreshold  float64        `mapstructure:"warm_threshold"`
	WatchThreshold float64        `mapstructure:"watch_threshold"`
	Channels       []string       `mapstructure:"channels"`
	Telegram       TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel, active when
// "telegram" is listed in alerting.channels.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// AnalysisConfig bounds the per-step deep analysis.
type AnalysisConfig struct {
	TopK int `mapstructure:"top_k"`
}

// SimulationConfig governs the orchestration run.
type SimulationConfig struct {
	Steps           int    `mapstructure:"steps"`
	StartPeriod     string `mapstructure:"start_period"`
	AdvisoryLockKey int64  `mapstructure:"advisory_lock_key"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults, and
// fail-fast validates it before any step can execute.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLIPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flipwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("source.regions", 200)
	v.SetDefault("source.seed", int64(20250101))

	v.SetDefault("scoring.strategy", "balanced")
	v.SetDefault("scoring.normalization", "minmax")
	v.SetDefault("scoring.workers", 8)
	v.SetDefault("scoring.min_score", 0.0)

	v.SetDefault("detection.improvement_threshold", 3.0)
	v.SetDefault("detection.degradation_threshold", 3.0)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.hot_threshold", 80.0)
	v.SetDefault("alerting.warm_threshold", 65.0)
	v.SetDefault("alerting.watch_threshold", 50.0)
	v.SetDefault("alerting.channels", []string{"log"})
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("analysis.top_k", 20)

	v.SetDefault("simulation.steps", 3)
	v.SetDefault("simulation.advisory_lock_key", int64(0x666c6970))

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs the fail-fast configuration checks: weight profiles sum
// to 1, tier thresholds are strictly ordered, detection thresholds are
// positive, and bound settings are sane. Any failure here surfaces before a
// run starts.
func (c *Config) Validate() error {
	profiles, err := c.Profiles()
	if err != nil {
		return err
	}
	if _, err := profiles.Resolve(c.Scoring.Strategy); err != nil {
		return err
	}
	if _, err := scoring.ParseNormMethod(c.Scoring.Normalization); err != nil {
		return err
	}
	if c.Scoring.MaxValue > 0 && c.Scoring.MaxValue < c.Scoring.MinValue {
		return fmt.Errorf("scoring.max_value %.0f below scoring.min_value %.0f", c.Scoring.MaxValue, c.Scoring.MinValue)
	}
	if err := c.DetectionThresholds().Validate(); err != nil {
		return err
	}
	if err := c.AlertThresholds().Validate(); err != nil {
		return err
	}
	if c.Analysis.TopK <= 0 {
		return fmt.Errorf("analysis.top_k must be greater than zero")
	}
	if c.Simulation.Steps <= 0 {
		return fmt.Errorf("simulation.steps must be greater than zero")
	}
	if c.Simulation.StartPeriod != "" {
		if _, err := market.ParsePeriod(c.Simulation.StartPeriod); err != nil {
			return err
		}
	}
	if c.Source.Regions <= 0 {
		return fmt.Errorf("source.regions must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	for _, channel := range c.Alerting.Channels {
		switch channel {
		case alerting.ChannelLog:
		case alerting.ChannelTelegram:
			if c.Alerting.Telegram.BotToken == "" {
				return fmt.Errorf("alerting.telegram.bot_token is required for the telegram channel")
			}
			if c.Alerting.Telegram.ChatID == "" {
				return fmt.Errorf("alerting.telegram.chat_id is required for the telegram channel")
			}
		default:
			return fmt.Errorf("unknown alerting channel %q", channel)
		}
	}
	return nil
}

// Profiles combines built-in and configured weight profiles.
func (c *Config) Profiles() (scoring.ProfileSet, error) {
	extras := make([]scoring.WeightProfile, 0, len(c.Scoring.Profiles))
	for _, p := range c.Scoring.Profiles {
		extras = append(extras, scoring.WeightProfile{
			Name:         p.Name,
			Appreciation: p.Appreciation,
			Velocity:     p.Velocity,
			Distress:     p.Distress,
			PricingPower: p.PricingPower,
			ValueGap:     p.ValueGap,
		})
	}
	return scoring.NewProfileSet(extras...)
}

// ResolveStrategy returns the validated weight profile for a strategy name,
// defaulting to the configured strategy when name is empty.
func (c *Config) ResolveStrategy(name string) (scoring.WeightProfile, error) {
	if name == "" {
		name = c.Scoring.Strategy
	}
	profiles, err := c.Profiles()
	if err != nil {
		return scoring.WeightProfile{}, err
	}
	return profiles.Resolve(name)
}

// DetectionThresholds maps config onto detector thresholds.
func (c *Config) DetectionThresholds() detect.Thresholds {
	return detect.Thresholds{
		Improvement: c.Detection.ImprovementThreshold,
		Degradation: c.Detection.DegradationThreshold,
	}
}

// AlertThresholds maps config onto alert tiering.
func (c *Config) AlertThresholds() alerting.Thresholds {
	return alerting.Thresholds{
		Hot:   c.Alerting.HotThreshold,
		Warm:  c.Alerting.WarmThreshold,
		Watch: c.Alerting.WatchThreshold,
	}
}

// FilterOptions maps config onto ranked-table filters.
func (c *Config) FilterOptions() scoring.FilterOptions {
	opts := scoring.FilterOptions{MinScore: c.Scoring.MinScore}
	if c.Scoring.MinValue > 0 {
		opts.MinValue = decimal.NewFromFloat(c.Scoring.MinValue)
	}
	if c.Scoring.MaxValue > 0 {
		opts.MaxValue = decimal.NewFromFloat(c.Scoring.MaxValue)
	}
	return opts
}

// StartPeriod resolves the simulation start, defaulting to the current month.
func (c *Config) StartPeriod(now time.Time) (market.Period, error) {
	if c.Simulation.StartPeriod == "" {
		return market.Period{Year: now.UTC().Year(), Month: now.UTC().Month()}, nil
	}
	return market.ParsePeriod(c.Simulation.StartPeriod)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
