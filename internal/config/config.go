package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "RESOLUTIONS"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "resolutions.db"
	defaultLogLevel          = "info"
	defaultSessionCookieName = "resolutions_session"
	defaultMaxMessageLen     = 400
	defaultPageSize          = 20
	defaultCountCacheTTL     = time.Minute

	minSessionSecretLength = 32
)

// Built-in survey enumerations. Deployments override them via configuration;
// an empty list is a configuration error, never a silently empty select.
var (
	defaultCountries = []string{
		"Argentina", "Australia", "Brazil", "Canada", "China", "France",
		"Germany", "India", "Italy", "Japan", "Mexico", "Netherlands",
		"Nigeria", "Poland", "Portugal", "South Korea", "Spain", "Sweden",
		"Switzerland", "United Kingdom", "United States", "Other",
	}
	defaultResolutionCategories = []string{
		"Health & Fitness", "Career & Work", "Learning & Education",
		"Money & Finance", "Relationships & Family", "Travel & Adventure",
		"Hobbies & Creativity", "Mindfulness & Wellbeing",
		"Community & Volunteering", "Other",
	}
	defaultMotivations = []string{
		"Personal growth", "Health", "Family", "Career", "Money",
		"Happiness", "Self-discipline", "New experiences", "Other",
	}
)

// AppConfig captures runtime configuration for the survey API server.
type AppConfig struct {
	HTTPAddress          string
	DatabasePath         string
	LogLevel             string
	SessionSecret        string
	SessionCookieName    string
	MaxMessageLen        int
	PageSize             int
	CountCacheTTL        time.Duration
	Countries            []string
	ResolutionCategories []string
	Motivations          []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultSessionCookieName)
	configViper.SetDefault("survey.max_message_len", defaultMaxMessageLen)
	configViper.SetDefault("survey.page_size", defaultPageSize)
	configViper.SetDefault("survey.count_cache_ttl", defaultCountCacheTTL)
	configViper.SetDefault("survey.countries", defaultCountries)
	configViper.SetDefault("survey.resolution_categories", defaultResolutionCategories)
	configViper.SetDefault("survey.motivations", defaultMotivations)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSecret:        configViper.GetString("session.secret"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		MaxMessageLen:        configViper.GetInt("survey.max_message_len"),
		PageSize:             configViper.GetInt("survey.page_size"),
		CountCacheTTL:        configViper.GetDuration("survey.count_cache_ttl"),
		Countries:            configViper.GetStringSlice("survey.countries"),
		ResolutionCategories: configViper.GetStringSlice("survey.resolution_categories"),
		Motivations:          configViper.GetStringSlice("survey.motivations"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(strings.TrimSpace(c.SessionSecret)) < minSessionSecretLength {
		return fmt.Errorf("session.secret is required and must be at least %d characters", minSessionSecretLength)
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.MaxMessageLen <= 0 {
		return fmt.Errorf("survey.max_message_len must be positive, got %d", c.MaxMessageLen)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("survey.page_size must be positive, got %d", c.PageSize)
	}
	if c.CountCacheTTL < 0 {
		return fmt.Errorf("survey.count_cache_ttl must not be negative, got %s", c.CountCacheTTL)
	}
	if err := validateEnumeration("survey.countries", c.Countries); err != nil {
		return err
	}
	if err := validateEnumeration("survey.resolution_categories", c.ResolutionCategories); err != nil {
		return err
	}
	return validateEnumeration("survey.motivations", c.Motivations)
}

func validateEnumeration(key string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%s must not be empty", key)
	}
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s contains a blank entry", key)
		}
	}
	return nil
}
