package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"chatbot-console/internal/logger"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	BackendURL string `env:"BACKEND_URL" envDefault:"http://localhost:3001"`
	// AppURL is the public origin that serves /widget-dist/chat-widget.iife.js.
	AppURL      string `env:"APP_URL" envDefault:"http://localhost:3000"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	JWTSecret   string `env:"JWT_SECRET"`
	// AuthInsecureDev accepts session tokens without a signature check.
	// Local development only.
	AuthInsecureDev bool `env:"AUTH_INSECURE_DEV" envDefault:"false"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath     string `env:"DB_PATH" envDefault:"./console.db"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"chatbot_console"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	RedisURL   string `env:"REDIS_URL"`

	GraphAPIURL string `env:"GRAPH_API_URL" envDefault:"https://graph.facebook.com/v19.0"`

	KnowledgeDeletePolicy string        `env:"KNOWLEDGE_DELETE_POLICY" envDefault:"badge"`
	WizardFileLimit       int           `env:"WIZARD_FILE_LIMIT" envDefault:"10"`
	DetailFileLimit       int           `env:"DETAIL_FILE_LIMIT" envDefault:"50"`
	DashboardCacheTTL     time.Duration `env:"DASHBOARD_CACHE_TTL" envDefault:"5m"`

	Log logger.LogConfig

	SettingsFile string `env:"SETTINGS_FILE"`
	Settings     Settings
}

// Settings is the optional YAML overlay named by SETTINGS_FILE.
type Settings struct {
	Widget struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"widget"`
	N8N struct {
		WorkflowID string `yaml:"workflow_id"`
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"n8n"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.SettingsFile != "" {
		settings, err := loadSettings(cfg.SettingsFile)
		if err != nil {
			return nil, err
		}
		cfg.Settings = *settings
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	switch cfg.KnowledgeDeletePolicy {
	case "badge", "block":
	default:
		return nil, fmt.Errorf("unsupported KNOWLEDGE_DELETE_POLICY %q", cfg.KnowledgeDeletePolicy)
	}

	return cfg, nil
}

func loadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	return &s, nil
}

// CheckAuth fails when session tokens could not be verified.
func (c *Config) CheckAuth() error {
	if c.JWTSecret == "" && !c.AuthInsecureDev {
		return errors.New("JWT_SECRET is required (set AUTH_INSECURE_DEV=true to skip token verification locally)")
	}
	return nil
}

// PostgresDSN builds the connection string for the postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}
