package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	AIURL           string        `mapstructure:"AI_URL"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	TwoGISAPIKey       string        `mapstructure:"TWOGIS_API_KEY"`
	TwoGISURL          string        `mapstructure:"TWOGIS_URL"`
	GeocodeMinInterval time.Duration `mapstructure:"GEOCODE_MIN_INTERVAL"`
	EquidistantKm      float64       `mapstructure:"EQUIDISTANT_KM"`
	FallbackOffices    string        `mapstructure:"FALLBACK_OFFICES"`
	ProcessWorkers     int           `mapstructure:"PROCESS_WORKERS"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("TWOGIS_URL", "https://catalog.api.2gis.com/3.0/items/geocode")
	v.SetDefault("GEOCODE_MIN_INTERVAL", "250ms")
	v.SetDefault("EQUIDISTANT_KM", 50.0)
	v.SetDefault("FALLBACK_OFFICES", "Астана,Алматы")
	v.SetDefault("PROCESS_WORKERS", 4)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
