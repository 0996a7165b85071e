package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	SendgridAPIKey         string
	EmailFrom              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SummaryCacheTTL        time.Duration
	TutorWeight            float64
	InstructorWeight       float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TITULACION")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Titulacion API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "titulacion/entregables")
	v.SetDefault("summary.cache_ttl", "5m")
	v.SetDefault("grading.tutor_weight", 0.5)
	v.SetDefault("grading.instructor_weight", 0.5)
	v.SetDefault("email.from", "titulacion@uide.edu.ec")

	ttlString := v.GetString("summary.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		SendgridAPIKey:         v.GetString("sendgrid.api_key"),
		EmailFrom:              v.GetString("email.from"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SummaryCacheTTL:        ttl,
		TutorWeight:            v.GetFloat64("grading.tutor_weight"),
		InstructorWeight:       v.GetFloat64("grading.instructor_weight"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if err := validateWeights(cfg.TutorWeight, cfg.InstructorWeight); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateWeights(tutor, instructor float64) error {
	if tutor < 0 || tutor > 1 || instructor < 0 || instructor > 1 {
		return fmt.Errorf("grading weights must be within [0,1]")
	}
	if math.Abs(tutor+instructor-1.0) > 1e-9 {
		return fmt.Errorf("grading weights must sum to 1.0, got %.4f", tutor+instructor)
	}
	return nil
}
