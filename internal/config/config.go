package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Spotify  SpotifyConfig
	Session  SessionConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	// URL is the postgres connection string. Empty means the in-memory
	// store, which is good enough for local development.
	URL string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string
	FrontendURL  string
	Timeout      time.Duration
}

type SessionConfig struct {
	Secret    []byte
	ExpiresIn time.Duration
}

type RedisConfig struct {
	// Addr enables the track metadata cache when set.
	Addr     string
	Password string
}

const defaultScopes = "user-read-playback-state user-modify-playback-state user-read-currently-playing streaming user-read-email user-read-private"

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", ":5000"),
			ReadTimeout:  getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout: getDurationOrDefault("WRITE_TIMEOUT", "15s"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Spotify: SpotifyConfig{
			ClientID:     getEnvOrFatal("SPOTIFY_CLIENT_ID"),
			ClientSecret: getEnvOrFatal("SPOTIFY_CLIENT_SECRET"),
			RedirectURI:  getEnvOrDefault("SPOTIFY_REDIRECT_URI", "http://127.0.0.1:5000/callback"),
			Scopes:       getEnvOrDefault("SPOTIFY_SCOPES", defaultScopes),
			FrontendURL:  getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
			Timeout:      getDurationOrDefault("SPOTIFY_TIMEOUT", "10s"),
		},
		Session: SessionConfig{
			Secret:    []byte(getEnvOrFatal("SESSION_SECRET")),
			ExpiresIn: getDurationOrDefault("SESSION_EXPIRES_IN", "24h"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrFatal(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s environment variable is required", key)
	}
	return value
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}
