package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RabbitURL may be empty, in which case lifecycle events are not published.
	RabbitURL string

	// SweepCron is the schedule for the expired-offer sweep.
	SweepCron string

	// Timezone is the civil calendar all date keys live in.
	Timezone *time.Location
}

func Load() *Config {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	tzName := getEnv("TIMEZONE", "UTC")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		tz = time.UTC
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "bookingcore"),
		RabbitURL:  os.Getenv("RABBITMQ_URL"),
		SweepCron:  getEnv("SWEEP_CRON", "*/5 * * * *"),
		Timezone:   tz,
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
