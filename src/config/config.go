package config

import (
	"fmt"
	"os"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const (
	TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"
	DATE_PARSE_FORMAT = "2006-01-02"
)

var API_ENV = os.Getenv("API_ENV")

// Base URLs of the services this one consumes. The rental service never
// touches their databases, only their public APIs.
func ProductServiceURL() string {
	return getenv("PRODUCT_SERVICE_URL", "http://localhost:9091")
}

func CustomerServiceURL() string {
	return getenv("CUSTOMER_SERVICE_URL", "http://localhost:9092")
}

func NotificationServiceURL() string {
	return getenv("NOTIFICATION_SERVICE_URL", "http://localhost:9093")
}

// ServiceToken is the credential background jobs present to the other
// services. A scheduled sweep has no inbound caller to borrow a token from,
// so its credential must be configured explicitly.
func ServiceToken() string {
	return os.Getenv("SERVICE_TOKEN")
}

func SweepInterval() time.Duration {
	return getenvDuration("SWEEP_INTERVAL", time.Hour)
}

func SweepTimeout() time.Duration {
	return getenvDuration("SWEEP_TIMEOUT", 2*time.Minute)
}

func RemoteCallTimeout() time.Duration {
	return getenvDuration("REMOTE_CALL_TIMEOUT", 5*time.Second)
}

func PendingMaxAge() time.Duration {
	return getenvDuration("PENDING_MAX_AGE", 5*24*time.Hour)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
