package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBSource    string
	StoreDriver string
	Port        string
	Env         string
	JWTSecret   string

	MediaDriver        string
	MediaBucket        string
	MediaRegion        string
	MediaEndpoint      string
	MediaPathStyle     bool
	MediaPublicBaseURL string
	MaxUploadBytes     int64
}

const defaultMaxUploadBytes = 5 << 20

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	storeDriver := getenv("STORE_DRIVER", "postgres")
	if storeDriver != "postgres" && storeDriver != "memory" {
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", storeDriver)
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" && storeDriver == "postgres" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	mediaDriver := getenv("MEDIA_DRIVER", "memory")
	bucket := os.Getenv("MEDIA_S3_BUCKET")
	switch mediaDriver {
	case "memory":
	case "s3":
		if bucket == "" {
			return nil, fmt.Errorf("MEDIA_S3_BUCKET is required when MEDIA_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("MEDIA_DRIVER must be memory or s3, got %q", mediaDriver)
	}

	pathStyle := false
	if v := os.Getenv("MEDIA_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MEDIA_S3_PATH_STYLE: %w", err)
		}
		pathStyle = b
	}

	maxUpload := int64(defaultMaxUploadBytes)
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer, got %q", v)
		}
		maxUpload = n
	}

	return &Config{
		DBSource:           dbSource,
		StoreDriver:        storeDriver,
		Port:               getenv("SERVER_PORT", "8080"),
		Env:                getenv("ENVIRONMENT", "development"),
		JWTSecret:          jwtSecret,
		MediaDriver:        mediaDriver,
		MediaBucket:        bucket,
		MediaRegion:        os.Getenv("MEDIA_S3_REGION"),
		MediaEndpoint:      os.Getenv("MEDIA_S3_ENDPOINT"),
		MediaPathStyle:     pathStyle,
		MediaPublicBaseURL: os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		MaxUploadBytes:     maxUpload,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
