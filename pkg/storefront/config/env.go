package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies environment variable overrides. Variables that are unset
// leave the current value alone, so WithEnv can follow programmatic options.
//
// Server:
//
//	PORT, ENVIRONMENT (development, production, testing), LOG_LEVEL, SHUTDOWN_TIMEOUT
//
// Database:
//
//	DATABASE_URL - memory (default), postgresql://..., sqlite://<path>, firestore://<project>
//	DB_SCHEMA, DB_AUTO_MIGRATE, FIRESTORE_COLLECTION_PREFIX
//
// Storage:
//
//	STORAGE_URL - memory:// (default), file:///path, s3://bucket?region=..., gs://bucket
//	STORAGE_URL_PREFIX, S3_*, GCS_PUBLIC_BASE_URL, GCS_CACHE_CONTROL,
//	GOOGLE_APPLICATION_CREDENTIALS
//
// Auth:
//
//	AUTH_MODE (firebase or jwt), AUTH_SECRET, FIREBASE_PROJECT_ID
//
// Behaviour:
//
//	UPLOAD_CONCURRENCY, CLEAR_CART_ON_SIGN_OUT, GALLERY_CATEGORIES, PRODUCT_CATEGORIES,
//	ENABLE_METRICS
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML, JSON, TOML or .env file, then applies the
// environment on top of it.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}
}
