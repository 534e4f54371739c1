package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithLogLevel sets the minimum log level
func WithLogLevel(level string) Option {
	return func(c *ServerConfig) error {
		c.LogLevel = level
		return nil
	}
}

// WithDatabase sets the metadata store URL
func WithDatabase(url string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseDatabaseURL(url); err != nil {
			return err
		}
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorage sets the blob store URL
func WithStorage(url string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseStorageURL(url); err != nil {
			return err
		}
		c.StorageURL = url
		return nil
	}
}

// WithS3 replaces the S3 settings used with s3:// storage URLs
func WithS3(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		c.S3 = s3
		return nil
	}
}

// WithJWTAuth verifies HS256 tokens signed with secret
func WithJWTAuth(secret string) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return fmt.Errorf("jwt secret cannot be empty")
		}
		c.Auth = AuthConfig{Mode: "jwt", Secret: secret}
		return nil
	}
}

// WithFirebaseAuth verifies Firebase ID tokens for projectID
func WithFirebaseAuth(projectID string) Option {
	return func(c *ServerConfig) error {
		if projectID == "" {
			return fmt.Errorf("firebase project id cannot be empty")
		}
		c.Auth = AuthConfig{Mode: "firebase", FirebaseProjectID: projectID}
		return nil
	}
}

// WithUploadConcurrency bounds parallel blob writes per upload
func WithUploadConcurrency(n int) Option {
	return func(c *ServerConfig) error {
		if n < 1 {
			return fmt.Errorf("upload concurrency must be positive, got: %d", n)
		}
		c.UploadConcurrency = n
		return nil
	}
}

// WithClearCartOnSignOut makes sign-out empty the caller's cart
func WithClearCartOnSignOut(clear bool) Option {
	return func(c *ServerConfig) error {
		c.ClearCartOnSignOut = clear
		return nil
	}
}

// WithCategories replaces the accepted gallery and product categories.
// Empty lists accept any category.
func WithCategories(gallery, products []string) Option {
	return func(c *ServerConfig) error {
		c.GalleryCategories = gallery
		c.ProductCategories = products
		return nil
	}
}

// WithMetrics toggles the Prometheus sink and /metrics endpoint
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}

// WithShutdownTimeout bounds graceful shutdown
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got: %s", d)
		}
		c.ShutdownTimeout = d
		return nil
	}
}
