package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/auth"
	"github.com/tendant/simple-storefront/pkg/storefront/logging"
	"github.com/tendant/simple-storefront/pkg/storefront/metrics"
	repofs "github.com/tendant/simple-storefront/pkg/storefront/repo/firestore"
	"github.com/tendant/simple-storefront/pkg/storefront/repo/memory"
	repopg "github.com/tendant/simple-storefront/pkg/storefront/repo/postgres"
	reposqlite "github.com/tendant/simple-storefront/pkg/storefront/repo/sqlite"
	fsstorage "github.com/tendant/simple-storefront/pkg/storefront/storage/fs"
	gcsstorage "github.com/tendant/simple-storefront/pkg/storefront/storage/gcs"
	memorystorage "github.com/tendant/simple-storefront/pkg/storefront/storage/memory"
	s3storage "github.com/tendant/simple-storefront/pkg/storefront/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",
		DatabaseURL: "memory",
		StorageURL:  "memory://",
		S3: S3Config{
			Region:       "us-east-1",
			SSEAlgorithm: "AES256",
		},
		Auth: AuthConfig{
			Mode: "jwt",
		},
		UploadConcurrency: 4,
		GalleryCategories: append([]string(nil), storefront.DefaultGalleryCategories...),
		ProductCategories: append([]string(nil), storefront.DefaultProductCategories...),
		EnableMetrics:     true,
		ShutdownTimeout:   15 * time.Second,
	}
}

// ServerConfig represents configuration for the storefront service and its binaries.
// Field tags drive both WithEnv and WithFile.
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT"`
	Environment string `yaml:"environment" env:"ENVIRONMENT"` // development, production, testing
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`

	// DatabaseURL selects the metadata store:
	// memory, postgres://..., sqlite://<path> or file:<dsn>, firestore://<project>
	DatabaseURL     string `yaml:"database_url" env:"DATABASE_URL"`
	DBSchema        string `yaml:"db_schema" env:"DB_SCHEMA"` // Postgres search_path
	DBAutoMigrate   bool   `yaml:"db_auto_migrate" env:"DB_AUTO_MIGRATE"`
	FirestorePrefix string `yaml:"firestore_prefix" env:"FIRESTORE_COLLECTION_PREFIX"`

	// StorageURL selects the blob store: memory://, file:///dir, s3://bucket, gs://bucket
	StorageURL       string    `yaml:"storage_url" env:"STORAGE_URL"`
	StorageURLPrefix string    `yaml:"storage_url_prefix" env:"STORAGE_URL_PREFIX"` // public prefix for file://
	S3               S3Config  `yaml:"s3"`
	GCS              GCSConfig `yaml:"gcs"`

	// CredentialsFile is shared by the Google clients; empty uses application default credentials.
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`

	Auth AuthConfig `yaml:"auth"`

	UploadConcurrency  int      `yaml:"upload_concurrency" env:"UPLOAD_CONCURRENCY"`
	ClearCartOnSignOut bool     `yaml:"clear_cart_on_sign_out" env:"CLEAR_CART_ON_SIGN_OUT"`
	GalleryCategories  []string `yaml:"gallery_categories" env:"GALLERY_CATEGORIES"`
	ProductCategories  []string `yaml:"product_categories" env:"PRODUCT_CATEGORIES"`

	EnableMetrics   bool          `yaml:"enable_metrics" env:"ENABLE_METRICS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// S3Config holds the s3:// storage settings the URL does not carry.
type S3Config struct {
	Region          string `yaml:"region" env:"S3_REGION,AWS_REGION"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID,AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY,AWS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE"`
	PublicBaseURL   string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	EnableSSE       bool   `yaml:"enable_sse" env:"S3_ENABLE_SSE"`
	SSEAlgorithm    string `yaml:"sse_algorithm" env:"S3_SSE_ALGORITHM"`
	SSEKMSKeyID     string `yaml:"sse_kms_key_id" env:"S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `yaml:"create_bucket" env:"S3_CREATE_BUCKET_IF_NOT_EXIST"`
}

// GCSConfig holds the gs:// storage settings the URL does not carry.
type GCSConfig struct {
	PublicBaseURL string `yaml:"public_base_url" env:"GCS_PUBLIC_BASE_URL"`
	CacheControl  string `yaml:"cache_control" env:"GCS_CACHE_CONTROL"`
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode              string `yaml:"mode" env:"AUTH_MODE"` // firebase or jwt
	Secret            string `yaml:"secret" env:"AUTH_SECRET"`
	FirebaseProjectID string `yaml:"firebase_project_id" env:"FIREBASE_PROJECT_ID"`
}

// DevelopmentSecret signs jwt tokens outside production when AUTH_SECRET is unset.
const DevelopmentSecret = "storefront-development-secret"

// Database kinds
const (
	DatabaseMemory    = "memory"
	DatabasePostgres  = "postgres"
	DatabaseSQLite    = "sqlite"
	DatabaseFirestore = "firestore"
)

// Storage kinds
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
	StorageGCS    = "gcs"
)

// DatabaseTarget is a parsed DATABASE_URL.
type DatabaseTarget struct {
	Kind string
	// DSN is the connection string for postgres and sqlite, the project for firestore.
	DSN string
}

// ParseDatabaseURL recognises the supported metadata store URLs.
func ParseDatabaseURL(raw string) (DatabaseTarget, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return DatabaseTarget{Kind: DatabaseMemory}, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DatabaseTarget{Kind: DatabasePostgres, DSN: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return DatabaseTarget{}, errors.New("sqlite path cannot be empty in DATABASE_URL")
		}
		return DatabaseTarget{Kind: DatabaseSQLite, DSN: path}, nil
	case strings.HasPrefix(raw, "file:"):
		return DatabaseTarget{Kind: DatabaseSQLite, DSN: raw}, nil
	case strings.HasPrefix(raw, "firestore://"):
		project := strings.Trim(strings.TrimPrefix(raw, "firestore://"), "/")
		if project == "" {
			return DatabaseTarget{}, errors.New("firestore project cannot be empty in DATABASE_URL")
		}
		return DatabaseTarget{Kind: DatabaseFirestore, DSN: project}, nil
	}
	return DatabaseTarget{}, fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...', 'sqlite://...' or 'firestore://<project>')", raw)
}

// StorageTarget is a parsed STORAGE_URL.
type StorageTarget struct {
	Kind string
	// Location is the base directory for fs and the bucket for s3 and gcs.
	Location string
	Query    url.Values
}

// ParseStorageURL recognises the supported blob store URLs.
func ParseStorageURL(raw string) (StorageTarget, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return StorageTarget{Kind: StorageMemory}, nil
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return StorageTarget{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageTarget{Kind: StorageFS, Location: path}, nil
	case strings.HasPrefix(raw, "s3://"), strings.HasPrefix(raw, "gs://"):
		u, err := url.Parse(raw)
		if err != nil {
			return StorageTarget{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return StorageTarget{}, fmt.Errorf("bucket name cannot be empty in STORAGE_URL")
		}
		kind := StorageS3
		if u.Scheme == "gs" {
			kind = StorageGCS
		}
		return StorageTarget{Kind: kind, Location: u.Host, Query: u.Query()}, nil
	}
	return StorageTarget{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'gs://...')", raw)
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Environment {
	case "development", "production", "testing":
	default:
		return fmt.Errorf("environment must be development, production or testing, got %q", c.Environment)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if _, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}

	storage, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return err
	}
	if storage.Kind == StorageS3 && c.S3.EnableSSE && c.S3.SSEAlgorithm != "AES256" && c.S3.SSEAlgorithm != "aws:kms" {
		return fmt.Errorf("s3 sse_algorithm must be AES256 or aws:kms, got %q", c.S3.SSEAlgorithm)
	}

	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.Secret == "" && c.Environment == "production" {
			return errors.New("auth secret is required when auth mode is jwt in production")
		}
	case "firebase":
		if c.Auth.FirebaseProjectID == "" {
			return errors.New("firebase project id is required when auth mode is firebase")
		}
	default:
		return fmt.Errorf("auth mode must be 'firebase' or 'jwt', got %q", c.Auth.Mode)
	}

	if c.UploadConcurrency < 1 {
		return fmt.Errorf("upload concurrency must be positive, got %d", c.UploadConcurrency)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	return nil
}

// Logger builds the logger described by Environment and LogLevel.
func (c *ServerConfig) Logger(w io.Writer) *slog.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.New(w, c.Environment, level)
}

// Runtime holds the service built from a ServerConfig together with the
// resources it owns.
type Runtime struct {
	Service    storefront.Service
	Repository storefront.Repository
	BlobStore  storefront.BlobStore
	// Registry is nil when metrics are disabled.
	Registry *prometheus.Registry

	closers []func() error
}

// Close releases clients and pools in reverse order of creation.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Build wires the repository, blob store and event sinks into a Service.
// extra options are applied last.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, extra ...storefront.Option) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	repo, err := c.buildRepository(ctx, rt)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo

	store, err := c.buildBlobStore(ctx, rt)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}
	rt.BlobStore = store

	sinks := storefront.MultiEventSink{storefront.NewLoggingEventSink(logger)}
	if c.EnableMetrics {
		rt.Registry = prometheus.NewRegistry()
		rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		sink, err := metrics.New(rt.Registry)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		sinks = append(sinks, sink)
	}

	options := []storefront.Option{
		storefront.WithRepository(repo),
		storefront.WithBlobStore(store),
		storefront.WithEventSink(sinks),
		storefront.WithLogger(logger),
		storefront.WithUploadConcurrency(c.UploadConcurrency),
		storefront.WithGalleryCategories(c.GalleryCategories...),
		storefront.WithProductCategories(c.ProductCategories...),
		storefront.WithClearCartOnSignOut(c.ClearCartOnSignOut),
	}
	options = append(options, extra...)

	svc, err := storefront.New(options...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// BuildVerifier returns the token verifier selected by Auth.Mode.
func (c *ServerConfig) BuildVerifier(ctx context.Context, users auth.RoleLookup) (auth.Verifier, error) {
	switch c.Auth.Mode {
	case "jwt":
		secret := c.Auth.Secret
		if secret == "" {
			secret = DevelopmentSecret
		}
		return auth.NewJWTVerifier([]byte(secret), users)
	case "firebase":
		return auth.NewFirebaseVerifier(ctx, c.Auth.FirebaseProjectID, c.CredentialsFile, users)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", c.Auth.Mode)
	}
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (storefront.Repository, error) {
	target, err := ParseDatabaseURL(c.DatabaseURL)
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case DatabaseMemory:
		return memory.New(), nil

	case DatabasePostgres:
		pool, err := c.newPostgresPool(ctx, target.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		repo := repopg.NewWithPool(pool)
		if c.DBAutoMigrate {
			if err := repo.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil

	case DatabaseSQLite:
		repo, err := reposqlite.Open(target.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		return repo, nil

	case DatabaseFirestore:
		var opts []repofs.Option
		if c.FirestorePrefix != "" {
			opts = append(opts, repofs.WithCollectionPrefix(c.FirestorePrefix))
		}
		repo, err := repofs.Dial(ctx, target.DSN, c.CredentialsFile, opts...)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		return repo, nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", target.Kind)
}

func (c *ServerConfig) newPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	// Optionally set search_path for the connection
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// buildBlobStore creates a BlobStore based on the configuration
func (c *ServerConfig) buildBlobStore(ctx context.Context, rt *Runtime) (storefront.BlobStore, error) {
	target, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir:   target.Location,
			URLPrefix: c.StorageURLPrefix,
		})

	case StorageS3:
		s3cfg := s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 target.Location,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PublicBaseURL:          c.S3.PublicBaseURL,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		}
		// URL query parameters win over the S3_* settings.
		if v := target.Query.Get("region"); v != "" {
			s3cfg.Region = v
		}
		if v := target.Query.Get("endpoint"); v != "" {
			s3cfg.Endpoint = v
		}
		if v := target.Query.Get("path_style"); v != "" {
			s3cfg.UsePathStyle = v == "true" || v == "1"
		}
		return s3storage.New(s3cfg)

	case StorageGCS:
		backend, err := gcsstorage.New(ctx, gcsstorage.Config{
			Bucket:          target.Location,
			PublicBaseURL:   c.GCS.PublicBaseURL,
			CacheControl:    c.GCS.CacheControl,
			CredentialsFile: c.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, backend.Close)
		return backend, nil
	}
	return nil, fmt.Errorf("unsupported storage backend type: %s", target.Kind)
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	target, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return err
	}
	if target.Kind != DatabasePostgres {
		return fmt.Errorf("not a postgres url: %s", databaseURL)
	}
	c := &ServerConfig{DBSchema: schema}
	pool, err := c.newPostgresPool(ctx, target.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
