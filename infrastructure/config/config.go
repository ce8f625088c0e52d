package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Service names accepted in the SERVICES list.
const (
	ServiceS3       = "s3"
	ServiceDynamoDB = "dynamodb"
)

// Config holds all gateway configuration loaded from the environment.
type Config struct {
	// Gateway
	ListenAddress string
	Services      []string

	// S3
	S3SkipSignatureValidation bool
	S3VirtualHosting          bool
	S3Domain                  string
	S3MaxMemoryObjectSize     int64
	S3MinPartSize             int64

	// DynamoDB
	DynamoDBSkipSignatureValidation bool

	// Shared
	DefaultRegion string
	AccessKeyID   string
	SecretKey     string
	LogLevel      string

	// Recognized but not implemented; state stays process-lifetime only.
	Persistence bool

	// Optional JSON overrides file watched for runtime changes.
	OverridesFile string

	// Request body cap in bytes.
	MaxBodySize int64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddress: getEnv("GATEWAY_LISTEN", "0.0.0.0:4566"),
		Services:      parseServices(getEnv("SERVICES", "")),

		S3SkipSignatureValidation: getEnvBool("S3_SKIP_SIGNATURE_VALIDATION", true),
		S3VirtualHosting:          getEnvBool("S3_VIRTUAL_HOSTING", true),
		S3Domain:                  getEnv("S3_DOMAIN", "s3.localhost.localstack.cloud"),
		S3MaxMemoryObjectSize:     getEnvInt64("S3_MAX_MEMORY_OBJECT_SIZE", 524288),
		S3MinPartSize:             getEnvInt64("S3_MIN_PART_SIZE", 0),

		DynamoDBSkipSignatureValidation: getEnvBool("DYNAMODB_SKIP_SIGNATURE_VALIDATION", true),

		DefaultRegion: getEnv("DEFAULT_REGION", "us-east-1"),
		AccessKeyID:   getEnv("ACCESS_KEY", getEnv("AWS_ACCESS_KEY_ID", "")),
		SecretKey:     getEnv("SECRET_KEY", getEnv("AWS_SECRET_ACCESS_KEY", "")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		Persistence:   getEnvBool("PERSISTENCE", false),
		OverridesFile: getEnv("CONFIG_OVERRIDES_FILE", ""),
		MaxBodySize:   getEnvInt64("GATEWAY_MAX_BODY_SIZE", 5<<30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency before the server starts.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("invalid GATEWAY_LISTEN %q: %w", c.ListenAddress, err)
	}
	for _, service := range c.Services {
		if service != ServiceS3 && service != ServiceDynamoDB {
			return fmt.Errorf("unknown service %q in SERVICES", service)
		}
	}
	if c.S3MaxMemoryObjectSize < 0 {
		return fmt.Errorf("S3_MAX_MEMORY_OBJECT_SIZE must not be negative")
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("GATEWAY_MAX_BODY_SIZE must be positive")
	}
	return nil
}

// ServiceEnabled reports whether a service should be served. An empty
// SERVICES list enables everything compiled in.
func (c *Config) ServiceEnabled(name string) bool {
	if len(c.Services) == 0 {
		return true
	}
	for _, service := range c.Services {
		if service == name {
			return true
		}
	}
	return false
}

// Credentials returns the static credential pair, if configured.
func (c *Config) Credentials() map[string]string {
	if c.AccessKeyID == "" {
		return map[string]string{}
	}
	return map[string]string{c.AccessKeyID: c.SecretKey}
}

func parseServices(raw string) []string {
	if raw == "" {
		return nil
	}
	var services []string
	for _, piece := range strings.Split(raw, ",") {
		piece = strings.ToLower(strings.TrimSpace(piece))
		if piece != "" {
			services = append(services, piece)
		}
	}
	return services
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an integer environment variable with a fallback default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
