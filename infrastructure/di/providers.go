// Package di assembles the service container. wire_gen.go is the generated
// composition of the providers in this file.
package di

import (
	"go.uber.org/zap"

	"localcloud/infrastructure/config"
	"localcloud/infrastructure/persistence/bodystore"
	"localcloud/infrastructure/persistence/memory"
	"localcloud/interfaces/http/dynamodbapi"
	"localcloud/interfaces/http/gateway"
	"localcloud/interfaces/http/s3api"
	"localcloud/pkg/auth"
	"localcloud/pkg/observability"
)

// Container holds every long-lived dependency of the gateway process.
type Container struct {
	Config      *config.Config
	Logging     *Logging
	Metrics     *observability.Collector
	Credentials *auth.StaticCredentials
	BodyStore   *bodystore.Store
	ObjectStore *memory.ObjectStore
	TableEngine *memory.TableEngine
	Gateway     *gateway.Gateway
	Server      *gateway.Server
	Watcher     *config.Watcher
}

// Logging bundles the logger with its runtime-adjustable level.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// ProvideLogging builds the process logger from LOG_LEVEL.
func ProvideLogging(cfg *config.Config) (*Logging, error) {
	logger, level, err := observability.NewLogger(cfg.LogLevel, false)
	if err != nil {
		return nil, err
	}
	return &Logging{Logger: logger, Level: level}, nil
}

// ProvideMetrics builds the Prometheus collector.
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("localcloud")
}

// ProvideCredentials loads the static credential pair.
func ProvideCredentials(cfg *config.Config) *auth.StaticCredentials {
	return auth.NewStaticCredentials(cfg.Credentials())
}

// ProvideBodyStore builds the spill-backed body storage.
func ProvideBodyStore(cfg *config.Config, logging *Logging, metrics *observability.Collector) (*bodystore.Store, error) {
	return bodystore.New(cfg.S3MaxMemoryObjectSize, "", logging.Logger, metrics)
}

// ProvideObjectStore builds the S3 engine.
func ProvideObjectStore(cfg *config.Config, bodies *bodystore.Store, logging *Logging, metrics *observability.Collector) *memory.ObjectStore {
	return memory.NewObjectStore(bodies, cfg.DefaultRegion, cfg.S3MinPartSize, logging.Logger, metrics)
}

// ProvideTableEngine builds the DynamoDB engine.
func ProvideTableEngine(cfg *config.Config, logging *Logging, metrics *observability.Collector) *memory.TableEngine {
	return memory.NewTableEngine("000000000000", cfg.DefaultRegion, logging.Logger, metrics)
}

// ProvideServices builds the enabled service front-ends in dispatch order:
// DynamoDB matches on its target header, S3 is the catch-all.
func ProvideServices(
	cfg *config.Config,
	objectStore *memory.ObjectStore,
	tableEngine *memory.TableEngine,
	credentials *auth.StaticCredentials,
	logging *Logging,
) []gateway.ServiceHandler {
	var services []gateway.ServiceHandler

	if cfg.ServiceEnabled(config.ServiceDynamoDB) {
		verifier := auth.NewVerifier(credentials, cfg.DynamoDBSkipSignatureValidation, logging.Logger)
		services = append(services, dynamodbapi.NewService(tableEngine, verifier, logging.Logger))
	}
	if cfg.ServiceEnabled(config.ServiceS3) {
		verifier := auth.NewVerifier(credentials, cfg.S3SkipSignatureValidation, logging.Logger)
		services = append(services, s3api.NewService(objectStore, verifier, s3api.Options{
			VirtualHosting: cfg.S3VirtualHosting,
			Domain:         cfg.S3Domain,
			Region:         cfg.DefaultRegion,
			MaxBodySize:    cfg.MaxBodySize,
		}, logging.Logger))
	}
	return services
}

// ProvideGateway assembles the gateway over the services.
func ProvideGateway(cfg *config.Config, services []gateway.ServiceHandler, logging *Logging, metrics *observability.Collector) *gateway.Gateway {
	return gateway.New(services, cfg.MaxBodySize, logging.Logger, metrics)
}

// ProvideServer builds the HTTP server front.
func ProvideServer(cfg *config.Config, gw *gateway.Gateway, logging *Logging) *gateway.Server {
	return gateway.NewServer(cfg.ListenAddress, gw.Handler(), logging.Logger)
}

// ProvideWatcher starts the optional overrides watcher, hot-reloading the
// log level and the credential pair. Returns nil when no file is configured.
func ProvideWatcher(cfg *config.Config, logging *Logging, credentials *auth.StaticCredentials) (*config.Watcher, error) {
	if cfg.OverridesFile == "" {
		return nil, nil
	}
	watcher, err := config.NewWatcher(cfg.OverridesFile, logging.Logger)
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(overrides *config.Overrides) {
		if overrides.LogLevel != "" {
			if level, err := observability.ParseLevel(overrides.LogLevel); err == nil {
				logging.Level.SetLevel(level.Level())
			}
		}
		if len(overrides.Credentials) > 0 {
			credentials.Replace(overrides.Credentials)
		}
	})
	return watcher, nil
}
