//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"localcloud/infrastructure/config"
)

// providerSet lists every constructor the container is built from.
var providerSet = wire.NewSet(
	ProvideLogging,
	ProvideMetrics,
	ProvideCredentials,
	ProvideBodyStore,
	ProvideObjectStore,
	ProvideTableEngine,
	ProvideServices,
	ProvideGateway,
	ProvideServer,
	ProvideWatcher,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer assembles the container from configuration.
func InitializeContainer(cfg *config.Config) (*Container, error) {
	wire.Build(providerSet)
	return nil, nil
}
