// Package container wires the flowd server's services once at startup
package container

import (
	"fmt"

	"github.com/lyzr/flowd/auth"
	"github.com/lyzr/flowd/common/bootstrap"
	"github.com/lyzr/flowd/events"
	"github.com/lyzr/flowd/executor"
	"github.com/lyzr/flowd/nodes"
	"github.com/lyzr/flowd/registry"
	"github.com/lyzr/flowd/repository"
	"github.com/lyzr/flowd/secrets"
	"github.com/lyzr/flowd/service"
)

// Container holds all initialized services (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	Store    repository.Store
	Registry *registry.Registry
	Engine   *executor.Engine

	Workflows *service.WorkflowService
}

// NewContainer initializes repositories, the node registry, the engine
// and the management services
func NewContainer(components *bootstrap.Components) (*Container, error) {
	store := repository.NewPostgres(components.DB, components.Logger)

	reg := registry.New()
	nodes.RegisterBuiltins(reg, nodes.Options{Logger: components.Logger})

	var encryptor *secrets.Encryptor
	if key := components.Config.Secrets.EncryptionKey; key != "" {
		var err error
		encryptor, err = secrets.NewEncryptor(key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize credential encryption: %w", err)
		}
	}

	var publisher events.Publisher = events.Noop{}
	var cache *service.DefinitionCache
	if components.Redis != nil {
		publisher = events.NewRedisPublisher(components.Redis, components.Logger)
		cache = service.NewDefinitionCache(components.Redis, components.Config.Redis.CacheTTL, components.Logger)
	}

	engine := executor.New(executor.Options{
		Store:     store,
		Registry:  reg,
		Logger:    components.Logger,
		Events:    publisher,
		Auth:      auth.NewStoreAuthorizer(store),
		Encryptor: encryptor,
		Config:    components.Config.Engine,
	})

	workflows := service.NewWorkflowService(store, engine, cache, encryptor, components.Logger)

	return &Container{
		Components: components,
		Store:      store,
		Registry:   reg,
		Engine:     engine,
		Workflows:  workflows,
	}, nil
}
