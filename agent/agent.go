package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatflow/chatflow/classify"
	"github.com/chatflow/chatflow/config"
	"github.com/chatflow/chatflow/executor"
	"github.com/chatflow/chatflow/flow"
	"github.com/chatflow/chatflow/gateway"
	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/metadata"
	"github.com/chatflow/chatflow/persistence"
	"github.com/chatflow/chatflow/persistence/inmem"
	redisstore "github.com/chatflow/chatflow/persistence/redis"
	sqlitestore "github.com/chatflow/chatflow/persistence/sqlite"
	"github.com/chatflow/chatflow/rest"
)

// Agent wires the whole system together: stores, executor registry,
// classifier, engine, gateway and the http server.
type Agent struct {
	Config            config.Config
	runStore          persistence.FlowRunStore
	sessionStore      persistence.SessionStore
	definitionStorage persistence.DefinitionStore
	trainingQueue     persistence.TrainingQueue
	registry          *executor.Registry
	definitions       *metadata.Service
	classifier        *classify.Classifier
	modelClient       *classify.ModelClient
	sampler           *classify.TrainingSampler
	engine            *flow.Engine
	gateway           *gateway.Gateway
	httpServer        *rest.Server
	shutdown          bool
	shutdowns         chan struct{}
	shutdownLock      sync.Mutex
	wg                sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config:    conf,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupStores,
		a.setupRegistry,
		a.setupDefinitionService,
		a.setupClassifier,
		a.setupEngine,
		a.setupGateway,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStores() error {
	redisConf := redisstore.Config{
		Addrs:     a.Config.RedisConfig.Addrs,
		Namespace: a.Config.RedisConfig.Namespace,
	}
	var definitionStore persistence.DefinitionStore
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.runStore = redisstore.NewRedisRunStore(redisConf)
		definitionStore = redisstore.NewRedisDefinitionStore(redisConf)
		a.trainingQueue = redisstore.NewRedisTrainingQueue(redisConf)
	case config.STORAGE_TYPE_SQLITE:
		db, err := sqlitestore.Open(a.Config.SqliteConfig.Path)
		if err != nil {
			return err
		}
		a.runStore = sqlitestore.NewSqliteRunStore(db)
		definitionStore = sqlitestore.NewSqliteDefinitionStore(db)
		a.trainingQueue = inmem.NewTrainingQueue()
	case config.STORAGE_TYPE_INMEM:
		a.runStore = inmem.NewRunStore()
		definitionStore = inmem.NewDefinitionStore()
		a.trainingQueue = inmem.NewTrainingQueue()
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	a.definitionStorage = definitionStore

	switch a.Config.SessionStoreType {
	case config.SESSION_STORE_REDIS:
		a.sessionStore = redisstore.NewRedisSessionStore(redisConf, a.Config.SessionTTL)
	case config.SESSION_STORE_INMEM:
		a.sessionStore = inmem.NewSessionStore(a.Config.SessionTTL)
	default:
		return fmt.Errorf("unknown session store type %s", a.Config.SessionStoreType)
	}
	return nil
}

func (a *Agent) setupRegistry() error {
	a.registry = executor.NewBuiltinRegistry()
	return nil
}

// Registry exposes the executor registry so business executors can be
// registered before Start.
func (a *Agent) Registry() *executor.Registry {
	return a.registry
}

func (a *Agent) setupDefinitionService() error {
	a.definitions = metadata.NewService(a.definitionStorage, a.registry)
	return nil
}

func (a *Agent) setupClassifier() error {
	clConf := a.Config.Classifier
	var modelTierClient *classify.ModelClient
	if clConf.PrimaryURL != "" || clConf.SecondaryURL != "" {
		modelTierClient = classify.NewModelClient(clConf.PrimaryURL, clConf.SecondaryURL, clConf.RequestTimeout)
		modelTierClient.StartHealthProbe(clConf.HealthCheckInterval, a.shutdowns, &a.wg)
	}
	a.modelClient = modelTierClient

	var generative *classify.GenerativeClassifier
	if clConf.Generative.APIKey != "" {
		generative = classify.NewGenerativeClassifier(clConf.Generative)
	}

	sampler, err := classify.NewTrainingSampler(clConf.Sampler, a.trainingQueue, &a.wg)
	if err != nil {
		return err
	}
	a.sampler = sampler

	// nil interface values must stay nil for the cascade's tier checks
	if modelTierClient != nil && generative != nil {
		a.classifier = classify.NewClassifier(modelTierClient, generative, sampler, clConf.ConfidenceThreshold)
	} else if modelTierClient != nil {
		a.classifier = classify.NewClassifier(modelTierClient, nil, sampler, clConf.ConfidenceThreshold)
	} else if generative != nil {
		a.classifier = classify.NewClassifier(nil, generative, sampler, clConf.ConfidenceThreshold)
	} else {
		a.classifier = classify.NewClassifier(nil, nil, sampler, clConf.ConfidenceThreshold)
	}
	return nil
}

func (a *Agent) setupEngine() error {
	a.engine = flow.NewEngine(a.registry, a.Config.Engine.MaxIterations)
	return nil
}

func (a *Agent) setupGateway() error {
	a.gateway = gateway.New(a.runStore, a.sessionStore, a.definitions, a.classifier, a.engine,
		a.Config.Gateway.DedupWindow, a.Config.Gateway.InterruptThreshold)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.definitions, a.gateway, a.runStore)
	return err
}

func (a *Agent) Start() error {
	if a.Config.FlowDir != "" {
		if _, err := a.definitions.LoadSeedDir(context.Background(), a.Config.FlowDir); err != nil {
			return err
		}
	}
	go func() {
		err := a.httpServer.Start()
		if err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.sampler.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
