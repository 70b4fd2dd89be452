package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"golang.org/x/sync/errgroup"

	"geosnap-service/internal/audit"
	"geosnap-service/internal/bucketing"
	"geosnap-service/internal/client"
	"geosnap-service/internal/config"
	"geosnap-service/internal/encryption"
	"geosnap-service/internal/identity"
	"geosnap-service/internal/model"
	redisrepo "geosnap-service/internal/repository/redis"
	"geosnap-service/internal/repository/scylla"
	"geosnap-service/internal/service"
	"geosnap-service/internal/tls"
	"geosnap-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	resendClient     *client.ResendClient
	geocodeClient    *client.GeocodeClient

	// Managers
	encryptionManager *encryption.Manager
	stripeManager     *bucketing.StripeManager
	recorder          *audit.Recorder
	identityProvider  identity.Provider

	// Repositories
	otpRepository  *scylla.OTPRepository
	rateLimitCache *redisrepo.RateLimitCache
	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewManager(cfg.Server)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("kafka_enabled", factory.kafkaProducer != nil),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health
// checks. Redis, Scylla, the email transport and the identity provider are
// required in production; the audit sinks degrade to warnings everywhere.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB
	if scyllaClient, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else {
		f.scyllaClient = scyllaClient
		if err := f.scyllaClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
		} else {
			util.Info("ScyllaDB client initialized and healthy")
		}
	}

	// Resend email transport
	if resendClient, err := client.NewResendClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("email transport: %w", err))
	} else {
		f.resendClient = resendClient
		util.Info("Email transport initialized")
	}

	// Kafka
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	// Elasticsearch
	if f.config.Elasticsearch.Enabled {
		if esClient, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
			util.Warn("Elasticsearch initialization failed - proceeding without audit indexing", util.ErrorField(err))
		} else {
			f.esClient = esClient
			if err := f.esClient.HealthCheck(); err != nil {
				util.Warn("Elasticsearch health check failed", util.ErrorField(err))
			} else {
				util.Info("Elasticsearch client initialized and healthy")
			}
		}
	}

	// ClickHouse
	if f.config.Clickhouse.Enabled {
		if chClient, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
			util.Warn("ClickHouse initialization failed - proceeding without verdict analytics", util.ErrorField(err))
		} else {
			f.clickhouseClient = chClient
			if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
				util.Warn("ClickHouse health check failed", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client initialized and healthy")
			}
		}
	}

	// Reverse geocoder
	if f.config.Geocoder.Enabled {
		f.geocodeClient = client.NewGeocodeClient(f.config, util.Get())
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes encryption, bucketing and the audit recorder
func (f *Factory) initializeManagers() {
	var keyService encryption.KeyService
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region),
		)
		if err != nil {
			util.Warn("AWS config load failed - audit PII encryption disabled", util.ErrorField(err))
		} else {
			keyService = kms.NewFromConfig(awsCfg)
		}
	}

	f.encryptionManager = encryption.NewManager(f.config, keyService)
	f.stripeManager = bucketing.NewStripeManager(f.config)
	f.identityProvider = identity.NewGoTrueProvider(f.config, util.Get())

	// Sinks may be nil; the recorder treats each one as optional.
	var publisher audit.EventPublisher
	if f.kafkaProducer != nil {
		publisher = f.kafkaProducer
	}
	var indexer audit.DocumentIndexer
	if f.esClient != nil {
		indexer = f.esClient
	}
	var analytics audit.AnalyticsSink
	if f.clickhouseClient != nil {
		analytics = f.clickhouseClient
	}
	f.recorder = audit.NewRecorder(publisher, indexer, analytics, f.encryptionManager, f.config.Elasticsearch.Index)

	util.Info("Managers initialized successfully",
		util.Bool("encryption_initialized", f.encryptionManager != nil),
		util.Bool("bucketing_initialized", f.stripeManager != nil),
		util.Bool("recorder_initialized", f.recorder != nil),
	)
}

// ==============================
// Repository Initialization
// ==============================

func (f *Factory) OTPRepository() *scylla.OTPRepository {
	if f.otpRepository == nil {
		f.otpRepository = scylla.NewOTPRepository(f.scyllaClient, util.Get())
	}
	return f.otpRepository
}

func (f *Factory) RateLimitCache() *redisrepo.RateLimitCache {
	if f.rateLimitCache == nil {
		f.rateLimitCache = redisrepo.NewRateLimitCache(f.redisClient)
	}
	return f.rateLimitCache
}

// ==============================
// Service Factory
// ==============================

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		var geocoder service.ReverseGeocoder
		if f.geocodeClient != nil {
			geocoder = f.geocodeClient
		}
		var transport model.EmailTransport
		if f.resendClient != nil {
			transport = f.resendClient
		}
		f.serviceFactory = service.NewServiceFactory(
			f.OTPRepository(),
			f.RateLimitCache(),
			transport,
			f.identityProvider,
			f.recorder,
			f.stripeManager,
			geocoder,
			f.config.OTP,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// ==============================
// Health Checks
// ==============================

// HealthCheck probes the required backends in parallel.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	var mu sync.Mutex
	healthErrors := make(map[string]error)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		healthErrors[name] = err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if f.redisClient == nil {
			record("redis", fmt.Errorf("redis client not initialized"))
		} else if err := f.redisClient.HealthCheck(gctx); err != nil {
			record("redis", err)
		}
		return nil
	})

	g.Go(func() error {
		if f.scyllaClient == nil {
			record("scylla", fmt.Errorf("scylla client not initialized"))
		} else if err := f.scyllaClient.HealthCheck(); err != nil {
			record("scylla", err)
		}
		return nil
	})

	g.Go(func() error {
		if f.esClient != nil {
			if err := f.esClient.HealthCheck(); err != nil {
				record("elasticsearch", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.HealthCheck(gctx); err != nil {
				record("clickhouse", err)
			}
		}
		return nil
	})

	g.Wait()

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	return len(f.HealthCheck(ctx)) == 0
}

// ==============================
// Shutdown
// ==============================

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

// ==============================
// Getters
// ==============================

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}

func (f *Factory) Recorder() *audit.Recorder {
	return f.recorder
}

func (f *Factory) EncryptionManager() *encryption.Manager {
	return f.encryptionManager
}

func (f *Factory) StripeManager() *bucketing.StripeManager {
	return f.stripeManager
}
