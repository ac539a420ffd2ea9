package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/itszainshop-byte/zain/internal/dispatch"
	"github.com/itszainshop-byte/zain/internal/platform/config"
	"github.com/itszainshop-byte/zain/internal/repositories"
	"github.com/itszainshop-byte/zain/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Delivery  services.DeliveryService
	Companies services.CompanyService
	System    services.SystemService
}

// Deps carries the infrastructure handed to the container from main: the
// event publisher, the application logger, and build metadata.
type Deps struct {
	Events services.DeliveryEventPublisher
	Logger *zap.Logger
	Build  services.BuildInfo
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(ctx context.Context, reg repositories.Registry, cfg config.Config, deps Deps) (Services, error) {
	var svc Services
	if reg == nil {
		return svc, nil
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	providerClient := &http.Client{Timeout: cfg.Dispatch.RequestTimeout}
	sender := dispatch.NewSender(dispatch.SenderConfig{
		HTTPClient: providerClient,
		Logger:     zapEventLogger(logger.Named("dispatch")),
	})

	ordersRepo := reg.Orders()
	companiesRepo := reg.Companies()
	if ordersRepo == nil || companiesRepo == nil {
		return Services{}, errors.New("order and company repositories are required")
	}

	deliverySvc, err := services.NewDeliveryService(services.DeliveryServiceDeps{
		Orders:     ordersRepo,
		Companies:  companiesRepo,
		Sender:     sender,
		ParamEnv:   cfg.Dispatch.ParamEnv,
		HTTPClient: providerClient,
		Events:     deps.Events,
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("delivery")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build delivery service: %w", err)
	}
	svc.Delivery = deliverySvc

	companySvc, err := services.NewCompanyService(services.CompanyServiceDeps{
		Companies: companiesRepo,
		ParamEnv:  cfg.Dispatch.ParamEnv,
		Clock:     time.Now,
		Logger:    zapEventLogger(logger.Named("companies")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build company service: %w", err)
	}
	svc.Companies = companySvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = time.Now().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// zapEventLogger adapts a zap logger to the event/fields callback the service
// and dispatch layers expect.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
