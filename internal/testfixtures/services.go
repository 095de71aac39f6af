package testfixtures

import (
	"log/slog"
	"time"

	"github.com/Cefalo/quick-meet/internal/application"
	"github.com/Cefalo/quick-meet/internal/calendar"
	"github.com/Cefalo/quick-meet/internal/catalog"
)

// ServiceFactory assists tests with constructing application services over a
// shared provider, catalog and clock.
type ServiceFactory struct {
	Clock    *Clock
	Provider *FakeProvider
	Logger   *slog.Logger

	catalog *catalog.Catalog
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory whose provider serves the
// demo rooms.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:    NewClock(time.Time{}),
		Provider: NewFakeProvider(DemoRooms()...),
		Logger:   DiscardLogger(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.Provider == nil {
		factory.Provider = NewFakeProvider()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithProvider overrides the calendar provider used by the factory.
func WithProvider(provider *FakeProvider) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Provider = provider
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Catalog returns the room catalog backed by the factory provider. Every
// service built by the factory shares it.
func (f *ServiceFactory) Catalog() *catalog.Catalog {
	if f.catalog == nil {
		f.catalog = catalog.New(f.Provider, catalog.NewMemoryStore(0, f.Clock.Now), catalog.Options{
			Now:    f.Clock.Now,
			Logger: f.Logger,
		})
	}
	return f.catalog
}

// NewRescheduleValidator builds a validator querying the factory provider.
func (f *ServiceFactory) NewRescheduleValidator() *application.RescheduleValidator {
	return application.NewRescheduleValidator(f.Provider, f.Logger)
}

// NewAvailabilityService builds the availability flow.
func (f *ServiceFactory) NewAvailabilityService() *application.AvailabilityService {
	return application.NewAvailabilityService(f.Catalog(), f.Provider, f.NewRescheduleValidator(), f.Logger)
}

// NewBookingService builds the booking flow. A nil provider uses the
// factory provider.
func (f *ServiceFactory) NewBookingService(provider calendar.Provider) *application.BookingService {
	if provider == nil {
		provider = f.Provider
	}
	return application.NewBookingService(f.Catalog(), provider, application.NewRescheduleValidator(provider, f.Logger), f.Clock.Now, f.Logger)
}

// NewRoomService builds the room listing flow.
func (f *ServiceFactory) NewRoomService() *application.RoomService {
	return application.NewRoomService(f.Catalog(), f.Logger)
}
