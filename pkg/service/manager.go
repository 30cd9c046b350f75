package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/veiloq/exchange-service/pkg/config"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// connectable is the lifecycle slice every venue service shares.
type connectable interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
}

// serviceFactory is the slice of Factory the manager needs; tests substitute
// a stub.
type serviceFactory interface {
	EnabledVenues() []Venue
	SpotService(venue Venue) (exchange.SpotService, error)
	FuturesService(venue Venue) (exchange.FuturesService, error)
	StreamService(venue Venue) (exchange.StreamService, error)
}

// Manager connects and tracks venue services. Failures stay isolated: one
// venue failing to connect never blocks the others.
type Manager struct {
	factory  serviceFactory
	features config.FeaturesConfig
	logger   logging.Logger

	mu       sync.RWMutex
	services map[string]connectable
}

// NewManager creates a connection manager over a service factory.
func NewManager(factory *Factory, cfg *config.Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Manager{
		factory:  factory,
		features: cfg.Features,
		logger:   logger,
		services: make(map[string]connectable),
	}
}

func serviceKey(venue Venue, capability Capability) string {
	return fmt.Sprintf("%s_%s", venue, capability)
}

// ConnectAll builds and connects every enabled venue and capability pair.
// The result maps "{venue}_{capability}" to the connection outcome; only
// successfully connected services are registered for lookup.
func (m *Manager) ConnectAll(ctx context.Context) map[string]bool {
	results := make(map[string]bool)

	for _, venue := range m.factory.EnabledVenues() {
		if m.features.SpotTrading {
			m.connectOne(ctx, venue, CapabilitySpot, results, func() (connectable, error) {
				return m.factory.SpotService(venue)
			})
		}
		if m.features.FuturesTrading {
			m.connectOne(ctx, venue, CapabilityFutures, results, func() (connectable, error) {
				return m.factory.FuturesService(venue)
			})
		}
		if m.features.Websocket {
			m.connectOne(ctx, venue, CapabilityStream, results, func() (connectable, error) {
				return m.factory.StreamService(venue)
			})
		}
	}
	return results
}

func (m *Manager) connectOne(ctx context.Context, venue Venue, capability Capability, results map[string]bool, build func() (connectable, error)) {
	key := serviceKey(venue, capability)

	svc, err := build()
	if err != nil {
		m.logger.Error("service construction failed",
			logging.String("service", key),
			logging.Error(err),
		)
		results[key] = false
		return
	}

	if err := svc.Connect(ctx); err != nil {
		m.logger.Error("service connection failed",
			logging.String("service", key),
			logging.Error(err),
		)
		results[key] = false
		return
	}

	m.mu.Lock()
	m.services[key] = svc
	m.mu.Unlock()

	m.logger.Info("service connected", logging.String("service", key))
	results[key] = true
}

func (m *Manager) lookup(venue Venue, capability Capability) (connectable, error) {
	m.mu.RLock()
	svc, ok := m.services[serviceKey(venue, capability)]
	m.mu.RUnlock()
	if !ok {
		return nil, exchange.NewError(string(venue), exchange.ErrNotConnected, "",
			fmt.Sprintf("%s service is not connected", capability), nil)
	}
	return svc, nil
}

// GetSpotService returns the connected spot service for a venue.
func (m *Manager) GetSpotService(venue Venue) (exchange.SpotService, error) {
	svc, err := m.lookup(venue, CapabilitySpot)
	if err != nil {
		return nil, err
	}
	return svc.(exchange.SpotService), nil
}

// GetFuturesService returns the connected futures service for a venue.
func (m *Manager) GetFuturesService(venue Venue) (exchange.FuturesService, error) {
	svc, err := m.lookup(venue, CapabilityFutures)
	if err != nil {
		return nil, err
	}
	return svc.(exchange.FuturesService), nil
}

// GetStreamService returns the connected stream service for a venue.
func (m *Manager) GetStreamService(venue Venue) (exchange.StreamService, error) {
	svc, err := m.lookup(venue, CapabilityStream)
	if err != nil {
		return nil, err
	}
	return svc.(exchange.StreamService), nil
}

// IsServiceConnected reports whether the given service is registered and
// still reports a live connection.
func (m *Manager) IsServiceConnected(venue Venue, capability Capability) bool {
	m.mu.RLock()
	svc, ok := m.services[serviceKey(venue, capability)]
	m.mu.RUnlock()
	return ok && svc.IsConnected()
}

// ConnectedServices lists the keys of every registered service.
func (m *Manager) ConnectedServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.services))
	for key := range m.services {
		keys = append(keys, key)
	}
	return keys
}

// DisconnectAll disconnects every registered service. Failures are logged
// and do not stop the remaining disconnects; the registry is cleared either
// way.
func (m *Manager) DisconnectAll(ctx context.Context) {
	m.mu.Lock()
	services := m.services
	m.services = make(map[string]connectable)
	m.mu.Unlock()

	for key, svc := range services {
		if err := svc.Disconnect(ctx); err != nil {
			m.logger.Error("service disconnect failed",
				logging.String("service", key),
				logging.Error(err),
			)
			continue
		}
		m.logger.Info("service disconnected", logging.String("service", key))
	}
}
