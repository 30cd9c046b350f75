// Package service wires venue adapters behind a factory and a connection
// manager. The factory hands out lazily built, cached services per venue and
// capability; the manager owns their connection lifecycle.
package service

import (
	"fmt"
	"sync"

	"github.com/veiloq/exchange-service/pkg/config"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/exchanges/aster"
	"github.com/veiloq/exchange-service/pkg/exchanges/hyperliquid"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// Venue identifies a supported exchange.
type Venue string

const (
	VenueAster       Venue = "aster"
	VenueHyperliquid Venue = "hyperliquid"
)

// Capability identifies one service flavor of a venue.
type Capability string

const (
	CapabilitySpot    Capability = "spot"
	CapabilityFutures Capability = "futures"
	CapabilityStream  Capability = "stream"
)

// Factory builds venue services on demand and caches them: asking twice for
// the same venue and capability returns the same instance.
type Factory struct {
	cfg    *config.Config
	logger logging.Logger

	mu    sync.Mutex
	cache map[string]interface{}
}

// NewFactory creates a service factory over the given configuration.
func NewFactory(cfg *config.Config, logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Factory{
		cfg:    cfg,
		logger: logger,
		cache:  make(map[string]interface{}),
	}
}

// EnabledVenues lists the venues configuration turns on.
func (f *Factory) EnabledVenues() []Venue {
	venues := make([]Venue, 0, 2)
	if f.cfg.Exchanges.Aster.Enabled {
		venues = append(venues, VenueAster)
	}
	if f.cfg.Exchanges.Hyperliquid.Enabled {
		venues = append(venues, VenueHyperliquid)
	}
	return venues
}

// IsVenueEnabled reports whether configuration turns the venue on.
func (f *Factory) IsVenueEnabled(venue Venue) bool {
	return f.venueEnabled(venue) == nil
}

func (f *Factory) venueEnabled(venue Venue) error {
	switch venue {
	case VenueAster:
		if !f.cfg.Exchanges.Aster.Enabled {
			return exchange.NewConfigurationError("venue aster is disabled")
		}
	case VenueHyperliquid:
		if !f.cfg.Exchanges.Hyperliquid.Enabled {
			return exchange.NewConfigurationError("venue hyperliquid is disabled")
		}
	default:
		return exchange.NewConfigurationError(fmt.Sprintf("unknown venue %q", venue))
	}
	return nil
}

// build returns the cached service for venue and capability, constructing it
// on first request.
func (f *Factory) build(venue Venue, capability Capability, construct func() (interface{}, error)) (interface{}, error) {
	if err := f.venueEnabled(venue); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s_%s", venue, capability)
	f.mu.Lock()
	defer f.mu.Unlock()

	if svc, ok := f.cache[key]; ok {
		return svc, nil
	}

	svc, err := construct()
	if err != nil {
		return nil, err
	}
	f.cache[key] = svc
	f.logger.Debug("service created",
		logging.String("venue", string(venue)),
		logging.String("capability", string(capability)),
	)
	return svc, nil
}

func (f *Factory) asterOptions() aster.Options {
	return aster.Options{
		APIKey:    f.cfg.Exchanges.Aster.APIKey,
		APISecret: f.cfg.Exchanges.Aster.APISecret,
		Logger:    f.logger,
	}
}

func (f *Factory) hyperliquidOptions() hyperliquid.Options {
	return hyperliquid.Options{
		PrivateKey:    f.cfg.Exchanges.Hyperliquid.PrivateKey,
		WalletAddress: f.cfg.Exchanges.Hyperliquid.WalletAddress,
		Logger:        f.logger,
	}
}

// SpotService returns the spot service for a venue.
func (f *Factory) SpotService(venue Venue) (exchange.SpotService, error) {
	svc, err := f.build(venue, CapabilitySpot, func() (interface{}, error) {
		switch venue {
		case VenueAster:
			return aster.NewSpotClient(f.asterOptions())
		default:
			return hyperliquid.NewSpotClient(f.hyperliquidOptions())
		}
	})
	if err != nil {
		return nil, err
	}
	return svc.(exchange.SpotService), nil
}

// FuturesService returns the futures service for a venue.
func (f *Factory) FuturesService(venue Venue) (exchange.FuturesService, error) {
	svc, err := f.build(venue, CapabilityFutures, func() (interface{}, error) {
		switch venue {
		case VenueAster:
			return aster.NewFuturesClient(f.asterOptions())
		default:
			return hyperliquid.NewFuturesClient(f.hyperliquidOptions())
		}
	})
	if err != nil {
		return nil, err
	}
	return svc.(exchange.FuturesService), nil
}

// StreamService returns the WebSocket service for a venue.
func (f *Factory) StreamService(venue Venue) (exchange.StreamService, error) {
	svc, err := f.build(venue, CapabilityStream, func() (interface{}, error) {
		switch venue {
		case VenueAster:
			client, err := aster.NewClient(f.asterOptions())
			if err != nil {
				return nil, err
			}
			return aster.NewStreamClient(client), nil
		default:
			client, err := hyperliquid.NewClient(f.hyperliquidOptions())
			if err != nil {
				return nil, err
			}
			return hyperliquid.NewStreamClient(client), nil
		}
	})
	if err != nil {
		return nil, err
	}
	return svc.(exchange.StreamService), nil
}
