package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/exchange-service/pkg/config"
	"github.com/veiloq/exchange-service/pkg/exchange"
)

// Hardhat's first well-known development key. Never funded on any network.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func fullConfig() *config.Config {
	return &config.Config{
		Exchanges: config.ExchangesConfig{
			Aster: config.AsterConfig{
				Enabled:   true,
				APIKey:    "key",
				APISecret: "secret",
			},
			Hyperliquid: config.HyperliquidConfig{
				Enabled:    true,
				PrivateKey: testPrivateKey,
			},
		},
		Features: config.FeaturesConfig{
			SpotTrading:    true,
			FuturesTrading: true,
			Websocket:      true,
		},
	}
}

func TestFactoryBuildsEveryCapabilityForEveryVenue(t *testing.T) {
	factory := NewFactory(fullConfig(), nil)

	for _, venue := range []Venue{VenueAster, VenueHyperliquid} {
		spot, err := factory.SpotService(venue)
		require.NoError(t, err, "spot %s", venue)
		require.NotNil(t, spot)

		futures, err := factory.FuturesService(venue)
		require.NoError(t, err, "futures %s", venue)
		require.NotNil(t, futures)

		stream, err := factory.StreamService(venue)
		require.NoError(t, err, "stream %s", venue)
		require.NotNil(t, stream)
	}
}

func TestFactoryCachesPerVenueAndCapability(t *testing.T) {
	factory := NewFactory(fullConfig(), nil)

	first, err := factory.FuturesService(VenueAster)
	require.NoError(t, err)
	second, err := factory.FuturesService(VenueAster)
	require.NoError(t, err)
	assert.Same(t, first, second, "same venue and capability returns the cached instance")

	spot, err := factory.SpotService(VenueAster)
	require.NoError(t, err)
	assert.NotSame(t, first, spot, "capabilities are cached independently")
}

func TestFactoryRejectsDisabledVenue(t *testing.T) {
	cfg := fullConfig()
	cfg.Exchanges.Hyperliquid.Enabled = false
	factory := NewFactory(cfg, nil)

	_, err := factory.SpotService(VenueHyperliquid)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrConfiguration)
}

func TestFactoryRejectsUnknownVenue(t *testing.T) {
	factory := NewFactory(fullConfig(), nil)

	_, err := factory.FuturesService(Venue("binance"))
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrConfiguration)
}

func TestFactoryRejectsMissingCredentials(t *testing.T) {
	cfg := fullConfig()
	cfg.Exchanges.Aster.APISecret = ""
	factory := NewFactory(cfg, nil)

	_, err := factory.FuturesService(VenueAster)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrValidation)
}

func TestFactoryRejectsMalformedPrivateKey(t *testing.T) {
	cfg := fullConfig()
	cfg.Exchanges.Hyperliquid.PrivateKey = "zz-not-hex"
	factory := NewFactory(cfg, nil)

	_, err := factory.StreamService(VenueHyperliquid)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrValidation)
}

func TestIsVenueEnabled(t *testing.T) {
	cfg := fullConfig()
	cfg.Exchanges.Hyperliquid.Enabled = false
	factory := NewFactory(cfg, nil)

	assert.True(t, factory.IsVenueEnabled(VenueAster))
	assert.False(t, factory.IsVenueEnabled(VenueHyperliquid))
	assert.False(t, factory.IsVenueEnabled(Venue("binance")))
}

func TestEnabledVenues(t *testing.T) {
	cfg := fullConfig()
	assert.Equal(t, []Venue{VenueAster, VenueHyperliquid}, NewFactory(cfg, nil).EnabledVenues())

	cfg.Exchanges.Aster.Enabled = false
	assert.Equal(t, []Venue{VenueHyperliquid}, NewFactory(cfg, nil).EnabledVenues())

	cfg.Exchanges.Hyperliquid.Enabled = false
	assert.Empty(t, NewFactory(cfg, nil).EnabledVenues())
}
