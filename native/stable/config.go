package stable

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/virpysec/defi-stablecoin/native/oracle"
)

// AssetConfig describes one supported collateral asset and its price source.
type AssetConfig struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"FeedDecimals"`
	// Price optionally seeds a manual feed with an initial answer in the
	// feed's native decimals. Deployments with live adapters leave it empty.
	Price string `toml:"Price"`
}

// Config captures the runtime configuration for the stablecoin module.
type Config struct {
	MaxPriceAgeSeconds int64         `toml:"MaxPriceAgeSeconds"`
	Paused             bool          `toml:"Paused"`
	Assets             []AssetConfig `toml:"assets"`
}

// Normalise applies defaults and canonical casing to the configuration.
func (c Config) Normalise() Config {
	cfg := Config{
		MaxPriceAgeSeconds: c.MaxPriceAgeSeconds,
		Paused:             c.Paused,
		Assets:             append([]AssetConfig(nil), c.Assets...),
	}
	if cfg.MaxPriceAgeSeconds <= 0 {
		cfg.MaxPriceAgeSeconds = 3600
	}
	for i := range cfg.Assets {
		cfg.Assets[i].Symbol = strings.ToUpper(strings.TrimSpace(cfg.Assets[i].Symbol))
		if cfg.Assets[i].Decimals == 0 {
			cfg.Assets[i].Decimals = oracle.DefaultDecimals
		}
	}
	return cfg
}

// MaxPriceAge returns the configured staleness window as a duration.
func (c Config) MaxPriceAge() time.Duration {
	return time.Duration(c.MaxPriceAgeSeconds) * time.Second
}

// Load reads the module configuration from the given TOML file.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("stable config: %w", err)
	}
	return cfg.Normalise(), nil
}

// BuildRegistry constructs the collateral registry from the configured
// assets. Each feed is a manual feed (seeded when a price is supplied)
// wrapped with the staleness heartbeat, so reads fail closed once quotes
// age out.
func (c Config) BuildRegistry(now time.Time) (*Registry, error) {
	cfg := c.Normalise()
	symbols := make([]string, 0, len(cfg.Assets))
	feeds := make([]oracle.Feed, 0, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		manual := oracle.NewManualFeed(asset.Decimals)
		if strings.TrimSpace(asset.Price) != "" {
			answer, ok := new(big.Int).SetString(strings.TrimSpace(asset.Price), 10)
			if !ok || answer.Sign() <= 0 {
				return nil, fmt.Errorf("stable config: invalid price %q for %s", asset.Price, asset.Symbol)
			}
			manual.Set(answer, now)
		}
		symbols = append(symbols, asset.Symbol)
		feeds = append(feeds, oracle.NewCheckedFeed(manual, cfg.MaxPriceAge()))
	}
	return NewRegistry(symbols, feeds)
}
