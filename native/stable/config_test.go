package stable

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stable.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
MaxPriceAgeSeconds = 900
Paused = false

[[assets]]
Symbol = "weth"
FeedDecimals = 8
Price = "200000000000"

[[assets]]
Symbol = " wbtc "
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(900), cfg.MaxPriceAgeSeconds)
	require.Equal(t, 15*time.Minute, cfg.MaxPriceAge())
	require.Len(t, cfg.Assets, 2)
	require.Equal(t, "WETH", cfg.Assets[0].Symbol)
	require.Equal(t, "WBTC", cfg.Assets[1].Symbol)
	require.Equal(t, uint8(8), cfg.Assets[1].Decimals)
}

func TestNormaliseDefaults(t *testing.T) {
	cfg := Config{}.Normalise()
	require.Equal(t, int64(3600), cfg.MaxPriceAgeSeconds)
	require.Equal(t, time.Hour, cfg.MaxPriceAge())
}

func TestBuildRegistry(t *testing.T) {
	now := time.Now()
	cfg := Config{
		MaxPriceAgeSeconds: 600,
		Assets: []AssetConfig{
			{Symbol: "WETH", Price: "200000000000"},
			{Symbol: "WBTC"},
		},
	}

	registry, err := cfg.BuildRegistry(now)
	require.NoError(t, err)
	require.Equal(t, []string{"WBTC", "WETH"}, registry.Assets())

	feed, err := registry.Feed("WETH")
	require.NoError(t, err)
	round, err := feed.LatestRoundData()
	require.NoError(t, err)
	require.Equal(t, "200000000000", round.Answer.String())

	// The unseeded feed has no round yet and fails closed.
	feed, err = registry.Feed("WBTC")
	require.NoError(t, err)
	_, err = feed.LatestRoundData()
	require.Error(t, err)
}

func TestBuildRegistryRejectsBadPrice(t *testing.T) {
	cfg := Config{Assets: []AssetConfig{{Symbol: "WETH", Price: "-5"}}}
	_, err := cfg.BuildRegistry(time.Now())
	require.Error(t, err)

	cfg = Config{Assets: []AssetConfig{{Symbol: "WETH", Price: "not-a-number"}}}
	_, err = cfg.BuildRegistry(time.Now())
	require.Error(t, err)
}
