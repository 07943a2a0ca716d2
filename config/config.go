package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakevault/crypto"
	"stakevault/native/staking"
)

// Staking holds the genesis parameters applied to a fresh pool. Amounts and
// multipliers are decimal strings in base units (1e18 fixed point for
// multipliers) so operators never fight float rounding in TOML.
type Staking struct {
	EmissionPerSecond string `toml:"EmissionPerSecond"`
	MinDeposit        string `toml:"MinDeposit"`
	MinLockDays       uint64 `toml:"MinLockDays"`
	MaxLockDays       uint64 `toml:"MaxLockDays"`
	MinMultiplier     string `toml:"MinMultiplier"`
	MaxMultiplier     string `toml:"MaxMultiplier"`
}

type Config struct {
	RPCAddress        string  `toml:"RPCAddress"`
	DataDir           string  `toml:"DataDir"`
	NetworkName       string  `toml:"NetworkName"`
	OwnerAddress      string  `toml:"OwnerAddress"`
	LogFile           string  `toml:"LogFile"`
	LogMaxSizeMB      int     `toml:"LogMaxSizeMB"`
	LogMaxBackups     int     `toml:"LogMaxBackups"`
	RPCRatePerMinute  float64 `toml:"RPCRatePerMinute"`
	RPCRateBurst      int     `toml:"RPCRateBurst"`
	Staking           Staking `toml:"Staking"`
}

// Load loads the configuration from the given path, creating a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg, path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config, path string) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = filepath.Join(filepath.Dir(path), "data")
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "stakevault-local"
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = 100
	}
	if cfg.LogMaxBackups <= 0 {
		cfg.LogMaxBackups = 3
	}
	if cfg.RPCRatePerMinute <= 0 {
		cfg.RPCRatePerMinute = 600
	}
	if cfg.RPCRateBurst <= 0 {
		cfg.RPCRateBurst = 20
	}
	if strings.TrimSpace(cfg.Staking.EmissionPerSecond) == "" {
		cfg.Staking.EmissionPerSecond = "0"
	}
	if strings.TrimSpace(cfg.Staking.MinDeposit) == "" {
		cfg.Staking.MinDeposit = staking.DefaultMinDeposit().String()
	}
	defaults := staking.DefaultLockConfig()
	if cfg.Staking.MinLockDays == 0 && cfg.Staking.MaxLockDays == 0 {
		cfg.Staking.MinLockDays = defaults.MinLockDays
		cfg.Staking.MaxLockDays = defaults.MaxLockDays
	}
	if strings.TrimSpace(cfg.Staking.MinMultiplier) == "" {
		cfg.Staking.MinMultiplier = defaults.MinMultiplier.String()
	}
	if strings.TrimSpace(cfg.Staking.MaxMultiplier) == "" {
		cfg.Staking.MaxMultiplier = defaults.MaxMultiplier.String()
	}
}

// Validate checks the owner address and the genesis staking parameters.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress is required")
	}
	if _, err := crypto.DecodeAddress(c.OwnerAddress); err != nil {
		return fmt.Errorf("config: invalid OwnerAddress: %w", err)
	}
	if _, err := c.StakingGenesis(); err != nil {
		return err
	}
	return nil
}

// Owner decodes the configured admin address.
func (c *Config) Owner() (crypto.Address, error) {
	return crypto.DecodeAddress(c.OwnerAddress)
}

// StakingGenesis converts the TOML staking section into engine parameters.
func (c *Config) StakingGenesis() (staking.Genesis, error) {
	emission, err := parseAmount(c.Staking.EmissionPerSecond, "Staking.EmissionPerSecond")
	if err != nil {
		return staking.Genesis{}, err
	}
	minDeposit, err := parseAmount(c.Staking.MinDeposit, "Staking.MinDeposit")
	if err != nil {
		return staking.Genesis{}, err
	}
	minMultiplier, err := parseAmount(c.Staking.MinMultiplier, "Staking.MinMultiplier")
	if err != nil {
		return staking.Genesis{}, err
	}
	maxMultiplier, err := parseAmount(c.Staking.MaxMultiplier, "Staking.MaxMultiplier")
	if err != nil {
		return staking.Genesis{}, err
	}
	genesis := staking.Genesis{
		EmissionPerSecond: emission,
		MinDeposit:        minDeposit,
		LockConfig: staking.LockConfig{
			MinLockDays:   c.Staking.MinLockDays,
			MaxLockDays:   c.Staking.MaxLockDays,
			MinMultiplier: minMultiplier,
			MaxMultiplier: maxMultiplier,
		},
	}
	if err := genesis.LockConfig.Validate(); err != nil {
		return staking.Genesis{}, fmt.Errorf("config: invalid lock parameters: %w", err)
	}
	return genesis, nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("config: %s must be a non-negative integer, got %q", field, raw)
	}
	return value, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg, path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.WriteString("# stakevault daemon configuration\n# OwnerAddress must be set before the daemon will start.\n"); err != nil {
		return nil, err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, fmt.Errorf("config: wrote default config to %s; set OwnerAddress and restart", path)
}
