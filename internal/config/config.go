// Package config loads the agent's YAML configuration plus a .env
// overlay for secrets, generalizing the teacher's `configs/config.go`
// (`LoadConfig`, `yaml.Unmarshal`, `To*Config()` mapper methods) from a
// single-strategy LP bot to the full scan/trigger/execute pipeline.
package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/claucondor/more-liquidation-bot/internal/coordinator"
	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// Config is the entire parsed config.yml.
type Config struct {
	RPC        RPCYAML        `yaml:"rpc"`
	Contracts  ContractsYAML  `yaml:"contracts"`
	Indexer    IndexerYAML    `yaml:"indexer"`
	Scan       ScanYAML       `yaml:"scan"`
	Sizing     SizingYAML     `yaml:"sizing"`
	Execution  ExecutionYAML  `yaml:"execution"`
	Market     MarketYAML     `yaml:"market"`
	Database   DatabaseYAML   `yaml:"database"`
	Notify     NotifyYAML     `yaml:"notify"`
	StatePath  string         `yaml:"state_path"`
}

// PoolYAML describes one swap venue the probe is allowed to quote
// against, per spec.md §4.5's stable/V3/V2 venue split.
type PoolYAML struct {
	Venue    string `yaml:"venue"` // "v2" | "v3" | "stable"
	Address  string `yaml:"address"`
	Token0   string `yaml:"token0"`
	Token1   string `yaml:"token1"`
	FeeMicro uint32 `yaml:"fee_micro"`
	IndexA   int8   `yaml:"index_a"`
	IndexB   int8   `yaml:"index_b"`
	Name     string `yaml:"name"`
}

// MarketYAML fixes the single dominant collateral/debt pair spec.md §4.5
// assumes, plus the venues available to size and quote a liquidation.
type MarketYAML struct {
	CollateralAsset     string     `yaml:"collateral_asset"`
	CollateralDecimals  int        `yaml:"collateral_decimals"`
	DebtAsset           string     `yaml:"debt_asset"`
	DebtDecimals        int        `yaml:"debt_decimals"`
	LiquidationBonusBp  int        `yaml:"liquidation_bonus_bp"`
	StablePools         []PoolYAML `yaml:"stable_pools"`
	V3Pools             []PoolYAML `yaml:"v3_pools"`
	V2Routers           []PoolYAML `yaml:"v2_routers"`
	AggregatorAvailable bool       `yaml:"aggregator_available"`
	AggregatorRouter    string     `yaml:"aggregator_router"`
}

// RPCYAML configures the dual-endpoint gateway.
type RPCYAML struct {
	PublicURL            string `yaml:"public_url"`
	PrivateURL           string `yaml:"private_url"`
	RetryAttempts        uint64 `yaml:"retry_attempts"`
	RetryBaseWaitSec     int    `yaml:"retry_base_wait_sec"`
	BreakerOpenSec       int    `yaml:"breaker_open_sec"`
	ReconnectMaxAttempts uint64 `yaml:"reconnect_max_attempts"`
	ChainID              int64  `yaml:"chain_id"`
}

// ContractsYAML addresses every deployed contract the agent speaks to.
type ContractsYAML struct {
	LendingPool       string `yaml:"lending_pool"`
	LiquidationVault  string `yaml:"liquidation_vault"`
	Multicall3        string `yaml:"multicall3"`
	Oracle            string `yaml:"oracle"`
}

// IndexerYAML configures the borrower-set GraphQL indexer.
type IndexerYAML struct {
	Endpoint string `yaml:"endpoint"`
	PageSize int    `yaml:"page_size"`
}

// ScanYAML configures the coordinator's scheduling cadences.
type ScanYAML struct {
	FullScanCron   string `yaml:"full_scan_cron"`
	ReportCron     string `yaml:"report_cron"`
	SweepCron      string `yaml:"sweep_cron"`
	BlockPollSec   int    `yaml:"block_poll_sec"`
}

// SizingYAML configures the close-factor ladder and interest buffer.
type SizingYAML struct {
	FractionLadderBp      []int `yaml:"fraction_ladder_bp"`
	InterestBufferBp      int   `yaml:"interest_buffer_bp"`
	MaxCloseFactorBp      int   `yaml:"max_close_factor_bp"`
	ConservativeFactorBp  int   `yaml:"conservative_factor_bp"`
	PreparedTTLSec        int   `yaml:"prepared_ttl_sec"`
	PriceTTLSec           int   `yaml:"price_ttl_sec"`
	ReserveTTLSec         int   `yaml:"reserve_ttl_sec"`
}

// ExecutionYAML configures the executor and blacklist.
type ExecutionYAML struct {
	GasLimit          uint64 `yaml:"gas_limit"`
	MaxGasPriceGwei   int64  `yaml:"max_gas_price_gwei"`
	MaxSlippageBp     int    `yaml:"max_slippage_bp"`
	MaxFailures       int    `yaml:"max_failures"`
	BlacklistCooldownSec int `yaml:"blacklist_cooldown_sec"`
}

// DatabaseYAML configures the MySQL DSN components for the audit log.
type DatabaseYAML struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN builds a GORM-compatible MySQL DSN from the YAML fields.
func (d DatabaseYAML) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NotifyYAML configures the alert/info webhook notifier.
type NotifyYAML struct {
	WebhookURL    string `yaml:"webhook_url"`
	DedupTTLSec   int    `yaml:"dedup_ttl_sec"`
}

// Load reads envPath (if present) into the process environment, then
// parses yamlPath into a Config. A missing .env file is not an error —
// config.yml alone is a valid deployment.
func Load(yamlPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	data, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// PrivateKeyFromEnv decrypts the PK the way the teacher's `cmd/main.go`
// boot step does (ENC_PK + KEY env vars, AES-256-GCM).
func PrivateKeyFromEnv(decrypt func(key []byte, encoded string) (string, error)) (string, error) {
	encrypted := os.Getenv("ENC_PK")
	if encrypted == "" {
		return "", fmt.Errorf("ENC_PK not set")
	}
	key := os.Getenv("KEY")
	if key == "" {
		return "", fmt.Errorf("KEY not set")
	}
	return decrypt([]byte(key), encrypted)
}

// RetryBaseWait converts RetryBaseWaitSec into a time.Duration.
func (r RPCYAML) RetryBaseWait() time.Duration {
	return time.Duration(r.RetryBaseWaitSec) * time.Second
}

// BreakerOpenDuration converts BreakerOpenSec into a time.Duration.
func (r RPCYAML) BreakerOpenDuration() time.Duration {
	return time.Duration(r.BreakerOpenSec) * time.Second
}

// ChainIDBig returns ChainID as a *big.Int for signer construction.
func (r RPCYAML) ChainIDBig() *big.Int {
	return big.NewInt(r.ChainID)
}

// MaxGasPriceWei converts MaxGasPriceGwei into wei.
func (e ExecutionYAML) MaxGasPriceWei() *big.Int {
	gwei := big.NewInt(e.MaxGasPriceGwei)
	return new(big.Int).Mul(gwei, big.NewInt(1_000_000_000))
}

// PreparedTTL converts PreparedTTLSec into a time.Duration.
func (s SizingYAML) PreparedTTL() time.Duration {
	return time.Duration(s.PreparedTTLSec) * time.Second
}

// PriceTTL converts PriceTTLSec into a time.Duration.
func (s SizingYAML) PriceTTL() time.Duration {
	return time.Duration(s.PriceTTLSec) * time.Second
}

// ReserveTTL converts ReserveTTLSec into a time.Duration.
func (s SizingYAML) ReserveTTL() time.Duration {
	return time.Duration(s.ReserveTTLSec) * time.Second
}

// BlacklistCooldown converts BlacklistCooldownSec into a time.Duration.
func (e ExecutionYAML) BlacklistCooldown() time.Duration {
	return time.Duration(e.BlacklistCooldownSec) * time.Second
}

func (p PoolYAML) toPoolRef() types.PoolRef {
	venue := types.VenueV2
	switch p.Venue {
	case "v3":
		venue = types.VenueV3
	case "stable":
		venue = types.VenueStable
	}
	return types.PoolRef{
		Venue:    venue,
		Address:  common.HexToAddress(p.Address),
		Token0:   common.HexToAddress(p.Token0),
		Token1:   common.HexToAddress(p.Token1),
		FeeMicro: p.FeeMicro,
		IndexA:   p.IndexA,
		IndexB:   p.IndexB,
		Name:     p.Name,
	}
}

func toPoolRefs(pools []PoolYAML) []types.PoolRef {
	out := make([]types.PoolRef, len(pools))
	for i, p := range pools {
		out[i] = p.toPoolRef()
	}
	return out
}

// ToMarket builds the coordinator's single-dominant-collateral Market from
// the contracts and market YAML sections, mirroring the teacher's
// `ToBlackholeConfigs`/`ToStrategyConfig` mapper-method convention.
func (c Config) ToMarket() coordinator.Market {
	return coordinator.Market{
		PoolAddress:         common.HexToAddress(c.Contracts.LendingPool),
		OracleAddress:       common.HexToAddress(c.Contracts.Oracle),
		CollateralAsset:     common.HexToAddress(c.Market.CollateralAsset),
		CollateralDecimals:  c.Market.CollateralDecimals,
		DebtAsset:           common.HexToAddress(c.Market.DebtAsset),
		DebtDecimals:        c.Market.DebtDecimals,
		LiquidationBonusBp:  c.Market.LiquidationBonusBp,
		StablePools:         toPoolRefs(c.Market.StablePools),
		V3Pools:             toPoolRefs(c.Market.V3Pools),
		V2Routers:           toPoolRefs(c.Market.V2Routers),
		AggregatorAvailable: c.Market.AggregatorAvailable,
		AggregatorRouter:    common.HexToAddress(c.Market.AggregatorRouter),
	}
}

// ToCoordinatorConfig builds the coordinator.Config from the scan/sizing
// YAML sections, falling back to DefaultConfig's cron cadences when the
// YAML leaves them blank.
func (c Config) ToCoordinatorConfig() coordinator.Config {
	cfg := coordinator.DefaultConfig(c.ToMarket())
	if c.Scan.FullScanCron != "" {
		cfg.FullScanCron = c.Scan.FullScanCron
	}
	if c.Scan.ReportCron != "" {
		cfg.ReportCron = c.Scan.ReportCron
	}
	if c.Scan.SweepCron != "" {
		cfg.SweepCron = c.Scan.SweepCron
	}
	if len(c.Sizing.FractionLadderBp) > 0 {
		cfg.FractionLadderBp = c.Sizing.FractionLadderBp
	}
	if c.Sizing.InterestBufferBp > 0 {
		cfg.InterestBufferBp = c.Sizing.InterestBufferBp
	}
	if c.Sizing.MaxCloseFactorBp > 0 {
		cfg.MaxCloseFactorBp = c.Sizing.MaxCloseFactorBp
	}
	if c.Sizing.ConservativeFactorBp > 0 {
		cfg.ConservativeFactorBp = c.Sizing.ConservativeFactorBp
	}
	cfg.StatePath = c.StatePath
	return cfg
}

// LiquidationVaultAddress returns the deployed liquidation contract's
// address, used by the CLI to build executor.Config directly (the
// ecdsa-keyed signer is the CLI's own concern, decrypted from ENC_PK).
func (c Config) LiquidationVaultAddress() common.Address {
	return common.HexToAddress(c.Contracts.LiquidationVault)
}
