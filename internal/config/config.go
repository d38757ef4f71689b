package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfigCreated is returned when no config file existed and a default one was written.
var ErrConfigCreated = errors.New("default config created")

const DefaultPath = "config.json"

// Settings keeps all configuration options.
type Settings struct {
	RPCURL            string            `mapstructure:"rpc_url"`
	SecondaryRPCURL   string            `mapstructure:"secondary_rpc_url"`
	AccountFilePath   string            `mapstructure:"account_file_path"`
	GasLimit          uint64            `mapstructure:"gas_limit"`
	BridgeGasLimit    uint64            `mapstructure:"bridge_gas_limit"`
	BridgeAmountWei   string            `mapstructure:"bridge_amount_wei"`
	BridgeL2Gas       uint64            `mapstructure:"bridge_l2_gas"`
	GmonCreateGas     uint64            `mapstructure:"gmon_create_gas"`
	MaxConcurrency    int               `mapstructure:"max_concurrency"`
	JitterRange       []float64         `mapstructure:"submission_jitter_range"`
	BridgeJitterRange []float64         `mapstructure:"bridge_jitter_range"`
	ReceiptTimeout    time.Duration     `mapstructure:"receipt_timeout"`
	PollInterval      time.Duration     `mapstructure:"receipt_poll_interval"`
	SaveResults       bool              `mapstructure:"save_results"`
	CheckBalanceFirst bool              `mapstructure:"check_balance_first"`
	ERC20Name         string            `mapstructure:"erc20_name"`
	ERC20Symbol       string            `mapstructure:"erc20_symbol"`
	WaitForReceipt    map[string]bool   `mapstructure:"wait_for_receipt"`
	GasOverrides      map[string]uint64 `mapstructure:"gas_overrides"`
	MaxRPS            float64           `mapstructure:"max_rps"`
	LogLevel          string            `mapstructure:"log_level"`
	MetricsAddr       string            `mapstructure:"metrics_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "https://ethereum-sepolia-rpc.publicnode.com")
	v.SetDefault("secondary_rpc_url", "https://sepolia-rpc.giwa.io")
	v.SetDefault("account_file_path", "accounts.txt")
	v.SetDefault("gas_limit", 2_000_000)
	v.SetDefault("bridge_gas_limit", 150_000)
	v.SetDefault("bridge_amount_wei", "1000000000000000")
	v.SetDefault("bridge_l2_gas", 100_000)
	v.SetDefault("gmon_create_gas", 350_000)
	v.SetDefault("max_concurrency", 5)
	v.SetDefault("submission_jitter_range", []float64{0.2, 0.8})
	v.SetDefault("bridge_jitter_range", []float64{0.3, 1.0})
	v.SetDefault("receipt_timeout", "120s")
	v.SetDefault("receipt_poll_interval", "2s")
	v.SetDefault("save_results", true)
	v.SetDefault("check_balance_first", true)
	v.SetDefault("erc20_name", "cuandrop")
	v.SetDefault("erc20_symbol", "cndrp")
	v.SetDefault("wait_for_receipt", map[string]any{
		"owlto":     true,
		"erc20":     false,
		"gmonchain": false,
		"omnihub":   false,
		"bridge":    false,
	})
	v.SetDefault("gas_overrides", map[string]any{})
	v.SetDefault("max_rps", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
}

// LoadEnv overlays .env then .env.local onto the process environment. Both are optional.
func LoadEnv() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("BROADCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads path. When the file is missing a default one is written and ErrConfigCreated returned
// so the caller can ask the operator to review it.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = DefaultPath
	}
	v := newViper(path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if werr := v.SafeWriteConfigAs(path); werr != nil {
			return nil, fmt.Errorf("write default config %s: %w", path, werr)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrConfigCreated)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var st Settings
	if err := v.Unmarshal(&st); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &st, nil
}

func (s *Settings) Validate() error {
	switch {
	case strings.TrimSpace(s.RPCURL) == "":
		return errors.New("rpc_url is required")
	case s.MaxConcurrency < 1:
		return errors.New("max_concurrency must be >= 1")
	case s.GasLimit == 0:
		return errors.New("gas_limit must be > 0")
	case strings.TrimSpace(s.AccountFilePath) == "":
		return errors.New("account_file_path is required")
	}
	if _, _, err := jitter(s.JitterRange); err != nil {
		return fmt.Errorf("submission_jitter_range: %w", err)
	}
	if _, _, err := jitter(s.BridgeJitterRange); err != nil {
		return fmt.Errorf("bridge_jitter_range: %w", err)
	}
	if n, ok := new(big.Int).SetString(strings.TrimSpace(s.BridgeAmountWei), 10); !ok || n.Sign() <= 0 {
		return fmt.Errorf("bridge_amount_wei %q is not a positive integer", s.BridgeAmountWei)
	}
	return nil
}

func jitter(r []float64) (time.Duration, time.Duration, error) {
	if len(r) != 2 {
		return 0, 0, fmt.Errorf("want [min, max], got %v", r)
	}
	if r[0] < 0 || r[1] < r[0] {
		return 0, 0, fmt.Errorf("want 0 <= min <= max, got %v", r)
	}
	sec := func(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }
	return sec(r[0]), sec(r[1]), nil
}

// Jitter returns the submission jitter range as durations.
func (s *Settings) Jitter() (time.Duration, time.Duration) {
	lo, hi, _ := jitter(s.JitterRange)
	return lo, hi
}

func (s *Settings) BridgeJitter() (time.Duration, time.Duration) {
	lo, hi, _ := jitter(s.BridgeJitterRange)
	return lo, hi
}

func (s *Settings) BridgeAmount() *big.Int {
	n, _ := new(big.Int).SetString(strings.TrimSpace(s.BridgeAmountWei), 10)
	return n
}

// Wait reports whether action should block on its receipt, falling back to def.
func (s *Settings) Wait(action string, def bool) bool {
	if w, ok := s.WaitForReceipt[strings.ToLower(action)]; ok {
		return w
	}
	return def
}

// Gas returns the override for action, or def.
func (s *Settings) Gas(action string, def uint64) uint64 {
	if g, ok := s.GasOverrides[strings.ToLower(action)]; ok && g > 0 {
		return g
	}
	return def
}
