package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/account"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchanges []ExchangeConfig `json:"exchanges"`
	Journal   JournalConfig    `json:"journal"`
	Profiler  ProfilerConfig   `json:"profiler"`
}

// ExchangeConfig describes one exchange connection entry.
type ExchangeConfig struct {
	Name             string   `json:"name"`
	Symbol           string   `json:"symbol"`
	PublicURL        string   `json:"publicUrl"`
	PrivateURL       string   `json:"privateUrl"`
	Topics           []string `json:"topics"`
	Accounting       string   `json:"accounting"`
	ContractRate     string   `json:"contractRate"`
	WatchdogSec      int      `json:"watchdogSec"`
	CancelTimeoutSec int      `json:"cancelTimeoutSec"`
}

// JournalConfig locates the snapshot logs.
type JournalConfig struct {
	Dir string `json:"dir"`
}

// ProfilerConfig enables the optional continuous profiler.
type ProfilerConfig struct {
	ServerAddress string `json:"serverAddress"`
	AppName       string `json:"appName"`
}

// Accounting variant names accepted in ExchangeConfig.Accounting.
const (
	AccountingAverage       = "average"
	AccountingAverageLinear = "average_linear"
	AccountingFIFO          = "fifo"
	AccountingGross         = "gross"
)

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Exchanges []ExchangeSpec
	Profiler  ProfilerConfig
}

// ExchangeSpec is one resolved exchange: a built position engine plus the
// connection and journal parameters for it.
type ExchangeSpec struct {
	Name          string
	Symbol        string
	PublicURL     string
	PrivateURL    string
	Topics        []string
	Position      account.PositionAccount
	PositionFile  string
	ProfitFile    string
	WatchdogLimit int
	CancelTimeout time.Duration
}

// Load reads a JSON config file and resolves every exchange entry.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}

	if len(cfg.Exchanges) == 0 {
		return Loaded{}, fmt.Errorf("no exchanges configured")
	}
	dir := cfg.Journal.Dir
	if dir == "" {
		dir = "."
	}

	loaded := Loaded{Profiler: cfg.Profiler}
	seen := make(map[string]bool, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		if seen[ex.Name] {
			return Loaded{}, fmt.Errorf("duplicate exchange: %s", ex.Name)
		}
		seen[ex.Name] = true

		spec, err := resolveExchange(ex, dir)
		if err != nil {
			return Loaded{}, fmt.Errorf("exchange %s: %w", ex.Name, err)
		}
		loaded.Exchanges = append(loaded.Exchanges, spec)
	}
	return loaded, nil
}

func resolveExchange(cfg ExchangeConfig, dir string) (ExchangeSpec, error) {
	if cfg.Name == "" {
		return ExchangeSpec{}, fmt.Errorf("name is empty")
	}
	if cfg.Symbol == "" {
		return ExchangeSpec{}, fmt.Errorf("symbol is empty")
	}
	if cfg.PublicURL == "" {
		return ExchangeSpec{}, fmt.Errorf("publicUrl is empty")
	}

	position, err := buildPosition(cfg)
	if err != nil {
		return ExchangeSpec{}, err
	}

	if cfg.WatchdogSec == 0 {
		cfg.WatchdogSec = 30
	}
	if cfg.WatchdogSec < 0 {
		return ExchangeSpec{}, fmt.Errorf("watchdogSec must be >= 0")
	}
	if cfg.CancelTimeoutSec == 0 {
		cfg.CancelTimeoutSec = 60
	}
	if cfg.CancelTimeoutSec < 0 {
		return ExchangeSpec{}, fmt.Errorf("cancelTimeoutSec must be >= 0")
	}

	return ExchangeSpec{
		Name:          cfg.Name,
		Symbol:        cfg.Symbol,
		PublicURL:     cfg.PublicURL,
		PrivateURL:    cfg.PrivateURL,
		Topics:        cfg.Topics,
		Position:      position,
		PositionFile:  filepath.Join(dir, cfg.Name+"_position.log"),
		ProfitFile:    filepath.Join(dir, cfg.Name+"_profit.log"),
		WatchdogLimit: cfg.WatchdogSec,
		CancelTimeout: time.Duration(cfg.CancelTimeoutSec) * time.Second,
	}, nil
}

func buildPosition(cfg ExchangeConfig) (account.PositionAccount, error) {
	switch cfg.Accounting {
	case AccountingAverage, "":
		return account.NewKeepAverage(), nil
	case AccountingAverageLinear:
		rate, err := decimal.NewFromString(cfg.ContractRate)
		if err != nil {
			return nil, fmt.Errorf("invalid contractRate %q: %w", cfg.ContractRate, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("contractRate must be > 0")
		}
		return account.NewKeepAverageLinear(rate), nil
	case AccountingFIFO:
		return account.NewFIFO(), nil
	case AccountingGross:
		return account.NewGross(), nil
	default:
		return nil, fmt.Errorf("unknown accounting variant: %s", cfg.Accounting)
	}
}
