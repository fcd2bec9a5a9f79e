package cmn

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

const VERSION = "0.1.0"
const LOG_NAME = "web3stake.log"
const CONFIG_NAME = "config.yaml"
const KEYSTORE_NAME = "signer.key"

var DataFolder = "data"
var AppName = "web3stake"
var LogPath = LOG_NAME
var ConfPath = CONFIG_NAME

var ConfigChanged = false

type SConfig struct {
	Verbosity        string        `yaml:"verbosity"`         // log verbosity
	Language         string        `yaml:"language"`          // notification language: en, zh, ja, ko
	RPCURL           string        `yaml:"rpc_url"`           // JSON-RPC endpoint of the chain
	ChainId          int           `yaml:"chain_id"`          // expected chain id, 0 = take from the node
	TokenAddress     string        `yaml:"token_address"`     // staked ERC20 token
	StakingAddress   string        `yaml:"staking_address"`   // staking contract
	TokenDecimals    int           `yaml:"token_decimals"`    // decimal exponent of the token
	MinStake         string        `yaml:"min_stake"`         // protocol minimum, in whole tokens
	DisplayPrecision int           `yaml:"display_precision"` // fractional digits shown to the user
	RetryAttempts    int           `yaml:"retry_attempts"`    // total attempts per chain call
	RetryDelay       time.Duration `yaml:"retry_delay"`       // constant wait between attempts
	RPCRateLimit     int           `yaml:"rpc_rate_limit"`    // calls per second, 0 = auto
	RPCRateAuto      bool          `yaml:"rpc_rate_auto"`     // auto-tune the rate limit
	WSEnabled        bool          `yaml:"ws_enabled"`        // enable the websocket boundary
	WSPort           int           `yaml:"ws_port"`           // websocket port
	WSOrigins        []string      `yaml:"ws_origins"`        // allowed browser origins, empty = any
	ReferralBaseURL  string        `yaml:"referral_base_url"` // base of referral links
	AutoConfirm      bool          `yaml:"auto_confirm"`      // sign without asking
	DerivationPath   string        `yaml:"derivation_path"`   // BIP-32 path of the signing key
}

func DefaultConfig() *SConfig {
	return &SConfig{
		Verbosity:        "debug",
		Language:         "en",
		RPCURL:           "http://127.0.0.1:8545",
		TokenDecimals:    18,
		MinStake:         "100",
		DisplayPrecision: DISPLAY_PRECISION,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		RPCRateAuto:      true,
		WSEnabled:        true,
		WSPort:           9324,
		ReferralBaseURL:  "https://mutualbank.app",
		DerivationPath:   "m/44'/60'/0'/0/0",
	}
}

var Config *SConfig = DefaultConfig()

// InitConfig prepares the data folder, the log file and loads config.yaml.
// An empty path means the default location inside the data folder.
func InitConfig(path string) {
	var err error

	// Get the data folder
	DataFolder, err = GetDataFolder()
	if err != nil {
		fmt.Printf("error getting data folder: %v", err)
		os.Exit(1)
	}

	// Init logger
	LogPath = filepath.Join(DataFolder, LOG_NAME)
	logFile, err := os.OpenFile(LogPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666) // truncate log file
	if err != nil {
		fmt.Printf("error opening log file: %v", err)
		os.Exit(1)
	}
	InitLogger(logFile)

	ConfPath = path
	if ConfPath == "" {
		ConfPath = filepath.Join(DataFolder, CONFIG_NAME)
	}
	err = RestoreConfig(ConfPath)
	if err != nil {
		log.Error().Msgf("error restoring config: %v", err)
	}

	SetVerbosity(Config.Verbosity)

	log.Info().Msgf("Log level: %s", Config.Verbosity)
	log.Trace().Msg("Started")
}

func InitLogger(w io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: true})
}

func SetVerbosity(v string) {
	level, err := zerolog.ParseLevel(v)
	if err != nil || v == "" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func SaveConfig() error {
	if !ConfigChanged {
		return nil
	}

	data, err := yaml.Marshal(Config)
	if err != nil {
		return err
	}

	err = os.WriteFile(ConfPath, data, 0666)
	if err != nil {
		return err
	}

	ConfigChanged = false
	return err
}

func RestoreConfig(path string) error {
	c, err := LoadConfig(path)
	if err != nil {
		return err
	}
	Config = c
	return nil
}

// LoadConfig reads a yaml config over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*SConfig, error) {
	c := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// it is ok. Let's use default config
			log.Warn().Msgf("no config file found: %v", err)
			return c, nil
		}
		return nil, err
	}

	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, err
	}

	return c, c.Validate()
}

func (c *SConfig) Validate() error {
	if c.TokenAddress != "" && !IsAddressShaped(c.TokenAddress) {
		return fmt.Errorf("config: invalid token_address %q", c.TokenAddress)
	}
	if c.StakingAddress != "" && !IsAddressShaped(c.StakingAddress) {
		return fmt.Errorf("config: invalid staking_address %q", c.StakingAddress)
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 77 {
		return fmt.Errorf("config: token_decimals out of range: %d", c.TokenDecimals)
	}
	if c.DisplayPrecision < 0 {
		return fmt.Errorf("config: display_precision must not be negative")
	}
	if _, err := ToChainUnits(c.MinStake, c.TokenDecimals); err != nil {
		return fmt.Errorf("config: min_stake: %w", err)
	}
	if c.DisplayPrecision > c.TokenDecimals {
		return fmt.Errorf("config: display_precision %d exceeds token_decimals %d", c.DisplayPrecision, c.TokenDecimals)
	}
	return nil
}

func (c *SConfig) Token() common.Address {
	return common.HexToAddress(c.TokenAddress)
}

func (c *SConfig) Staking() common.Address {
	return common.HexToAddress(c.StakingAddress)
}

// MinStakeUnits returns the protocol minimum in the token's smallest units.
func (c *SConfig) MinStakeUnits() *big.Int {
	v, err := ToChainUnits(c.MinStake, c.TokenDecimals)
	if err != nil {
		log.Error().Err(err).Msg("MinStakeUnits: invalid min_stake")
		return new(big.Int)
	}
	return v
}

func GetDataFolder() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "windows":
		// Get the local app data folder
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", fmt.Errorf("LOCALAPPDATA environment variable is not set")
		}
		dataDir = filepath.Join(localAppData, AppName)
	case "darwin":
		// Get the user's home directory
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting home directory: %v", err)
		}
		dataDir = filepath.Join(homeDir, "Library", "Application Support", AppName)
	case "linux":
		// Get the user's home directory
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting home directory: %v", err)
		}
		dataDir = filepath.Join(homeDir, "."+AppName)
	default:
		return "", fmt.Errorf("unsupported operating system")
	}

	// Create the directory if it doesn't exist
	err := os.MkdirAll(dataDir, os.ModePerm)
	if err != nil {
		return "", fmt.Errorf("error creating data directory: %v", err)
	}

	return dataDir, nil
}
