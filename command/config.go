package command

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

func NewConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or write the configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					data, err := yaml.Marshal(cmn.Config)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "# %s\n%s", cmn.ConfPath, data)
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Set one configuration key and save",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("usage: config set <key> <value>")
					}
					param, value := c.Args().Get(0), c.Args().Get(1)
					if err := setConfigParam(param, value); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Config updated: %s = %s\n", param, value)
					return nil
				},
			},
			{
				Name:  "init",
				Usage: "Write the current configuration to the config file",
				Action: func(c *cli.Context) error {
					cmn.ConfigChanged = true
					if err := cmn.SaveConfig(); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Config written to %s\n", cmn.ConfPath)
					return nil
				},
			},
		},
	}
}

var config_params = []string{
	"verbosity",
	"language",
	"rpc_url",
	"chain_id",
	"token_address",
	"staking_address",
	"token_decimals",
	"min_stake",
	"display_precision",
	"retry_attempts",
	"retry_delay",
	"rpc_rate_limit",
	"ws_enabled",
	"ws_port",
	"referral_base_url",
	"auto_confirm",
	"derivation_path",
}

// setConfigParam validates the new value on a copy and saves it.
func setConfigParam(param, value string) error {
	nc := *cmn.Config
	var err error

	switch param {
	case "verbosity":
		validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
		if !slices.Contains(validLevels, value) {
			return fmt.Errorf("invalid verbosity level, valid: %s", strings.Join(validLevels, ", "))
		}
		nc.Verbosity = value
	case "language":
		nc.Language = value
	case "rpc_url":
		nc.RPCURL = value
	case "chain_id":
		nc.ChainId, err = strconv.Atoi(value)
	case "token_address":
		nc.TokenAddress = value
	case "staking_address":
		nc.StakingAddress = value
	case "token_decimals":
		nc.TokenDecimals, err = strconv.Atoi(value)
	case "min_stake":
		nc.MinStake = value
	case "display_precision":
		nc.DisplayPrecision, err = strconv.Atoi(value)
	case "retry_attempts":
		nc.RetryAttempts, err = strconv.Atoi(value)
	case "retry_delay":
		nc.RetryDelay, err = time.ParseDuration(value)
	case "rpc_rate_limit":
		nc.RPCRateLimit, err = strconv.Atoi(value)
		nc.RPCRateAuto = nc.RPCRateLimit == 0
	case "ws_enabled":
		nc.WSEnabled, err = strconv.ParseBool(value)
	case "ws_port":
		nc.WSPort, err = strconv.Atoi(value)
	case "referral_base_url":
		nc.ReferralBaseURL = value
	case "auto_confirm":
		nc.AutoConfirm, err = strconv.ParseBool(value)
	case "derivation_path":
		nc.DerivationPath = value
	default:
		return fmt.Errorf("unknown parameter: %s, valid: %s", param, strings.Join(config_params, ", "))
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", param, err)
	}
	if err := nc.Validate(); err != nil {
		return err
	}

	*cmn.Config = nc
	cmn.ConfigChanged = true
	return cmn.SaveConfig()
}
