// Package command holds the command line interface of web3stake.
package command

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlexNa-Holdings/web3stake/bus"
	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/core"
	"github.com/AlexNa-Holdings/web3stake/eth"
	"github.com/AlexNa-Holdings/web3stake/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path of the config file (default: config.yaml in the data folder)",
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log level: trace, debug, info, warn, error",
	}
	yesFlag = &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "sign transactions without asking",
	}
	passwordFlag = &cli.StringFlag{
		Name:    "password",
		Usage:   "keystore password",
		EnvVars: []string{"WEB3STAKE_PASSWORD"},
	}
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "account to read, no keystore needed",
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
)

// GlobalFlags are accepted before any command.
var GlobalFlags = []cli.Flag{
	configFlag,
	verbosityFlag,
	yesFlag,
	passwordFlag,
}

func Commands() []*cli.Command {
	return []*cli.Command{
		NewBalanceCommand(),
		NewPositionsCommand(),
		NewStakeCommand(),
		NewWithdrawCommand(),
		NewClaimCommand(),
		NewApproveCommand(),
		NewReferrerCommand(),
		NewReferralLinkCommand(),
		NewServeCommand(),
		NewSignerCommand(),
		NewConfigCommand(),
	}
}

// Before loads the config and sets up logging.
func Before(c *cli.Context) error {
	cmn.InitConfig(c.String(configFlag.Name))
	if v := c.String(verbosityFlag.Name); v != "" {
		cmn.SetVerbosity(v)
	}
	if c.Bool(yesFlag.Name) {
		cmn.Config.AutoConfirm = true
	}
	return nil
}

// session is a connected client with the app bound to one account.
type session struct {
	client *eth.Client
	app    *core.App
}

func (s *session) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// openReadOnly connects without a signer when --address is given,
// otherwise it opens the keystore.
func openReadOnly(c *cli.Context) (*session, error) {
	if a := c.String(addressFlag.Name); a != "" {
		account, ok := cmn.ParseAddress(a)
		if !ok {
			return nil, fmt.Errorf("invalid address: %s", a)
		}
		return open(c, account, nil)
	}
	return openSigner(c)
}

func openSigner(c *cli.Context) (*session, error) {
	s, err := keystoreSigner(c)
	if err != nil {
		return nil, err
	}
	return open(c, s.Address(), s)
}

func open(c *cli.Context, account common.Address, sg signer.Signer) (*session, error) {
	cfg := cmn.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cmn.IsZeroAddress(cfg.Token()) || cmn.IsZeroAddress(cfg.Staking()) {
		return nil, fmt.Errorf("token_address and staking_address must be set in %s", cmn.ConfPath)
	}

	client, err := eth.Dial(c.Context, cfg.RPCURL, eth.Options{
		ChainID:   int64(cfg.ChainId),
		RateLimit: cfg.RPCRateLimit,
		RateAuto:  cfg.RPCRateAuto,
		OnRateChange: func(rate int) {
			log.Info().Msgf("RPC rate limit changed to %d/s", rate)
		},
	})
	if err != nil {
		return nil, err
	}

	if sg != nil {
		client.AddSigner(sg)
	}
	if cfg.AutoConfirm {
		client.SetConfirmer(signer.AutoConfirm)
	} else {
		client.SetConfirmer(&signer.TerminalConfirmer{In: os.Stdin, Out: c.App.Writer})
	}

	return &session{
		client: client,
		app:    core.New(client, core.OptionsFromConfig(cfg, account)),
	}, nil
}

func keystoreSigner(c *cli.Context) (*signer.MnemonicSigner, error) {
	k, err := loadKeystore(c)
	if err != nil {
		return nil, err
	}

	m, err := signer.NewFromSN(k.Entropy)
	if err != nil {
		return nil, err
	}
	return m.Signer(k.Path)
}

func loadKeystore(c *cli.Context) (*cmn.KeyRecord, error) {
	file := cmn.KeystorePath()
	if !cmn.KeystoreExists(file) {
		return nil, errors.New("no signer, run: web3stake signer create")
	}

	pass, err := password(c, "Keystore password: ")
	if err != nil {
		return nil, err
	}
	return cmn.OpenKeystore(file, pass)
}

// password comes from --password, the terminal, or a line of stdin.
func password(c *cli.Context, prompt string) (string, error) {
	if p := c.String(passwordFlag.Name); p != "" {
		return p, nil
	}
	return readPassword(c.App.Writer, os.Stdin, prompt)
}

func readPassword(out io.Writer, in *os.File, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	defer fmt.Fprintln(out)

	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// watch prints lifecycle updates until the returned stop is called.
func watch(out io.Writer) (stop func()) {
	ch := bus.Subscribe("tx", "ui")
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range ch {
			switch d := msg.Data.(type) {
			case *bus.B_TxLifecycle:
				line := fmt.Sprintf("  [%s] %s", d.Status, d.Title)
				if d.TxHash != "" {
					line += " " + d.TxHash
				}
				fmt.Fprintln(out, line)
			}
		}
	}()

	return func() {
		bus.Unsubscribe(ch)
		<-done
	}
}

func printJSON(out io.Writer, v any) error {
	e := json.NewEncoder(out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// finish prints the outcome of a write and turns it into the exit status.
func finish(out io.Writer, app *core.App, ok bool) error {
	if n := app.Notifier().LastNotification(); n != nil {
		fmt.Fprintf(out, "%s: %s\n", strings.ToUpper(string(n.Kind)), n.Message)
	}
	if !ok {
		return cli.Exit("", 1)
	}
	return nil
}

// referralAccount needs no chain: the account comes from --address or the keystore.
func referralAccount(c *cli.Context) (common.Address, error) {
	if a := c.String(addressFlag.Name); a != "" {
		account, ok := cmn.ParseAddress(a)
		if !ok {
			return common.Address{}, fmt.Errorf("invalid address: %s", a)
		}
		return account, nil
	}

	s, err := keystoreSigner(c)
	if err != nil {
		return common.Address{}, err
	}
	return s.Address(), nil
}
