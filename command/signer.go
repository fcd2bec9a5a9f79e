package command

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/signer"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var forceFlag = &cli.BoolFlag{
	Name:  "force",
	Usage: "overwrite an existing keystore",
}

func NewSignerCommand() *cli.Command {
	return &cli.Command{
		Name:  "signer",
		Usage: "Manage the signing key",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a new mnemonic signer",
				Flags: []cli.Flag{
					forceFlag,
					&cli.StringFlag{Name: "name", Value: "main", Usage: "signer name"},
				},
				Action: signerCreate,
			},
			{
				Name:  "import",
				Usage: "Import a signer from a mnemonic phrase",
				Flags: []cli.Flag{
					forceFlag,
					&cli.StringFlag{Name: "name", Value: "main", Usage: "signer name"},
					&cli.StringFlag{Name: "mnemonic", Usage: "BIP-39 phrase (read from stdin if omitted)"},
				},
				Action: signerImport,
			},
			{
				Name:   "address",
				Usage:  "Print the address of the signer",
				Action: signerAddress,
			},
		},
	}
}

func signerCreate(c *cli.Context) error {
	entropy, words, err := signer.NewEntropy()
	if err != nil {
		return err
	}

	addr, err := saveSigner(c, entropy)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Signer created: %s\n\n", addr)
	fmt.Fprintf(c.App.Writer, "Write down the recovery phrase and keep it safe:\n\n  %s\n\n", words)
	return nil
}

func signerImport(c *cli.Context) error {
	words := c.String("mnemonic")
	if words == "" {
		fmt.Fprint(c.App.Writer, "Mnemonic: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		words = line
	}

	if _, err := signer.NewFromWords(words); err != nil {
		return err
	}
	entropy, err := signer.EntropyFromWords(words)
	if err != nil {
		return err
	}

	addr, err := saveSigner(c, entropy)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Signer imported: %s\n", addr)
	return nil
}

func signerAddress(c *cli.Context) error {
	s, err := keystoreSigner(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, s.Address().Hex())
	return nil
}

func saveSigner(c *cli.Context, entropy string) (string, error) {
	file := cmn.KeystorePath()
	if cmn.KeystoreExists(file) && !c.Bool(forceFlag.Name) {
		return "", fmt.Errorf("keystore %s already exists, use --force to overwrite", file)
	}

	m, err := signer.NewFromSN(entropy)
	if err != nil {
		return "", err
	}
	s, err := m.Signer(cmn.Config.DerivationPath)
	if err != nil {
		return "", err
	}

	pass, err := newPassword(c)
	if err != nil {
		return "", err
	}

	k := &cmn.KeyRecord{
		Name:    c.String("name"),
		Entropy: entropy,
		Path:    cmn.Config.DerivationPath,
	}
	if err := cmn.SaveKeystore(file, k, pass); err != nil {
		return "", err
	}

	log.Info().Str("address", s.Address().Hex()).Str("path", k.Path).Msg("Signer saved")
	return s.Address().Hex(), nil
}

// newPassword asks twice unless --password is given.
func newPassword(c *cli.Context) (string, error) {
	if p := c.String(passwordFlag.Name); p != "" {
		return p, nil
	}

	p1, err := readPassword(c.App.Writer, os.Stdin, "New keystore password: ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p1) == "" {
		return "", errors.New("empty password")
	}
	p2, err := readPassword(c.App.Writer, os.Stdin, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", errors.New("passwords do not match")
	}
	return p1, nil
}
