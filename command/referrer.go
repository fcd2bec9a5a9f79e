package command

import (
	"fmt"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/staking"
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func NewReferrerCommand() *cli.Command {
	return &cli.Command{
		Name:      "referrer",
		Usage:     "Show the bound referrer, or which referrer a stake would use",
		ArgsUsage: "[address or referral link]",
		Flags:     []cli.Flag{addressFlag, jsonFlag},
		Action: func(c *cli.Context) error {
			s, err := openReadOnly(c)
			if err != nil {
				return err
			}
			defer s.Close()

			if c.NArg() == 0 {
				rs, err := s.app.ReferrerStatus(c.Context)
				if err != nil {
					return err
				}
				if c.Bool(jsonFlag.Name) {
					return printJSON(c.App.Writer, rs)
				}
				if !rs.Bound {
					fmt.Fprintln(c.App.Writer, "No referrer bound yet")
					return nil
				}
				state := "active"
				if !rs.Active {
					state = "no active stake"
				}
				fmt.Fprintf(c.App.Writer, "Referrer: %s (%s)\n", rs.Referrer, state)
				return nil
			}

			r, err := s.app.ResolveReferrer(c.Context, staking.ReferrerFromURL(c.Args().First()))
			if err != nil {
				return err
			}
			if c.Bool(jsonFlag.Name) {
				return printJSON(c.App.Writer, r)
			}
			fmt.Fprintf(c.App.Writer, "Effective referrer: %s\n", r.Effective.Hex())
			if r.Conflict {
				fmt.Fprintf(c.App.Writer, "Referrer already bound, %s would be ignored\n", r.Input)
			}
			return nil
		},
	}
}

func NewReferralLinkCommand() *cli.Command {
	return &cli.Command{
		Name:  "referral-link",
		Usage: "Print the referral link of the account and copy it to the clipboard",
		Flags: []cli.Flag{
			addressFlag,
			&cli.BoolFlag{
				Name:  "no-clipboard",
				Usage: "do not copy the link",
			},
		},
		Action: func(c *cli.Context) error {
			account, err := referralAccount(c)
			if err != nil {
				return err
			}

			link := staking.ReferralLink(cmn.Config.ReferralBaseURL, account)
			fmt.Fprintln(c.App.Writer, link)

			if !c.Bool("no-clipboard") {
				if err := clipboard.WriteAll(link); err != nil {
					log.Warn().Err(err).Msg("Cannot copy referral link to clipboard")
				} else {
					fmt.Fprintln(c.App.Writer, "Copied to clipboard")
				}
			}
			return nil
		},
	}
}
