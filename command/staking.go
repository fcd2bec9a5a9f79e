package command

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/staking"
	"github.com/urfave/cli/v2"
)

func NewBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show token balance and staking totals",
		ArgsUsage: "[address]",
		Flags:     []cli.Flag{addressFlag, jsonFlag},
		Action: func(c *cli.Context) error {
			s, err := openReadOnly(c)
			if err != nil {
				return err
			}
			defer s.Close()

			if c.NArg() > 0 {
				a, ok := cmn.ParseAddress(c.Args().First())
				if !ok {
					return fmt.Errorf("invalid address: %s", c.Args().First())
				}
				out := s.app.GetBalance(c.Context, a)
				if c.Bool(jsonFlag.Name) {
					return printJSON(c.App.Writer, map[string]string{"address": a.Hex(), "balance": out})
				}
				fmt.Fprintln(c.App.Writer, out)
				return nil
			}

			snap, err := s.app.Refresh(c.Context)
			if err != nil {
				return err
			}
			if c.Bool(jsonFlag.Name) {
				return printJSON(c.App.Writer, snap)
			}

			symbol := ""
			if md, err := s.app.Metadata(c.Context); err == nil {
				symbol = " " + md.Symbol
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Account:\t%s\n", snap.Account)
			fmt.Fprintf(w, "Balance:\t%s%s\n", snap.Balance, symbol)
			fmt.Fprintf(w, "Staked:\t%s%s\n", snap.TotalStaked, symbol)
			fmt.Fprintf(w, "Pending rewards:\t%s%s\n", snap.PendingRewards, symbol)
			fmt.Fprintf(w, "Referred:\t%s%s\n", snap.TotalReferred, symbol)
			fmt.Fprintf(w, "Rate:\t%s\n", bps(snap.StakingRateBps))
			if snap.Referrer != "" {
				fmt.Fprintf(w, "Referrer:\t%s\n", snap.Referrer)
			}
			return w.Flush()
		},
	}
}

func NewPositionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "positions",
		Usage: "List stake positions",
		Flags: []cli.Flag{
			addressFlag,
			jsonFlag,
			&cli.BoolFlag{
				Name:  "all",
				Usage: "include withdrawn positions",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := openReadOnly(c)
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.app.Positions(c.Context)
			if err != nil {
				return err
			}
			if c.Bool(jsonFlag.Name) {
				return printJSON(c.App.Writer, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(c.App.Writer, "No stake positions")
				return nil
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tAMOUNT\tSTARTED\tRATE\tPENDING\tFEE\tSTATUS")
			for _, p := range list {
				if !p.Active && !c.Bool("all") {
					continue
				}
				status := "active"
				if !p.Active {
					status = "withdrawn"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					p.Index, p.Amount, p.StartTime.Format("2006-01-02 15:04"), bps(p.RateBps),
					p.PendingRewards, p.WithdrawFee, status)
			}
			w.Flush()

			total, err := s.app.TotalPendingRewards(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Total pending rewards: %s\n", total)
			return nil
		},
	}
}

func NewStakeCommand() *cli.Command {
	return &cli.Command{
		Name:      "stake",
		Usage:     "Stake tokens",
		ArgsUsage: "<amount> [referrer address or link]",
		Description: `Stakes <amount> whole tokens. When the staking contract cannot spend
the amount yet, an approval is sent and mined first.

A referrer is required for the first stake of an account. Once bound on chain
it cannot change and any other referrer given here is ignored with a warning.`,
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("no amount specified")
			}
			amount := c.Args().Get(0)
			referrer := staking.ReferrerFromURL(c.Args().Get(1))

			s, err := openSigner(c)
			if err != nil {
				return err
			}
			defer s.Close()

			stop := watch(c.App.Writer)
			ok := s.app.Stake(c.Context, amount, referrer, staking.Callbacks{
				OnApproving: func() { fmt.Fprintln(c.App.Writer, "Approving token spend...") },
				OnStaking:   func() { fmt.Fprintln(c.App.Writer, "Staking...") },
			})
			stop()

			return finish(c.App.Writer, s.app, ok)
		},
	}
}

func NewWithdrawCommand() *cli.Command {
	return &cli.Command{
		Name:      "withdraw",
		Usage:     "Withdraw a stake position",
		ArgsUsage: "<index>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("no position index specified")
			}
			index, err := strconv.Atoi(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid position index: %s", c.Args().First())
			}

			s, err := openSigner(c)
			if err != nil {
				return err
			}
			defer s.Close()

			stop := watch(c.App.Writer)
			ok := s.app.Withdraw(c.Context, index)
			stop()

			return finish(c.App.Writer, s.app, ok)
		},
	}
}

func NewClaimCommand() *cli.Command {
	return &cli.Command{
		Name:  "claim",
		Usage: "Claim pending rewards",
		Action: func(c *cli.Context) error {
			s, err := openSigner(c)
			if err != nil {
				return err
			}
			defer s.Close()

			stop := watch(c.App.Writer)
			ok := s.app.ClaimRewards(c.Context)
			stop()

			return finish(c.App.Writer, s.app, ok)
		},
	}
}

func NewApproveCommand() *cli.Command {
	return &cli.Command{
		Name:      "approve",
		Usage:     "Approve a spender for the staked token",
		ArgsUsage: "<amount> [spender]",
		Description: `Approves exactly <amount> unless the current allowance already covers it.
The spender defaults to the staking contract.`,
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("no amount specified")
			}

			spender := cmn.Config.Staking()
			if c.NArg() > 1 {
				var ok bool
				spender, ok = cmn.ParseAddress(c.Args().Get(1))
				if !ok {
					return fmt.Errorf("invalid spender address: %s", c.Args().Get(1))
				}
			}

			s, err := openSigner(c)
			if err != nil {
				return err
			}
			defer s.Close()

			stop := watch(c.App.Writer)
			ok := s.app.EnsureApproved(c.Context, spender, c.Args().First())
			stop()

			return finish(c.App.Writer, s.app, ok)
		},
	}
}

func bps(v int64) string {
	return fmt.Sprintf("%d.%02d%%", v/100, v%100)
}
