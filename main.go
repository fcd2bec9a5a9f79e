package main

import (
	"fmt"
	"os"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/command"
	"github.com/urfave/cli/v2"
)

const WEB3_STAKE = `
 _    _  ____  ____  ___   ___  _____  ___   _  __ ____
| |  | ||  __||  _ \|_  | / __||_   _|/ _ \ | |/ /|  __|
| |/\| || |_  | |_) |_| | \__ \  | | | |_| ||   < | |_
 \_/\_/ |____||____/|___| |___/  |_| |_| |_||_|\_\|____|`

var app = cli.NewApp()

func init() {
	app.Name = "web3stake"
	app.Usage = "stake tokens, claim rewards and manage referrals"
	app.Version = cmn.VERSION
	app.Flags = command.GlobalFlags
	app.Before = command.Before
	app.Commands = command.Commands()
	command.Banner = WEB3_STAKE
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
