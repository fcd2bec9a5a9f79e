package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/ws"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// Banner is printed when the server starts.
var Banner string

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the staking operations to a browser over websocket",
		Description: `Listens on ws://localhost:<ws_port>/ws for JSON-RPC requests (stake_*
methods) and pushes lifecycle, notification and snapshot events to subscribers.
Prometheus metrics are served on /metrics.

With --address the server is read-only: writes fail for lack of a signer.`,
		Flags: []cli.Flag{
			addressFlag,
			&cli.IntFlag{
				Name:  "port",
				Usage: "override ws_port from the config",
			},
		},
		Action: func(c *cli.Context) error {
			if !cmn.Config.WSEnabled {
				return errors.New("websocket server is disabled (ws_enabled: false)")
			}

			s, err := openReadOnly(c)
			if err != nil {
				return err
			}
			defer s.Close()

			port := cmn.Config.WSPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			if _, err := s.app.Refresh(c.Context); err != nil {
				log.Warn().Err(err).Msg("serve: initial refresh failed")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := ws.New(s.app, port, cmn.Config.WSOrigins)
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			if Banner != "" {
				fmt.Fprintln(c.App.Writer, Banner)
			}
			fmt.Fprintf(c.App.Writer, "Account %s\nListening on ws://localhost:%d/ws\n", s.app.Account().Hex(), port)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			fmt.Fprintln(c.App.Writer, "Shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
}
