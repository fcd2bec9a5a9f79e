package signer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/rs/zerolog/log"
)

// TerminalConfirmer asks on Out and reads the answer from In.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c *TerminalConfirmer) Confirm(ctx context.Context, p *Prompt) error {
	fmt.Fprintf(c.Out, "Confirm transaction\n  %s\nSign and send? [y/N]: ", p)

	answer := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(c.In).ReadString('\n')
		if err != nil && line == "" {
			log.Debug().Err(err).Msg("TerminalConfirmer: read")
		}
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case a := <-answer:
		if a == "y" || a == "yes" {
			return nil
		}
		return fmt.Errorf("%s: %w", p.Method, cmn.ErrUserRejected)
	}
}

// RejectAll declines every prompt.
var RejectAll = ConfirmFunc(func(ctx context.Context, p *Prompt) error {
	return fmt.Errorf("%s: %w", p.Method, cmn.ErrUserRejected)
})
