package ws

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/staking"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleStakeMethod(c context.Context, req RPCRequest, ctx *ConContext, res *RPCResponse) {
	method := strings.TrimPrefix(req.Method, "stake_")
	var err error

	switch method {
	case "stake":
		err = s.stake(c, req, ctx, res)
	case "withdraw":
		err = s.withdraw(c, req, res)
	case "claim":
		res.Result = s.App.ClaimRewards(c)
	case "approve":
		err = s.approve(c, req, res)
	case "balance":
		err = s.balance(c, req, res)
	case "positions":
		err = s.positions(c, res)
	case "snapshot":
		res.Result, err = s.App.Refresh(c)
	case "referrer":
		err = s.referrer(c, req, res)
	case "referralLink":
		res.Result = s.App.ReferralLink()
	case "lifecycle":
		res.Result = s.App.Lifecycle()
	case "subscribe":
		err = subscribe(req, ctx, res)
	case "unsubscribe":
		err = unsubscribe(req, ctx, res)
	default:
		log.Error().Msgf("Method not found: %v", req.Method)
		res.Error = &RPCError{
			Code:    -32601,
			Message: "Method not found",
		}
		return
	}

	if err != nil {
		log.Error().Err(err).Msgf("Error handling method: %v", req.Method)
		res.Result = nil
		res.Error = &RPCError{
			Code:    -32602,
			Message: err.Error(),
		}
	}
}

// stake_stake [amount, referrer]
func (s *Server) stake(c context.Context, req RPCRequest, ctx *ConContext, res *RPCResponse) error {
	amount, err := paramString(req, 0)
	if err != nil {
		return err
	}
	referrer, _ := paramString(req, 1)

	res.Result = s.App.Stake(c, amount, referrer, staking.Callbacks{
		OnApproving: func() { ctx.notify(EventProgress, "approving") },
		OnStaking:   func() { ctx.notify(EventProgress, "staking") },
	})
	return nil
}

// stake_withdraw [index]
func (s *Server) withdraw(c context.Context, req RPCRequest, res *RPCResponse) error {
	index, err := paramInt(req, 0)
	if err != nil {
		return err
	}
	res.Result = s.App.Withdraw(c, index)
	return nil
}

// stake_approve [spender, amount]
func (s *Server) approve(c context.Context, req RPCRequest, res *RPCResponse) error {
	spender, err := paramAddress(req, 0)
	if err != nil {
		return err
	}
	amount, err := paramString(req, 1)
	if err != nil {
		return err
	}
	res.Result = s.App.EnsureApproved(c, spender, amount)
	return nil
}

// stake_balance [address?]
func (s *Server) balance(c context.Context, req RPCRequest, res *RPCResponse) error {
	address := s.App.Account()
	if len(params(req)) > 0 {
		a, err := paramAddress(req, 0)
		if err != nil {
			return err
		}
		address = a
	}
	res.Result = s.App.GetBalance(c, address)
	return nil
}

func (s *Server) positions(c context.Context, res *RPCResponse) error {
	list, err := s.App.Positions(c)
	if err != nil {
		return err
	}
	pending, err := s.App.TotalPendingRewards(c)
	if err != nil {
		return err
	}
	res.Result = map[string]any{
		"positions":      list,
		"pendingRewards": pending,
	}
	return nil
}

// stake_referrer [input?] returns the referrer status and, with an input,
// the referrer a stake would use.
func (s *Server) referrer(c context.Context, req RPCRequest, res *RPCResponse) error {
	status, err := s.App.ReferrerStatus(c)
	if err != nil {
		return err
	}
	result := map[string]any{"status": status}

	if input, err := paramString(req, 0); err == nil {
		if u := staking.ReferrerFromURL(input); u != "" {
			input = u
		}
		r, err := s.App.ResolveReferrer(c, input)
		if err != nil {
			result["error"] = cmn.ClassOf(err).String()
		} else {
			result["resolution"] = r
		}
	}

	res.Result = result
	return nil
}

// stake_subscribe [event]
func subscribe(req RPCRequest, ctx *ConContext, res *RPCResponse) error {
	event, err := paramString(req, 0)
	if err != nil {
		return err
	}
	if !knownEvents[event] {
		return fmt.Errorf("unknown event %q: %w", event, ErrInvalidParams)
	}
	res.Result = ctx.SM.addSubscription(event)
	return nil
}

// stake_unsubscribe [id]
func unsubscribe(req RPCRequest, ctx *ConContext, res *RPCResponse) error {
	id, err := paramString(req, 0)
	if err != nil {
		return err
	}
	res.Result = ctx.SM.removeSubscription(id)
	return nil
}

func params(req RPCRequest) []any {
	p, _ := req.Params.([]any)
	return p
}

func paramString(req RPCRequest, i int) (string, error) {
	p := params(req)
	if i >= len(p) {
		return "", fmt.Errorf("missing param %d: %w", i, ErrInvalidParams)
	}
	s, ok := p[i].(string)
	if !ok {
		return "", fmt.Errorf("param %d is not a string: %w", i, ErrInvalidParams)
	}
	return s, nil
}

func paramInt(req RPCRequest, i int) (int, error) {
	p := params(req)
	if i >= len(p) {
		return 0, fmt.Errorf("missing param %d: %w", i, ErrInvalidParams)
	}
	switch v := p[i].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("param %d is not an integer: %w", i, ErrInvalidParams)
		}
		return int(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 32)
		if err != nil {
			return 0, fmt.Errorf("param %d: %v: %w", i, err, ErrInvalidParams)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("param %d is not a number: %w", i, ErrInvalidParams)
}

func paramAddress(req RPCRequest, i int) (common.Address, error) {
	s, err := paramString(req, i)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := cmn.ParseAddress(s)
	if !ok {
		return common.Address{}, fmt.Errorf("param %d is not an address: %w", i, ErrInvalidParams)
	}
	return a, nil
}
