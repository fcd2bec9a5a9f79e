// Package staking orchestrates stake, withdraw and claim flows against the
// staking contract and reads the positions and referrer of an account.
package staking

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/eth"
	"github.com/AlexNa-Holdings/web3stake/lifecycle"
	"github.com/AlexNa-Holdings/web3stake/metrics"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/AlexNa-Holdings/web3stake/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Decimals int
	MinStake *big.Int // in token units
	Policy   retry.Policy
}

type Service struct {
	contract  *eth.Contract
	token     *token.Service
	lifecycle *lifecycle.Notifier
	decimals  int
	minStake  *big.Int
	policy    retry.Policy
}

func New(chain eth.Chain, address common.Address, tok *token.Service, lc *lifecycle.Notifier, opt Options) *Service {
	minStake := opt.MinStake
	if minStake == nil {
		minStake = new(big.Int)
	}
	return &Service{
		contract:  eth.NewStaking(chain, address),
		token:     tok,
		lifecycle: lc,
		decimals:  opt.Decimals,
		minStake:  minStake,
		policy:    opt.Policy,
	}
}

func (s *Service) Address() common.Address {
	return s.contract.Address
}

func (s *Service) Token() *token.Service {
	return s.token
}

func (s *Service) Lifecycle() *lifecycle.Notifier {
	return s.lifecycle
}

func (s *Service) MinStake() *big.Int {
	return new(big.Int).Set(s.minStake)
}

// texts are the notifications of one operation.
type texts struct {
	success   string
	cancelled string
	failed    string
}

type notActiveError struct {
	index int
}

func (e *notActiveError) Error() string {
	return fmt.Sprintf("stake #%d: %v", e.index, cmn.ErrStakeNotActive)
}

func (e *notActiveError) Unwrap() error {
	return cmn.ErrStakeNotActive
}

// guard refuses an operation whose class is already in flight.
func (s *Service) guard(op lifecycle.Op) error {
	if s.lifecycle.Busy(op) {
		return cmn.NewError(cmn.ClassValidation, string(op), lifecycle.ErrOperationInFlight)
	}
	return nil
}

func (s *Service) begin(op lifecycle.Op, title string) (*lifecycle.Session, error) {
	sess, err := s.lifecycle.Begin(op, title)
	if err != nil {
		return nil, cmn.NewError(cmn.ClassValidation, string(op), err)
	}
	return sess, nil
}

// report collapses the outcome of an operation to a bool and tells the user about it.
func (s *Service) report(op lifecycle.Op, err error, t texts) bool {
	if err == nil {
		metrics.Operations.WithLabelValues(string(op), "ok").Inc()
		s.lifecycle.Notify(lifecycle.KindSuccess, cmn.ClassUnknown, t.success)
		return true
	}

	class := cmn.ClassOf(err)
	metrics.Operations.WithLabelValues(string(op), class.String()).Inc()

	switch class {
	case cmn.ClassUserRejected:
		log.Info().Str("op", string(op)).Msg("Operation cancelled by user")
	case cmn.ClassValidation, cmn.ClassContractState:
		log.Warn().Err(err).Str("op", string(op)).Str("class", class.String()).Msg("Operation refused")
	default:
		log.Error().Err(err).Str("op", string(op)).Str("class", class.String()).Msgf("%s failed", op)
	}

	s.lifecycle.Notify(lifecycle.KindError, class, s.message(op, err, t))
	return false
}

func (s *Service) message(op lifecycle.Op, err error, t texts) string {
	var na *notActiveError
	switch {
	case errors.As(err, &na):
		return cmn.T(cmn.MsgStakeNotActive, na.index)
	case errors.Is(err, lifecycle.ErrOperationInFlight):
		return cmn.T(cmn.MsgBusy, string(op))
	case errors.Is(err, cmn.ErrBelowMinimum):
		return cmn.T(cmn.MsgMinStake, cmn.ToDisplayString(s.minStake, s.decimals, 0))
	case errors.Is(err, cmn.ErrInvalidAmount):
		return cmn.T(cmn.MsgInvalidAmount)
	case errors.Is(err, cmn.ErrInsufficientBalance):
		return cmn.T(cmn.MsgInsufficientBalance)
	case errors.Is(err, cmn.ErrSelfReferral):
		return cmn.T(cmn.MsgSelfReferral)
	case errors.Is(err, cmn.ErrReferrerRequired):
		return cmn.T(cmn.MsgReferrerRequired)
	case errors.Is(err, cmn.ErrInvalidReferrer):
		return cmn.T(cmn.MsgInvalidReferrer)
	case errors.Is(err, cmn.ErrNotDeployed):
		return cmn.T(cmn.MsgNotDeployed)
	case errors.Is(err, cmn.ErrSubmissionUnknown):
		return cmn.T(cmn.MsgSubmissionUnknown)
	case errors.Is(err, cmn.ErrProviderUnavailable):
		return cmn.T(cmn.MsgUnavailable)
	case cmn.IsUserRejected(err):
		return t.cancelled
	}
	return t.failed
}
