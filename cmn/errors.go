package cmn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/rpc"
)

// Class is the failure class an error belongs to. The orchestration layer
// decides about retries and notifications by class only.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassUserRejected
	ClassTransient
	ClassContractState
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "ValidationError"
	case ClassUserRejected:
		return "UserRejected"
	case ClassTransient:
		return "TransientChainError"
	case ClassContractState:
		return "ContractStateError"
	default:
		return "UnknownError"
	}
}

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrBelowMinimum        = errors.New("amount below minimum stake")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSelfReferral        = errors.New("cannot refer yourself")
	ErrReferrerRequired    = errors.New("referrer required")
	ErrInvalidReferrer     = errors.New("invalid referrer address")
	ErrUserRejected        = errors.New("rejected by user")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrNotDeployed         = errors.New("contract not deployed")
	ErrStakeNotActive      = errors.New("stake not active")
	ErrReverted            = errors.New("transaction reverted")
	ErrNoSigner            = errors.New("no signer for address")
	ErrSubmissionUnknown   = errors.New("transaction handed to the node, status unknown")
)

var sentinelClasses = []struct {
	err   error
	class Class
}{
	{ErrInvalidAmount, ClassValidation},
	{ErrBelowMinimum, ClassValidation},
	{ErrInsufficientBalance, ClassValidation},
	{ErrSelfReferral, ClassValidation},
	{ErrReferrerRequired, ClassValidation},
	{ErrInvalidReferrer, ClassValidation},
	{ErrUserRejected, ClassUserRejected},
	{ErrProviderUnavailable, ClassTransient},
	{ErrNotDeployed, ClassContractState},
	{ErrStakeNotActive, ClassContractState},
	{ErrReverted, ClassContractState},
	{ErrNoSigner, ClassValidation},
	{ErrSubmissionUnknown, ClassUnknown},
}

// Error carries an explicit class together with the operation that failed.
type Error struct {
	Class Class
	Op    string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Msg != "" {
		if s != "" {
			s += ": "
		}
		s += e.Msg
	}
	if e.Err != nil {
		if s != "" {
			s += ": "
		}
		s += e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(class Class, op string, err error) *Error {
	return &Error{Class: class, Op: op, Err: err}
}

func Errorf(class Class, op string, format string, args ...any) *Error {
	return &Error{Class: class, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// rpcCoder is implemented by go-ethereum's rpc.Error values.
type rpcCoder interface {
	ErrorCode() int
}

// EIP-1193 "user rejected request"
const userRejectedCode = 4001

var transientMarkers = []string{
	"too many requests", "rate limit",
	"bad gateway", "service unavailable", "gateway timeout",
	"timeout", "timed out", "connection refused", "connection reset",
	"nonce too low", "replacement transaction underpriced",
	"header not found",
}

// transientWords only count as whole words of the message, so hex data or
// longer words that contain them do not match.
var transientWords = map[string]bool{
	"429": true, "502": true, "503": true, "504": true, "eof": true,
}

var transientStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

var revertMarkers = []string{
	"execution reverted", "invalid opcode",
}

var rejectionMarkers = []string{
	"user rejected", "user denied", "rejected by user", "cancelled by user",
}

// ClassOf classifies any error. nil is ClassUnknown.
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var e *Error
	if errors.As(err, &e) && e.Class != ClassUnknown {
		return e.Class
	}

	for _, s := range sentinelClasses {
		if errors.Is(err, s.err) {
			return s.class
		}
	}

	var rc rpcCoder
	if errors.As(err, &rc) && rc.ErrorCode() == userRejectedCode {
		return ClassUserRejected
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ClassTransient
	}

	var he rpc.HTTPError
	if errors.As(err, &he) && transientStatus[he.StatusCode] {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	for _, m := range rejectionMarkers {
		if strings.Contains(msg, m) {
			return ClassUserRejected
		}
	}
	for _, m := range revertMarkers {
		if strings.Contains(msg, m) {
			return ClassContractState
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return ClassTransient
		}
	}
	for _, w := range strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if transientWords[w] {
			return ClassTransient
		}
	}

	return ClassUnknown
}

func IsUserRejected(err error) bool {
	return ClassOf(err) == ClassUserRejected
}
