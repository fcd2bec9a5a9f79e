package cmn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
)

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestClassOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassUnknown},
		{"wrapped sentinel", fmt.Errorf("stake: %w", ErrBelowMinimum), ClassValidation},
		{"self referral", ErrSelfReferral, ClassValidation},
		{"rejected sentinel", fmt.Errorf("sign: %w", ErrUserRejected), ClassUserRejected},
		{"rpc 4001", codedError{4001, "request refused"}, ClassUserRejected},
		{"rpc other code", codedError{-32000, "header not found"}, ClassTransient},
		{"revert", codedError{3, "execution reverted: invalid stake index"}, ClassContractState},
		{"user denied text", errors.New("MetaMask Tx Signature: User denied transaction signature."), ClassUserRejected},
		{"429", errors.New("429 Too Many Requests"), ClassTransient},
		{"gateway", errors.New("502 Bad Gateway"), ClassTransient},
		{"nonce", errors.New("nonce too low"), ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"not active", fmt.Errorf("withdraw #2: %w", ErrStakeNotActive), ClassContractState},
		{"not deployed", ErrNotDeployed, ClassContractState},
		{"explicit", NewError(ClassContractState, "withdraw", errors.New("boom")), ClassContractState},
		{"plain", errors.New("something odd"), ClassUnknown},
		{"eof word", errors.New("read: unexpected EOF"), ClassTransient},
		{"503 word", errors.New("503 Service Temporarily Down"), ClassTransient},
		{"code inside hex", errors.New("call failed: data 0x4295030a0504"), ClassUnknown},
		{"eof inside word", errors.New("account geoffrey not found"), ClassUnknown},
		{"http status", rpc.HTTPError{StatusCode: 503, Status: "503"}, ClassTransient},
		{"http status other", rpc.HTTPError{StatusCode: 401, Status: "401 Unauthorized"}, ClassUnknown},
		{"already known", errors.New("already known"), ClassUnknown},
		{"submission unknown", fmt.Errorf("%w: timeout", ErrSubmissionUnknown), ClassUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ClassOf(c.err))
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	e := NewError(ClassTransient, "balanceOf", ErrProviderUnavailable)
	assert.Equal(t, "balanceOf: provider unavailable", e.Error())
	assert.ErrorIs(t, e, ErrProviderUnavailable)

	e2 := Errorf(ClassValidation, "stake", "amount %s too small", "1")
	assert.Equal(t, "stake: amount 1 too small", e2.Error())
	assert.Equal(t, "ValidationError", ClassOf(e2).String())
}
