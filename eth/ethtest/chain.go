// Package ethtest provides an in-memory token and staking contract pair
// behind the eth.Chain interface. Calldata and results go through the real
// ABIs so callers exercise their packing and unpacking code.
package ethtest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/eth"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	TokenAddress   = common.HexToAddress("0x70c3e00000000000000000000000000000000001")
	StakingAddress = common.HexToAddress("0x57a4e00000000000000000000000000000000002")
)

// UserInfo mirrors the getUserInfo tuple.
type UserInfo struct {
	TotalStaked   *big.Int
	TotalReferred *big.Int
	Referrer      common.Address
	StakingRate   *big.Int
}

// Stake mirrors the StakeInfo tuple.
type Stake struct {
	Amount         *big.Int
	StartTime      *big.Int
	Rate           *big.Int
	PendingRewards *big.Int
	WithdrawFee    *big.Int
	Active         bool
}

// Sent is one transaction submitted through Send.
type Sent struct {
	From   common.Address
	To     common.Address
	Method string
	Args   []interface{}
	Tx     *types.Transaction
	Mined  bool
}

type Chain struct {
	Symbol   string
	Decimals uint8
	Rate     *big.Int // staking rate given to new users, bps
	FeeBps   int64    // withdraw fee of new stakes

	mu         sync.Mutex
	notDeploy  map[common.Address]bool
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	users      map[common.Address]*UserInfo
	stakes     map[common.Address][]*Stake
	sent       []*Sent
	byHash     map[common.Hash]*Sent
	events     []string
	calls      map[string]int
	callErrs   map[string][]error
	sendErrs   map[string][]error
	waitErrs   map[string][]error
	onCall     map[string]func()
	nonce      uint64
}

var _ eth.Chain = (*Chain)(nil)

func New() *Chain {
	return &Chain{
		Symbol:     "MBT",
		Decimals:   18,
		Rate:       big.NewInt(1000),
		FeeBps:     500,
		notDeploy:  make(map[common.Address]bool),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
		users:      make(map[common.Address]*UserInfo),
		stakes:     make(map[common.Address][]*Stake),
		byHash:     make(map[common.Hash]*Sent),
		calls:      make(map[string]int),
		callErrs:   make(map[string][]error),
		sendErrs:   make(map[string][]error),
		waitErrs:   make(map[string][]error),
		onCall:     make(map[string]func()),
	}
}

// Tokens converts whole tokens at 18 decimals.
func Tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// ---------- state setup ----------

func (c *Chain) SetBalance(a common.Address, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[a] = new(big.Int).Set(v)
}

func (c *Chain) BalanceOf(a common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(a))
}

func (c *Chain) SetAllowance(owner, spender common.Address, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(v)
}

func (c *Chain) AllowanceOf(owner, spender common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.allowance(owner, spender))
}

func (c *Chain) BindReferrer(user, referrer common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user(user).Referrer = referrer
}

func (c *Chain) User(a common.Address) UserInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.user(a)
}

func (c *Chain) AddStake(user common.Address, s Stake) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stakes[user] = append(c.stakes[user], fill(s))
	u := c.user(user)
	if s.Active {
		u.TotalStaked = new(big.Int).Add(u.TotalStaked, s.Amount)
	}
}

func (c *Chain) SetStakeActive(user common.Address, index int, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stakes[user][index].Active = active
}

func (c *Chain) Stakes(user common.Address) []Stake {
	c.mu.Lock()
	defer c.mu.Unlock()
	var r []Stake
	for _, s := range c.stakes[user] {
		r = append(r, *s)
	}
	return r
}

func (c *Chain) Undeploy(a common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notDeploy[a] = true
}

// ---------- failure programming ----------

// FailCall makes the next len(errs) reads of method fail with errs in order.
func (c *Chain) FailCall(method string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callErrs[method] = append(c.callErrs[method], errs...)
}

// FailSend makes the next len(errs) sends of method fail with errs in order.
func (c *Chain) FailSend(method string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErrs[method] = append(c.sendErrs[method], errs...)
}

func (c *Chain) FailWait(method string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitErrs[method] = append(c.waitErrs[method], errs...)
}

// OnCall runs f before every read of method.
func (c *Chain) OnCall(method string, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCall[method] = f
}

// ---------- observation ----------

func (c *Chain) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var r []Sent
	for _, s := range c.sent {
		r = append(r, *s)
	}
	return r
}

func (c *Chain) SentMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var r []string
	for _, s := range c.sent {
		r = append(r, s.Method)
	}
	return r
}

// Events is the ordered log of call:, send: and mined: events.
func (c *Chain) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// ---------- eth.Chain ----------

func (c *Chain) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if (addr == TokenAddress || addr == StakingAddress) && !c.notDeploy[addr] {
		return []byte{0x60, 0x80, 0x60, 0x40}, nil
	}
	return nil, nil
}

func (c *Chain) Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error) {
	m, args, err := c.decode(to, data)
	if err != nil || m == nil {
		return nil, err
	}

	c.mu.Lock()
	hook := c.onCall[m.Name]
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[m.Name]++
	c.events = append(c.events, "call:"+m.Name)
	if err := pop(c.callErrs, m.Name); err != nil {
		return nil, err
	}

	var out []interface{}
	switch m.Name {
	case "balanceOf":
		out = []interface{}{c.balance(args[0].(common.Address))}
	case "allowance":
		out = []interface{}{c.allowance(args[0].(common.Address), args[1].(common.Address))}
	case "decimals":
		out = []interface{}{c.Decimals}
	case "symbol":
		out = []interface{}{c.Symbol}
	case "name":
		out = []interface{}{c.Symbol + " Token"}
	case "getUserInfo":
		out = []interface{}{*c.user(args[0].(common.Address))}
	case "getUserStakes":
		list := []Stake{}
		for _, s := range c.stakes[args[0].(common.Address)] {
			list = append(list, *s)
		}
		out = []interface{}{list}
	case "getUserStakeInfo":
		user, index := args[0].(common.Address), args[1].(*big.Int)
		stakes := c.stakes[user]
		if !index.IsInt64() || index.Int64() >= int64(len(stakes)) {
			return nil, errors.New("execution reverted: invalid stake index")
		}
		out = []interface{}{*stakes[index.Int64()]}
	default:
		return nil, fmt.Errorf("ethtest: %s is not a read", m.Name)
	}

	return m.Outputs.Pack(out...)
}

func (c *Chain) Send(ctx context.Context, from common.Address, to common.Address, data []byte) (*types.Transaction, error) {
	m, args, err := c.decode(to, data)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("ethtest: no contract at %s", to.Hex())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := pop(c.sendErrs, m.Name); err != nil {
		c.events = append(c.events, "reject:"+m.Name)
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    c.nonce,
		To:       &to,
		Gas:      100_000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
	c.nonce++

	s := &Sent{From: from, To: to, Method: m.Name, Args: args, Tx: tx}
	c.sent = append(c.sent, s)
	c.byHash[tx.Hash()] = s
	c.events = append(c.events, "send:"+m.Name)

	return tx, nil
}

// Wait mines the transaction: its effect on contract state is applied here.
func (c *Chain) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.byHash[tx.Hash()]
	if !ok {
		return nil, fmt.Errorf("ethtest: unknown transaction %s", tx.Hash().Hex())
	}

	if err := pop(c.waitErrs, s.Method); err != nil {
		return nil, err
	}

	receipt := &types.Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(c.events))),
		Status:      types.ReceiptStatusSuccessful,
	}

	if !s.Mined {
		if err := c.apply(s); err != nil {
			receipt.Status = types.ReceiptStatusFailed
			c.events = append(c.events, "revert:"+s.Method)
			return receipt, fmt.Errorf("%w: %s: %v", cmn.ErrReverted, s.Method, err)
		}
		s.Mined = true
		c.events = append(c.events, "mined:"+s.Method)
	}

	return receipt, nil
}

// ---------- contract logic ----------

func (c *Chain) apply(s *Sent) error {
	switch s.Method {
	case "approve":
		spender, amount := s.Args[0].(common.Address), s.Args[1].(*big.Int)
		c.allowances[[2]common.Address{s.From, spender}] = new(big.Int).Set(amount)

	case "stake":
		amount, referrer := s.Args[0].(*big.Int), s.Args[1].(common.Address)
		if c.allowance(s.From, StakingAddress).Cmp(amount) < 0 {
			return errors.New("insufficient allowance")
		}
		if c.balance(s.From).Cmp(amount) < 0 {
			return errors.New("insufficient balance")
		}
		u := c.user(s.From)
		if u.Referrer == (common.Address{}) {
			if referrer == (common.Address{}) || referrer == s.From {
				return errors.New("invalid referrer")
			}
			u.Referrer = referrer
		}
		c.balances[s.From] = new(big.Int).Sub(c.balance(s.From), amount)
		c.allowances[[2]common.Address{s.From, StakingAddress}] = new(big.Int).Sub(c.allowance(s.From, StakingAddress), amount)
		u.TotalStaked = new(big.Int).Add(u.TotalStaked, amount)
		r := c.user(u.Referrer)
		r.TotalReferred = new(big.Int).Add(r.TotalReferred, amount)

		fee := new(big.Int).Mul(amount, big.NewInt(c.FeeBps))
		fee.Div(fee, big.NewInt(10_000))
		c.stakes[s.From] = append(c.stakes[s.From], &Stake{
			Amount:         new(big.Int).Set(amount),
			StartTime:      big.NewInt(time.Now().Unix()),
			Rate:           new(big.Int).Set(u.StakingRate),
			PendingRewards: new(big.Int),
			WithdrawFee:    fee,
			Active:         true,
		})

	case "withdraw":
		index := s.Args[0].(*big.Int)
		stakes := c.stakes[s.From]
		if !index.IsInt64() || index.Int64() >= int64(len(stakes)) {
			return errors.New("invalid stake index")
		}
		st := stakes[index.Int64()]
		if !st.Active {
			return errors.New("stake not active")
		}
		st.Active = false
		back := new(big.Int).Sub(st.Amount, st.WithdrawFee)
		back.Add(back, st.PendingRewards)
		st.PendingRewards = new(big.Int)
		c.balances[s.From] = new(big.Int).Add(c.balance(s.From), back)
		u := c.user(s.From)
		u.TotalStaked = new(big.Int).Sub(u.TotalStaked, st.Amount)

	case "claimRewards":
		sum := new(big.Int)
		for _, st := range c.stakes[s.From] {
			sum.Add(sum, st.PendingRewards)
			st.PendingRewards = new(big.Int)
		}
		if sum.Sign() == 0 {
			return errors.New("no rewards")
		}
		c.balances[s.From] = new(big.Int).Add(c.balance(s.From), sum)

	case "transfer":
		to, amount := s.Args[0].(common.Address), s.Args[1].(*big.Int)
		if c.balance(s.From).Cmp(amount) < 0 {
			return errors.New("insufficient balance")
		}
		c.balances[s.From] = new(big.Int).Sub(c.balance(s.From), amount)
		c.balances[to] = new(big.Int).Add(c.balance(to), amount)

	default:
		return fmt.Errorf("%s is not supported", s.Method)
	}
	return nil
}

func (c *Chain) decode(to common.Address, data []byte) (*abi.Method, []interface{}, error) {
	var a *abi.ABI
	switch to {
	case TokenAddress:
		a = &eth.ERC20
	case StakingAddress:
		a = &eth.STAKING
	default:
		return nil, nil, nil
	}

	c.mu.Lock()
	undeployed := c.notDeploy[to]
	c.mu.Unlock()
	if undeployed {
		return nil, nil, nil
	}

	if len(data) < 4 {
		return nil, nil, errors.New("execution reverted")
	}

	m, err := a.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %v", err)
	}

	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}

	return m, args, nil
}

func (c *Chain) balance(a common.Address) *big.Int {
	if v, ok := c.balances[a]; ok {
		return v
	}
	return new(big.Int)
}

func (c *Chain) allowance(owner, spender common.Address) *big.Int {
	if v, ok := c.allowances[[2]common.Address{owner, spender}]; ok {
		return v
	}
	return new(big.Int)
}

func (c *Chain) user(a common.Address) *UserInfo {
	u, ok := c.users[a]
	if !ok {
		u = &UserInfo{
			TotalStaked:   new(big.Int),
			TotalReferred: new(big.Int),
			StakingRate:   new(big.Int).Set(c.Rate),
		}
		c.users[a] = u
	}
	return u
}

func fill(s Stake) *Stake {
	if s.Amount == nil {
		s.Amount = new(big.Int)
	}
	if s.StartTime == nil {
		s.StartTime = big.NewInt(time.Now().Unix())
	}
	if s.Rate == nil {
		s.Rate = new(big.Int)
	}
	if s.PendingRewards == nil {
		s.PendingRewards = new(big.Int)
	}
	if s.WithdrawFee == nil {
		s.WithdrawFee = new(big.Int)
	}
	return &s
}

func pop(m map[string][]error, method string) error {
	q := m[method]
	if len(q) == 0 {
		return nil
	}
	m[method] = q[1:]
	return q[0]
}
