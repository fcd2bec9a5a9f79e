// Package core is the presentation boundary of the staking client: string
// amounts in, formatted strings out, and a fresh snapshot after every write.
package core

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/AlexNa-Holdings/web3stake/bus"
	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/eth"
	"github.com/AlexNa-Holdings/web3stake/lifecycle"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/AlexNa-Holdings/web3stake/staking"
	"github.com/AlexNa-Holdings/web3stake/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Account        common.Address // the signer every operation is sent from
	TokenAddress   common.Address
	StakingAddress common.Address
	Decimals       int
	Precision      int
	MinStake       *big.Int
	Policy         retry.Policy
	ReferralBase   string
}

// OptionsFromConfig fills Options from the loaded config.
func OptionsFromConfig(c *cmn.SConfig, account common.Address) Options {
	return Options{
		Account:        account,
		TokenAddress:   c.Token(),
		StakingAddress: c.Staking(),
		Decimals:       c.TokenDecimals,
		Precision:      c.DisplayPrecision,
		MinStake:       c.MinStakeUnits(),
		Policy:         retry.FromConfig(c),
		ReferralBase:   c.ReferralBaseURL,
	}
}

// Position is a stake position formatted for display.
type Position struct {
	Index          int       `json:"index"`
	Amount         string    `json:"amount"`
	StartTime      time.Time `json:"startTime"`
	RateBps        int64     `json:"rateBps"`
	PendingRewards string    `json:"pendingRewards"`
	WithdrawFee    string    `json:"withdrawFee"`
	Active         bool      `json:"active"`
}

// Snapshot is everything a view renders from. It is replaced, never patched.
type Snapshot struct {
	Account        string     `json:"account"`
	Balance        string     `json:"balance"`
	TotalStaked    string     `json:"totalStaked"`
	TotalReferred  string     `json:"totalReferred"`
	Referrer       string     `json:"referrer,omitempty"`
	StakingRateBps int64      `json:"stakingRateBps"`
	Positions      []Position `json:"positions"`
	PendingRewards string     `json:"pendingRewards"`
	Taken          time.Time  `json:"taken"`
}

type ReferrerStatus struct {
	Bound    bool   `json:"bound"`
	Referrer string `json:"referrer,omitempty"`
	Active   bool   `json:"active"`
	Link     string `json:"link"`
}

type App struct {
	opt       Options
	token     *token.Service
	staking   *staking.Service
	lifecycle *lifecycle.Notifier

	mu       sync.Mutex
	snapshot *Snapshot
}

func New(chain eth.Chain, opt Options) *App {
	lc := lifecycle.New()
	tok := token.New(chain, opt.TokenAddress, opt.Policy)
	return &App{
		opt:       opt,
		token:     tok,
		lifecycle: lc,
		staking: staking.New(chain, opt.StakingAddress, tok, lc, staking.Options{
			Decimals: opt.Decimals,
			MinStake: opt.MinStake,
			Policy:   opt.Policy,
		}),
	}
}

func (a *App) Account() common.Address {
	return a.opt.Account
}

func (a *App) Notifier() *lifecycle.Notifier {
	return a.lifecycle
}

func (a *App) format(x *big.Int) string {
	return cmn.ToDisplayString(x, a.opt.Decimals, a.opt.Precision)
}

// ---------- writes ----------

func (a *App) Stake(ctx context.Context, amount string, referrer string, cb staking.Callbacks) bool {
	ok := a.staking.Stake(ctx, a.opt.Account, amount, referrer, cb)
	if ok {
		a.refreshAfterWrite(ctx)
	}
	return ok
}

func (a *App) Withdraw(ctx context.Context, index int) bool {
	ok := a.staking.Withdraw(ctx, a.opt.Account, index)
	if ok {
		a.refreshAfterWrite(ctx)
	}
	return ok
}

func (a *App) ClaimRewards(ctx context.Context) bool {
	ok := a.staking.ClaimRewards(ctx, a.opt.Account)
	if ok {
		a.refreshAfterWrite(ctx)
	}
	return ok
}

// EnsureApproved approves spender for amount unless the allowance already covers it.
func (a *App) EnsureApproved(ctx context.Context, spender common.Address, amount string) bool {
	return a.staking.EnsureApproved(ctx, a.opt.Account, spender, amount)
}

// ---------- reads ----------

// GetBalance never fails: an unreadable balance shows as zero.
func (a *App) GetBalance(ctx context.Context, address common.Address) string {
	return a.format(a.token.GetBalance(ctx, address))
}

func (a *App) Positions(ctx context.Context) ([]Position, error) {
	list, err := a.staking.ListPositions(ctx, a.opt.Account)
	if err != nil {
		return nil, err
	}
	return a.positions(list), nil
}

func (a *App) TotalPendingRewards(ctx context.Context) (string, error) {
	total, err := a.staking.TotalPendingRewards(ctx, a.opt.Account)
	if err != nil {
		return "", err
	}
	return a.format(total), nil
}

func (a *App) ReferrerStatus(ctx context.Context) (*ReferrerStatus, error) {
	acc, err := a.staking.UserAccount(ctx, a.opt.Account)
	if err != nil {
		return nil, err
	}

	rs := &ReferrerStatus{
		Bound: acc.HasReferrer(),
		Link:  a.ReferralLink(),
	}
	if rs.Bound {
		rs.Referrer = acc.Referrer.Hex()
		rs.Active, err = a.staking.IsReferrerActive(ctx, acc.Referrer)
		if err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// ResolveReferrer tells which referrer a stake with input would use.
func (a *App) ResolveReferrer(ctx context.Context, input string) (*staking.Resolution, error) {
	return a.staking.ResolveReferrer(ctx, a.opt.Account, input)
}

func (a *App) ReferralLink() string {
	return staking.ReferralLink(a.opt.ReferralBase, a.opt.Account)
}

func (a *App) Metadata(ctx context.Context) (*token.Metadata, error) {
	return a.token.Metadata(ctx)
}

// Lifecycle is the shared transaction lifecycle view.
func (a *App) Lifecycle() lifecycle.View {
	return a.lifecycle.View()
}

// Snapshot returns the last refreshed snapshot, or nil.
func (a *App) Snapshot() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Refresh reads balance, account and positions concurrently and replaces the snapshot.
func (a *App) Refresh(ctx context.Context) (*Snapshot, error) {
	var (
		balance *big.Int
		account *staking.UserAccount
		list    []staking.StakePosition
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balance = a.token.GetBalance(gctx, a.opt.Account)
		return nil
	})
	g.Go(func() error {
		var err error
		account, err = a.staking.UserAccount(gctx, a.opt.Account)
		return err
	})
	g.Go(func() error {
		var err error
		list, err = a.staking.ListPositions(gctx, a.opt.Account)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Refresh: Cannot read account state")
		return nil, err
	}

	s := &Snapshot{
		Account:        a.opt.Account.Hex(),
		Balance:        a.format(balance),
		TotalStaked:    a.format(account.TotalStaked),
		TotalReferred:  a.format(account.TotalReferred),
		StakingRateBps: account.StakingRateBps.Int64(),
		Positions:      a.positions(list),
		PendingRewards: a.format(staking.TotalPending(list)),
		Taken:          time.Now(),
	}
	if account.HasReferrer() {
		s.Referrer = account.Referrer.Hex()
	}

	a.mu.Lock()
	a.snapshot = s
	a.mu.Unlock()

	bus.Send("ui", "snapshot", s)
	return s, nil
}

func (a *App) refreshAfterWrite(ctx context.Context) {
	if _, err := a.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Cannot refresh after write, snapshot is stale")
		a.mu.Lock()
		a.snapshot = nil
		a.mu.Unlock()
	}
}

func (a *App) positions(list []staking.StakePosition) []Position {
	r := make([]Position, 0, len(list))
	for _, p := range list {
		r = append(r, Position{
			Index:          p.Index,
			Amount:         a.format(p.Amount),
			StartTime:      p.StartTime,
			RateBps:        p.RateBps.Int64(),
			PendingRewards: a.format(p.PendingRewards),
			WithdrawFee:    a.format(p.WithdrawFee),
			Active:         p.Active,
		})
	}
	return r
}
