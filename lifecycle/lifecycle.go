// Package lifecycle tracks the progress of user initiated chain writes and
// publishes it on the bus.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlexNa-Holdings/web3stake/bus"
	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/metrics"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// Op is an operation class. Only one lifecycle per class may be in flight.
type Op string

const (
	OpStake    Op = "stake"
	OpWithdraw Op = "withdraw"
	OpClaim    Op = "claim"
	OpApprove  Op = "approve"
)

type Status string

const (
	Idle                       Status = "idle"
	AwaitingWalletConfirmation Status = "awaiting_wallet_confirmation"
	Submitted                  Status = "submitted"
	Confirmed                  Status = "confirmed"
	Failed                     Status = "failed"
)

// InFlight reports whether the status waits on the wallet or the chain.
func (s Status) InFlight() bool {
	return s == AwaitingWalletConfirmation || s == Submitted
}

var ErrOperationInFlight = errors.New("operation already in progress")

// View is the shared lifecycle surfaced to the presentation layer.
type View struct {
	IsOpen  bool   `json:"isOpen"`
	Title   string `json:"title"`
	Loading bool   `json:"loading"`
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
	Op      Op     `json:"op,omitempty"`
}

type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

type Notification struct {
	Kind    Kind      `json:"kind"`
	Class   string    `json:"class,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type Notifier struct {
	mu       sync.Mutex
	view     View
	inFlight map[Op]*Session
	last     *Notification
}

func New() *Notifier {
	return &Notifier{
		view:     View{Status: Idle},
		inFlight: make(map[Op]*Session),
	}
}

// Begin opens a session for op. It fails with ErrOperationInFlight while
// another session of the same class is open and not finished.
func (n *Notifier) Begin(op Op, title string) (*Session, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if s, ok := n.inFlight[op]; ok && !s.done {
		log.Warn().Str("op", string(op)).Msg("lifecycle: operation already in flight")
		return nil, fmt.Errorf("%s: %w", op, ErrOperationInFlight)
	}

	for other, s := range n.inFlight {
		if other != op && !s.done {
			log.Debug().Str("op", string(op)).Str("other", string(other)).Msg("lifecycle: concurrent operation of another class")
		}
	}

	s := &Session{n: n, op: op, title: title, status: Idle}
	n.inFlight[op] = s
	n.view = View{IsOpen: true, Title: title, Loading: false, Status: Idle, Op: op}
	n.publish()

	return s, nil
}

// View returns a copy of the current shared view.
func (n *Notifier) View() View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.view
}

// Busy reports whether op has a session in flight.
func (n *Notifier) Busy(op Op) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.inFlight[op]
	return ok && !s.done
}

func (n *Notifier) LastNotification() *Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return nil
	}
	c := *n.last
	return &c
}

// Notify routes a human readable message to the ui topic.
func (n *Notifier) Notify(kind Kind, class cmn.Class, msg string) {
	nt := &Notification{Kind: kind, Message: msg, Time: time.Now()}
	if kind == KindError || kind == KindWarning {
		nt.Class = class.String()
	}

	n.mu.Lock()
	n.last = nt
	n.mu.Unlock()

	metrics.Notifications.WithLabelValues(string(kind)).Inc()

	t := "notify"
	switch kind {
	case KindWarning:
		t = "notify-warning"
	case KindError:
		t = "notify-error"
	}
	bus.Send("ui", t, &bus.B_Notify{Kind: string(kind), Class: nt.Class, Message: msg, Time: nt.Time})
}

// publish must be called with mu held
func (n *Notifier) publish() {
	v := n.view
	metrics.LifecycleTransitions.WithLabelValues(string(v.Op), string(v.Status)).Inc()
	bus.Send("tx", "lifecycle", &bus.B_TxLifecycle{
		IsOpen:  v.IsOpen,
		Title:   v.Title,
		Loading: v.Loading,
		Status:  string(v.Status),
		Reason:  v.Reason,
		TxHash:  v.TxHash,
		Op:      string(v.Op),
		Changed: time.Now(),
	})
}

// Session is one open lifecycle.
type Session struct {
	n      *Notifier
	op     Op
	title  string
	status Status
	done   bool // confirmed, failed or closed
}

func (s *Session) Op() Op { return s.op }

func (s *Session) Status() Status {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	return s.status
}

// AwaitWallet starts a wallet confirmation. Allowed from Idle, or from
// Confirmed when the previous leg of the same action is mined.
func (s *Session) AwaitWallet(title string) {
	s.transition(AwaitingWalletConfirmation, false, func(v *View) {
		if title != "" {
			v.Title = title
		}
		v.TxHash = ""
		v.Reason = ""
	}, Idle, Confirmed)
}

func (s *Session) Submitted(tx *types.Transaction) {
	s.transition(Submitted, false, func(v *View) {
		if tx != nil {
			v.TxHash = tx.Hash().Hex()
		}
	}, AwaitingWalletConfirmation)
}

// LegConfirmed marks an intermediate leg as mined. The session stays open.
func (s *Session) LegConfirmed() {
	s.transition(Confirmed, false, func(v *View) { v.Loading = true }, Submitted)
}

func (s *Session) Confirm() {
	s.transition(Confirmed, true, nil, Submitted)
}

func (s *Session) Fail(err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	s.transition(Failed, true, func(v *View) { v.Reason = reason }, Idle, AwaitingWalletConfirmation, Submitted, Confirmed)
}

// Close releases the operation class and closes the view if it still shows this session.
// A session closed while waiting on the wallet or the chain ends as Failed.
func (s *Session) Close() {
	n := s.n
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.inFlight[s.op] != s {
		return
	}
	delete(n.inFlight, s.op)

	if !s.done {
		s.done = true
		if s.status != Idle {
			s.status = Failed
			n.view.Reason = "closed"
		}
	}

	if n.view.Op == s.op && n.view.IsOpen {
		n.view.IsOpen = false
		n.view.Loading = false
		n.view.Status = s.status
		n.publish()
	}
}

func (s *Session) transition(to Status, final bool, edit func(v *View), from ...Status) {
	n := s.n
	n.mu.Lock()
	defer n.mu.Unlock()

	allowed := false
	for _, f := range from {
		if s.status == f {
			allowed = true
			break
		}
	}
	if s.done || !allowed {
		log.Warn().Str("op", string(s.op)).Str("from", string(s.status)).Str("to", string(to)).Msg("lifecycle: illegal transition ignored")
		return
	}

	s.status = to
	s.done = final
	n.view.Op = s.op
	n.view.IsOpen = true
	n.view.Status = to
	n.view.Loading = to.InFlight()
	if edit != nil {
		edit(&n.view)
	}
	n.publish()
}
