package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/belezaviva/belezaviva-backend/internal/payments"
	"github.com/belezaviva/belezaviva-backend/pkg/enums"
	"github.com/belezaviva/belezaviva-backend/pkg/logger"
)

// UIState is the storefront-facing phase of a checkout payment session.
type UIState string

const (
	StateCreating UIState = "creating"
	StatePending  UIState = "pending"
	StatePaid     UIState = "paid"
	StateFailed   UIState = "failed"
	StateExpired  UIState = "expired"
	StateError    UIState = "error"
)

// Snapshot is the session state at one point in time.
type Snapshot struct {
	State     UIState
	Remaining time.Duration
	Charge    *payments.ChargeResponse
	Status    *payments.StatusResponse
	Err       error
}

// PaymentClient is the slice of the payment service a session needs.
type PaymentClient interface {
	CreateCharge(ctx context.Context, input payments.CreateChargeInput) (*payments.ChargeResponse, error)
	GetStatus(ctx context.Context, paymentID string) (*payments.StatusResponse, error)
}

// SessionConfig tunes the polling and countdown cadence.
type SessionConfig struct {
	PollInterval  time.Duration
	CountdownTick time.Duration
	Expiry        time.Duration
	// GraceWindow keeps polling after the local countdown hits zero, so a
	// provider confirmation that raced the deadline still lands. Defaults to
	// two poll intervals.
	GraceWindow time.Duration
}

func (c *SessionConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = time.Second
	}
	if c.Expiry <= 0 {
		c.Expiry = 15 * time.Minute
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = 2 * c.PollInterval
	}
}

// SessionParams bundle the session dependencies.
type SessionParams struct {
	Payments PaymentClient
	Logger   *logger.Logger
	Config   SessionConfig
}

// Session drives one PIX checkout attempt: it creates the charge, counts down
// to expiry, and polls the payment status until a terminal state. Each
// session runs one goroutine and each charge is created exactly once.
type Session struct {
	payments PaymentClient
	logger   *logger.Logger
	cfg      SessionConfig

	mu       sync.Mutex
	snapshot Snapshot
	started  bool

	updates  chan Snapshot
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSession validates dependencies and builds an idle session.
func NewSession(params SessionParams) (*Session, error) {
	if params.Payments == nil {
		return nil, fmt.Errorf("payment client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	cfg.applyDefaults()
	return &Session{
		payments: params.Payments,
		logger:   params.Logger,
		cfg:      cfg,
		snapshot: Snapshot{State: StateCreating},
		updates:  make(chan Snapshot, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start creates the charge and begins the countdown/poll loop. It returns
// immediately; progress is observed through Updates, Snapshot and Done.
func (s *Session) Start(ctx context.Context, input payments.CreateChargeInput) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx, input)
	return nil
}

// Stop ends the session. Safe to call more than once; the provider charge is
// left alone and settles or expires on its own.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done closes when the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Updates streams state changes. Slow consumers miss intermediate snapshots
// but Snapshot always holds the latest.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Snapshot returns the most recent session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Session) publish(snapshot Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	select {
	case s.updates <- snapshot:
	default:
	}
}

func (s *Session) run(ctx context.Context, input payments.CreateChargeInput) {
	defer close(s.done)

	s.publish(Snapshot{State: StateCreating})

	charge, err := s.payments.CreateCharge(ctx, input)
	if err != nil {
		s.logger.Error(ctx, "checkout charge creation", err)
		s.publish(Snapshot{State: StateError, Err: err})
		return
	}

	deadline := time.Now().UTC().Add(s.cfg.Expiry)
	if charge.ExpiresAt != nil {
		deadline = *charge.ExpiresAt
	}

	s.publish(Snapshot{
		State:     StatePending,
		Remaining: time.Until(deadline),
		Charge:    charge,
	})

	if charge.Status.IsTerminal() {
		s.publish(Snapshot{State: stateForStatus(charge.Status), Charge: charge})
		return
	}

	countdown := time.NewTicker(s.cfg.CountdownTick)
	defer countdown.Stop()
	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	state := StatePending
	var graceDeadline time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.stop:
			return

		case now := <-countdown.C:
			if state != StatePending {
				continue
			}
			remaining := deadline.Sub(now)
			if remaining > 0 {
				s.publish(Snapshot{State: StatePending, Remaining: remaining, Charge: charge})
				continue
			}
			// Countdown ran out with no provider verdict. Show expired,
			// but keep polling briefly: the provider may still confirm a
			// payment that happened right at the deadline.
			state = StateExpired
			graceDeadline = now.Add(s.cfg.GraceWindow)
			countdown.Stop()
			s.publish(Snapshot{State: StateExpired, Charge: charge})

		case now := <-poll.C:
			status, err := s.payments.GetStatus(ctx, charge.PaymentID)
			if err != nil {
				// A failed poll is not a failed payment.
				s.logger.Error(ctx, "checkout status poll", err)
			} else if status.Status.IsTerminal() {
				// A locally inferred expiry is provisional; the provider can
				// still override it, so it does not end the session until
				// the grace window closes.
				if status.Status == enums.PaymentStatusExpired && status.StatusSource == enums.StatusSourceLocal {
					if state != StateExpired {
						state = StateExpired
						graceDeadline = now.Add(s.cfg.GraceWindow)
						s.publish(Snapshot{State: StateExpired, Charge: charge, Status: status})
					}
				} else {
					state = stateForStatus(status.Status)
					s.publish(Snapshot{State: state, Charge: charge, Status: status})
					return
				}
			}
			if state == StateExpired && now.After(graceDeadline) {
				return
			}
		}
	}
}

func stateForStatus(status enums.PaymentStatus) UIState {
	switch status {
	case enums.PaymentStatusPaid:
		return StatePaid
	case enums.PaymentStatusFailed:
		return StateFailed
	case enums.PaymentStatusExpired:
		return StateExpired
	default:
		return StatePending
	}
}
