package ipt

import (
	"fmt"
	"sync"
	"time"

	"github.com/solostec/smf-gateway/internal/gwerr"
	"github.com/solostec/smf-gateway/pkg/log"
	"golang.org/x/crypto/bcrypt"
)

// State is a session's lifecycle stage, from initial authentication
// through an established connection to shutdown.
type State int

const (
	StateAuthenticating State = iota
	StateAuthenticated
	StateConnectedLocal
	StateConnectedRemote
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateConnectedLocal:
		return "CONNECTED_LOCAL"
	case StateConnectedRemote:
		return "CONNECTED_REMOTE"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// DefaultWatchdog is the default peer-inactivity timeout.
const DefaultWatchdog = 15 * time.Second

// LoginResult is returned by Session.Login to the caller.
type LoginResult struct {
	Success  bool
	Watchdog time.Duration
}

// CredentialChecker verifies an account/password pair, e.g. against a
// bcrypt hash stored in the device table.
type CredentialChecker func(account, password string) bool

// BcryptChecker builds a CredentialChecker from a lookup of an
// account's bcrypt password hash.
func BcryptChecker(hashFor func(account string) (hash []byte, ok bool)) CredentialChecker {
	return func(account, password string) bool {
		hash, ok := hashFor(account)
		if !ok {
			return false
		}
		return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	}
}

// Session is one IP-T peer connection: per-session strand confining
// its sequence allocator, scramble key and state so that its parser,
// state machine and write queue are never concurrent with themselves
// A Session is driven from a single owning goroutine;
// the mutex only protects fields read by watchdog/metrics callers.
type Session struct {
	mu sync.Mutex

	PeerAddr string
	state    State

	scrambler   *Scrambler
	rxScrambler *Scrambler // receive-direction key installed by InstallReceivedKey
	pendingKey  *[32]byte  // key installed before the NEXT emitted frame (sender-side handoff)
	nextSeq     byte
	lastSentSeq byte

	channels map[uint32]struct{} // channel ids owned by this session
	partner  *Session            // virtual-connection partner, nil if none

	rx, sx, px uint64

	watchdogTimeout time.Duration
	watchdog        *time.Timer
	onShutdown      func(reason error)

	write func([]byte) error
}

// NewSession returns a session in AUTHENTICATING state, writing
// already-framed, unscrambled-at-rest bytes via write (the caller owns
// actually putting bytes on the wire).
func NewSession(peerAddr string, write func([]byte) error, onShutdown func(error)) *Session {
	return &Session{
		PeerAddr:        peerAddr,
		state:           StateAuthenticating,
		channels:        make(map[uint32]struct{}),
		watchdogTimeout: DefaultWatchdog,
		onShutdown:      onShutdown,
		write:           write,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextSequence allocates the next sequence byte for a request this
// session initiates: monotone, wraps at 0xFF skipping 0.
func (s *Session) NextSequence() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	if s.nextSeq == 0 {
		s.nextSeq = 1
	}
	return seq
}

// Login validates account/pwd with check and transitions the session
// to AUTHENTICATED on success or SHUTDOWN on failure: a login failure
// tears the session down immediately.
//
// Scramble-key handoff ordering: the
// receiver of a scrambled login installs the new key AFTER dispatching
// the current (still-old-keyed) frame; InstallReceivedKey does that.
// The sender installs the new key BEFORE the next emitted frame;
// ScheduleKeyForNextSend / EmitFrame implement that half.
func (s *Session) Login(req LoginRequest, check CredentialChecker) LoginResult {
	s.mu.Lock()
	if s.state != StateAuthenticating {
		s.mu.Unlock()
		s.Shutdown(fmt.Errorf("ipt: login received outside AUTHENTICATING: %w", gwerr.ErrProtocolViolation))
		return LoginResult{Success: false}
	}
	s.mu.Unlock()

	if !check(req.Account, req.Password) {
		s.Shutdown(fmt.Errorf("ipt: login refused for account %q: %w", req.Account, gwerr.ErrAuth))
		return LoginResult{Success: false}
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.mu.Unlock()

	if req.Scrambled {
		// Receiver installs the negotiated key only after this frame
		// (the login request itself) has been fully dispatched.
		s.InstallReceivedKey(req.Key)
	}

	s.ResetWatchdog()
	return LoginResult{Success: true, Watchdog: s.watchdogTimeout}
}

// InstallReceivedKey installs key as the scrambler for subsequent
// incoming frames, kept apart from the sending scrambler EmitFrame
// uses. Session does not itself apply it to incoming bytes. Per the
// handoff ordering, callers invoke this only after the frame carrying
// the new key has already been dispatched to its handler.
func (s *Session) InstallReceivedKey(key [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rxScrambler == nil {
		s.rxScrambler = NewScrambler(key)
	} else {
		s.rxScrambler.Reset(key)
	}
}

// ScheduleKeyForNextSend marks key to be installed on the sending
// scrambler before the next frame this session emits — the sender-side
// half of the handoff ordering invariant.
func (s *Session) ScheduleKeyForNextSend(key [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key
	s.pendingKey = &k
}

// EmitFrame scrambles and writes one frame, applying any key scheduled
// by ScheduleKeyForNextSend before encoding it.
func (s *Session) EmitFrame(cmd uint16, seq byte, body []byte) error {
	s.mu.Lock()
	if s.pendingKey != nil {
		if s.scrambler == nil {
			s.scrambler = NewScrambler(*s.pendingKey)
		} else {
			s.scrambler.Reset(*s.pendingKey)
		}
		s.pendingKey = nil
	}
	scrambler := s.scrambler
	s.lastSentSeq = seq
	s.mu.Unlock()

	wire := Encode(cmd, seq, body)
	if scrambler != nil {
		scrambler.TransformBuf(wire)
	}
	if err := s.write(wire); err != nil {
		s.Shutdown(fmt.Errorf("ipt: write failed: %w", gwerr.ErrIO))
		return err
	}

	s.mu.Lock()
	s.sx += uint64(len(wire))
	s.mu.Unlock()
	return nil
}

// OpenConnection requests a virtual connection to msisdn. Concrete
// routing to another session/master is owned by the caller (the
// cluster bus in this gateway); Session only tracks local state.
func (s *Session) OpenConnection(partner *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return fmt.Errorf("ipt: open-connection outside AUTHENTICATED: %w", gwerr.ErrProtocolViolation)
	}
	if partner == nil {
		return fmt.Errorf("ipt: no master available: %w", gwerr.ErrResourceNotFound)
	}
	s.partner = partner
	s.state = StateConnectedLocal
	return nil
}

// CloseConnection tears down a virtual connection, returning the
// session to AUTHENTICATED.
func (s *Session) CloseConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partner = nil
	if s.state == StateConnectedLocal || s.state == StateConnectedRemote {
		s.state = StateAuthenticated
	}
}

// ResetWatchdog restarts the peer-inactivity timer. Expiry shuts the
// session down.
func (s *Session) ResetWatchdog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdog = time.AfterFunc(s.watchdogTimeout, func() {
		s.Shutdown(fmt.Errorf("ipt: watchdog expired after %s: %w", s.watchdogTimeout, gwerr.ErrIO))
	})
}

// Shutdown closes the session exactly once, cancelling its watchdog
// and invoking onShutdown with the triggering reason.
func (s *Session) Shutdown(reason error) {
	s.mu.Lock()
	if s.state == StateShutdown {
		s.mu.Unlock()
		return
	}
	s.state = StateShutdown
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.mu.Unlock()

	log.Warnf("[IPT] session %s shutting down: %v", s.PeerAddr, reason)
	if s.onShutdown != nil {
		s.onShutdown(reason)
	}
}

// Counters returns the rx/sx/px byte counters for metrics; the caller
// merges them into the cache store.
func (s *Session) Counters() (rx, sx, px uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx, s.sx, s.px
}

// AddRx records inbound bytes, e.g. from the reader loop.
func (s *Session) AddRx(n int) {
	s.mu.Lock()
	s.rx += uint64(n)
	s.mu.Unlock()
}

// AddPx records push-channel throughput bytes.
func (s *Session) AddPx(n int) {
	s.mu.Lock()
	s.px += uint64(n)
	s.mu.Unlock()
}
