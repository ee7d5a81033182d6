package fabric

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tera-bt/teraland-gateway/internal/logging"
	"github.com/tera-bt/teraland-gateway/internal/wallet"
)

var tracer = otel.Tracer("teraland/fabric")

// Discovery is the static peer discovery policy. The gateway peer performs
// endorsement discovery itself, so Enabled is recorded but not negotiated.
type Discovery struct {
	Enabled     bool
	AsLocalhost bool
}

// IdentityLookup resolves a label to its credential.
type IdentityLookup interface {
	Lookup(ctx context.Context, label string) (wallet.Identity, error)
}

// Factory opens single-use sessions, each bound to exactly one identity.
type Factory struct {
	Identities  IdentityLookup
	ProfilePath string
	Channel     string
	Contract    string
	// Peer names a preferred peer from the profile; empty picks by MSP.
	Peer      string
	Discovery Discovery
	Connector Connector

	BreakerThreshold int
	BreakerOpenFor   time.Duration

	breakers breakers
}

// Open looks up label in the wallet, resolves the peer from the connection
// profile and connects. Nothing is left open when it fails.
func (f *Factory) Open(ctx context.Context, label string) (_ *Session, err error) {
	ctx, span := tracer.Start(ctx, "fabric.session.open", trace.WithAttributes(attribute.String("identity", label)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			sessionsTotal.WithLabelValues(openOutcome(err)).Inc()
		} else {
			sessionsTotal.WithLabelValues("success").Inc()
		}
		span.End()
	}()

	if label == "" {
		return nil, &IdentityNotFoundError{}
	}
	id, err := f.Identities.Lookup(ctx, label)
	if errors.Is(err, wallet.ErrNotFound) || errors.Is(err, wallet.ErrInvalidLabel) {
		return nil, &IdentityNotFoundError{Label: label}
	}
	if err != nil {
		return nil, fmt.Errorf("wallet lookup %s: %w", label, err)
	}

	profile, err := LoadProfile(f.ProfilePath)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	ep, err := profile.Endpoint(id.MSPID, f.Peer, f.Discovery.AsLocalhost)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	b := f.breakers.get(ep.Name, f.BreakerThreshold, f.BreakerOpenFor)
	if !b.Allow() {
		return nil, &ConnectionError{Endpoint: ep.Name, Err: ErrCircuitOpen}
	}

	connector := f.Connector
	if connector == nil {
		connector = GatewayConnector{}
	}
	handle, closer, err := connector.Connect(ctx, Target{
		Endpoint: ep,
		Identity: id,
		Channel:  f.Channel,
		Contract: f.Contract,
	})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		if ctx.Err() == nil {
			b.ReportFailure()
		}
		return nil, &ConnectionError{Endpoint: ep.Address, Err: err}
	}
	b.ReportSuccess()
	sessionsInflight.Inc()
	logging.Debug("session opened identity=%s peer=%s channel=%s", label, ep.Address, f.Channel)

	return &Session{
		label:     label,
		channel:   f.Channel,
		contract:  f.Contract,
		endpoint:  ep,
		discovery: f.Discovery,
		handle:    handle,
		closer:    closer,
	}, nil
}

func openOutcome(err error) string {
	var inf *IdentityNotFoundError
	var ce *ConnectionError
	switch {
	case errors.As(err, &inf):
		return "identity_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &ce):
		return "connection_error"
	}
	return "error"
}

// Session is one identity's connection to one channel and contract. It is
// owned by a single operation and released with Close.
type Session struct {
	label     string
	channel   string
	contract  string
	endpoint  Endpoint
	discovery Discovery

	mu     sync.Mutex
	handle Contract
	closer io.Closer
	closed bool
}

func (s *Session) Identity() string {
	if s == nil {
		return ""
	}
	return s.label
}

func (s *Session) Channel() string      { return s.channel }
func (s *Session) ContractName() string { return s.contract }
func (s *Session) Endpoint() Endpoint   { return s.endpoint }
func (s *Session) Discovery() Discovery { return s.discovery }

// Close releases the connection. It is safe on a nil or partially built
// session and on repeated calls.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			logging.Warn("session close identity=%s: %v", s.label, err)
		}
	}
	if s.handle != nil {
		sessionsInflight.Dec()
	}
	s.handle = nil
}

func (s *Session) bound() (Contract, error) {
	if s == nil {
		return nil, ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.handle == nil {
		return nil, ErrSessionClosed
	}
	return s.handle, nil
}
