package fabric

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tera-bt/teraland-gateway/internal/logging"
)

// Mode tells whether a procedure is committed to the ledger or only evaluated.
type Mode string

const (
	ModeSubmit   Mode = "submit"
	ModeEvaluate Mode = "evaluate"
)

// Invoker runs named procedures over an open session. Arguments are passed
// through as given and failures are never retried.
type Invoker struct{}

func (Invoker) Submit(ctx context.Context, s *Session, name string, args ...string) ([]byte, error) {
	return invoke(ctx, s, ModeSubmit, name, args)
}

func (Invoker) Evaluate(ctx context.Context, s *Session, name string, args ...string) ([]byte, error) {
	return invoke(ctx, s, ModeEvaluate, name, args)
}

func invoke(ctx context.Context, s *Session, mode Mode, name string, args []string) ([]byte, error) {
	c, err := s.bound()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", mode, name, err)
	}
	ctx, span := tracer.Start(ctx, "fabric."+string(mode), trace.WithAttributes(
		attribute.String("identity", s.Identity()),
		attribute.String("procedure", name),
		attribute.String("channel", s.Channel()),
	))
	defer span.End()

	logging.Debug("%s %s identity=%s args=%q", mode, name, s.Identity(), args)
	start := time.Now()
	var out []byte
	if mode == ModeSubmit {
		out, err = c.Submit(ctx, name, args...)
	} else {
		out, err = c.Evaluate(ctx, name, args...)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%s %s: %w", mode, name, ctxErr)
		} else {
			err = &RemoteExecutionError{Procedure: name, Mode: mode, Message: remoteMessage(err), Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	recordProcedure(name, mode, time.Since(start), err)
	return out, err
}

// SessionOpener is satisfied by *Factory.
type SessionOpener interface {
	Open(ctx context.Context, label string) (*Session, error)
}

// Gateway runs one procedure per call: open a session for the label, invoke,
// close. Timeout bounds the whole sequence.
type Gateway struct {
	Sessions SessionOpener
	Invoker  Invoker
	Timeout  time.Duration
}

func (g *Gateway) Submit(ctx context.Context, label, name string, args ...string) ([]byte, error) {
	return g.run(ctx, label, ModeSubmit, name, args)
}

func (g *Gateway) Evaluate(ctx context.Context, label, name string, args ...string) ([]byte, error) {
	return g.run(ctx, label, ModeEvaluate, name, args)
}

func (g *Gateway) run(ctx context.Context, label string, mode Mode, name string, args []string) ([]byte, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	s, err := g.Sessions.Open(ctx, label)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if mode == ModeSubmit {
		return g.Invoker.Submit(ctx, s, name, args...)
	}
	return g.Invoker.Evaluate(ctx, s, name, args...)
}
