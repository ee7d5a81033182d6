package land

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tera-bt/teraland-gateway/internal/audit"
	"github.com/tera-bt/teraland-gateway/internal/fabric"
	"github.com/tera-bt/teraland-gateway/internal/logging"
	"github.com/tera-bt/teraland-gateway/internal/mesh"
)

// Ledger runs one procedure under one identity per call. *fabric.Gateway
// implements it.
type Ledger interface {
	Submit(ctx context.Context, label, name string, args ...string) ([]byte, error)
	Evaluate(ctx context.Context, label, name string, args ...string) ([]byte, error)
}

// Controller maps lifecycle requests onto ledger procedures. Bus and Audit
// are optional.
type Controller struct {
	Gateway Ledger
	Bus     mesh.Bus
	Audit   audit.Recorder
	Channel string
	// ServiceIdentity runs transfers; ReadIdentity runs reads and falls back
	// to ServiceIdentity.
	ServiceIdentity string
	ReadIdentity    string
}

// Event is the payload published for each committed action.
type Event struct {
	ID        string `json:"id"`
	Action    Action `json:"action"`
	Actor     string `json:"actor"`
	Status    Status `json:"status,omitempty"`
	Price     string `json:"price,omitempty"`
	NewOwner  string `json:"newOwner,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// commitHookTimeout bounds the audit append and event publish that follow a
// committed submit.
const commitHookTimeout = 5 * time.Second

var topics = map[Action]string{
	ActionList:     mesh.TopicLandListed,
	ActionSell:     mesh.TopicLandForSale,
	ActionBuy:      mesh.TopicLandSold,
	ActionTransfer: mesh.TopicLandTransferred,
}

func (c *Controller) List(ctx context.Context, r ListRequest) ([]byte, error) {
	return c.Execute(ctx, r)
}

func (c *Controller) Sell(ctx context.Context, r SellRequest) ([]byte, error) {
	return c.Execute(ctx, r)
}

func (c *Controller) Buy(ctx context.Context, r BuyRequest) ([]byte, error) {
	return c.Execute(ctx, r)
}

func (c *Controller) Transfer(ctx context.Context, r TransferRequest) ([]byte, error) {
	return c.Execute(ctx, r)
}

func (c *Controller) Read(ctx context.Context, r ReadRequest) (Record, error) {
	out, err := c.Execute(ctx, r)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: r.ID, Payload: out}, nil
}

// Execute validates req, then runs its procedure. Validation failures never
// reach the ledger.
func (c *Controller) Execute(ctx context.Context, req Request) ([]byte, error) {
	cl, err := req.plan(identities{service: c.ServiceIdentity, read: c.ReadIdentity})
	if err != nil {
		return nil, err
	}
	var out []byte
	if cl.proc.Mode == fabric.ModeSubmit {
		out, err = c.Gateway.Submit(ctx, cl.identity, cl.proc.Name, cl.args...)
	} else {
		out, err = c.Gateway.Evaluate(ctx, cl.identity, cl.proc.Name, cl.args...)
	}
	if err != nil {
		return nil, explain(req, err)
	}
	if cl.proc.Mode == fabric.ModeSubmit {
		c.committed(ctx, req, cl, out)
	}
	return out, nil
}

// explain attaches lifecycle context to ledger rejections. The ledger's own
// message stays in the error text.
func explain(req Request, err error) error {
	var re *fabric.RemoteExecutionError
	if !errors.As(err, &re) {
		return err
	}
	switch req.Action() {
	case ActionRead:
		if strings.Contains(re.Message, "does not exist") {
			return &NotFoundError{ID: req.AssetID(), Err: err}
		}
	case ActionSell, ActionBuy:
		if s, ok := Requires(req.Action()); ok {
			return &RejectedError{Action: req.Action(), Requires: s, Err: err}
		}
	}
	return err
}

func (c *Controller) committed(ctx context.Context, req Request, cl call, out []byte) {
	ev := Event{ID: req.AssetID(), Action: req.Action(), Actor: cl.identity, RequestID: RequestIDFrom(ctx)}
	if from, _ := Requires(req.Action()); req.Action() != ActionTransfer {
		if s, err := Next(from, req.Action()); err == nil {
			ev.Status = s
		}
	}
	switch r := req.(type) {
	case ListRequest:
		ev.Price = cl.args[3]
	case SellRequest:
		ev.Price = cl.args[1]
	case TransferRequest:
		ev.NewOwner = r.NewOwner
	}

	// The ledger has committed; a caller going away must not drop the record.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitHookTimeout)
	defer cancel()
	if c.Audit != nil {
		err := c.Audit.Append(ctx, audit.Entry{
			ID:        uuid.NewString(),
			Channel:   c.Channel,
			Actor:     cl.identity,
			Procedure: cl.proc.Name,
			AssetID:   req.AssetID(),
			Args:      cl.args,
			Result:    string(out),
		})
		if err != nil {
			logging.Warn("audit append %s %s: %v", cl.proc.Name, req.AssetID(), err)
		}
	}
	if c.Bus != nil {
		payload, _ := json.Marshal(ev)
		if err := c.Bus.Publish(ctx, mesh.Event{ID: uuid.NewString(), Topic: topics[req.Action()], Payload: payload}); err != nil {
			logging.Warn("publish %s %s: %v", topics[req.Action()], req.AssetID(), err)
		}
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx so events and logs can be correlated with the HTTP
// request that caused them.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
