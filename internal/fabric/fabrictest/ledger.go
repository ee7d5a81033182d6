// Package fabrictest provides an in-memory land registry contract and a
// recording connector for exercising the gateway without a Fabric network.
package fabrictest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/tera-bt/teraland-gateway/internal/fabric"
)

// Land mirrors the record the registry contract stores.
type Land struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Location string `json:"location"`
	Size     string `json:"size"`
	Price    int    `json:"price"`
	ForSale  bool   `json:"forSale"`
	Status   string `json:"status"`
}

// Ledger implements ListLand, SellLand, BuyLand, TransferLandOwnership and
// ReadLand. The caller's identity label is used as the owner id. Registrars
// may transfer any land.
type Ledger struct {
	Registrars []string

	mu    sync.Mutex
	lands map[string]Land
}

func NewLedger(registrars ...string) *Ledger {
	return &Ledger{Registrars: registrars, lands: map[string]Land{}}
}

// Put seeds a record directly.
func (l *Ledger) Put(land Land) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lands == nil {
		l.lands = map[string]Land{}
	}
	l.lands[land.ID] = land
}

func (l *Ledger) Get(id string) (Land, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	land, ok := l.lands[id]
	return land, ok
}

// Invoke runs one procedure as caller.
func (l *Ledger) Invoke(caller, name string, args []string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lands == nil {
		l.lands = map[string]Land{}
	}
	switch name {
	case "ListLand":
		if err := arity(name, args, 4); err != nil {
			return nil, err
		}
		price, err := atoi(args[3])
		if err != nil {
			return nil, err
		}
		if _, ok := l.lands[args[0]]; ok {
			return nil, fmt.Errorf("land with ID %s already exists", args[0])
		}
		l.lands[args[0]] = Land{ID: args[0], Owner: caller, Location: args[1], Size: args[2], Price: price, Status: "Listed"}
		return nil, nil
	case "SellLand":
		if err := arity(name, args, 2); err != nil {
			return nil, err
		}
		price, err := atoi(args[1])
		if err != nil {
			return nil, err
		}
		land, err := l.read(args[0])
		if err != nil {
			return nil, err
		}
		if land.Owner != caller {
			return nil, errors.New("only the owner can sell the land")
		}
		if land.Status != "Listed" {
			return nil, fmt.Errorf("land %s is not listed", land.ID)
		}
		land.Price, land.ForSale, land.Status = price, true, "ForSale"
		l.lands[land.ID] = land
		return nil, nil
	case "BuyLand":
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		land, err := l.read(args[0])
		if err != nil {
			return nil, err
		}
		if !land.ForSale {
			return nil, fmt.Errorf("land %s is not for sale", land.ID)
		}
		if land.Owner == caller {
			return nil, errors.New("owner cannot buy their own land")
		}
		land.Owner, land.ForSale, land.Status = caller, false, "Sold"
		l.lands[land.ID] = land
		return nil, nil
	case "TransferLandOwnership":
		if err := arity(name, args, 2); err != nil {
			return nil, err
		}
		land, err := l.read(args[0])
		if err != nil {
			return nil, err
		}
		if land.Owner != caller && !l.registrar(caller) {
			return nil, errors.New("only the owner can transfer the land")
		}
		land.Owner = args[1]
		l.lands[land.ID] = land
		return nil, nil
	case "ReadLand":
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		land, err := l.read(args[0])
		if err != nil {
			return nil, err
		}
		return json.Marshal(land)
	}
	return nil, fmt.Errorf("function %s not found in contract", name)
}

func (l *Ledger) read(id string) (Land, error) {
	land, ok := l.lands[id]
	if !ok {
		return Land{}, fmt.Errorf("land %s does not exist", id)
	}
	return land, nil
}

func (l *Ledger) registrar(label string) bool {
	for _, r := range l.Registrars {
		if r == label {
			return true
		}
	}
	return false
}

func arity(name string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("incorrect number of params for %s: expected %d, received %d", name, n, len(args))
	}
	return nil
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("value %q was not passed in expected format int", s)
	}
	return n, nil
}

// Call is one procedure invocation as seen by the network.
type Call struct {
	Identity  string
	Mode      fabric.Mode
	Procedure string
	Args      []string
}

// Connector serves contracts backed by a Ledger and records what crosses the
// connection layer.
type Connector struct {
	Ledger *Ledger
	// Err, when set, fails every Connect.
	Err error
	// Delay is applied inside each procedure call, honoring the context.
	Delay time.Duration

	mu      sync.Mutex
	targets []fabric.Target
	calls   []Call
	open    int
}

func (c *Connector) Connect(ctx context.Context, t fabric.Target) (fabric.Contract, io.Closer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, t)
	if c.Err != nil {
		return nil, nil, c.Err
	}
	c.open++
	return &contract{conn: c, identity: t.Identity.Label}, closer{c}, nil
}

// Connects returns the number of Connect attempts.
func (c *Connector) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.targets)
}

func (c *Connector) Targets() []fabric.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fabric.Target(nil), c.targets...)
}

func (c *Connector) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Open returns the number of connections not yet closed.
func (c *Connector) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type closer struct{ c *Connector }

func (cl closer) Close() error {
	cl.c.mu.Lock()
	defer cl.c.mu.Unlock()
	cl.c.open--
	return nil
}

type contract struct {
	conn     *Connector
	identity string
}

func (k *contract) Submit(ctx context.Context, name string, args ...string) ([]byte, error) {
	return k.call(ctx, fabric.ModeSubmit, name, args)
}

func (k *contract) Evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	return k.call(ctx, fabric.ModeEvaluate, name, args)
}

func (k *contract) call(ctx context.Context, mode fabric.Mode, name string, args []string) ([]byte, error) {
	k.conn.mu.Lock()
	k.conn.calls = append(k.conn.calls, Call{Identity: k.identity, Mode: mode, Procedure: name, Args: append([]string(nil), args...)})
	delay := k.conn.Delay
	k.conn.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if k.conn.Ledger == nil {
		return nil, errors.New("no ledger")
	}
	return k.conn.Ledger.Invoke(k.identity, name, args)
}
