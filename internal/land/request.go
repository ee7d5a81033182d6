package land

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Price is a whole, non-negative amount given as a JSON number or a numeric
// string.
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Price(strings.TrimSpace(s))
	default:
		*p = Price(b)
	}
	return nil
}

func (p Price) Int() (int64, error) {
	if p == "" {
		return 0, &ValidationError{Field: "price", Reason: "is required"}
	}
	n, err := strconv.ParseInt(string(p), 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "price", Reason: "must be a whole number"}
	}
	if n < 0 {
		return 0, &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return n, nil
}

// Request is one lifecycle action, validated before any ledger contact.
type Request interface {
	Action() Action
	AssetID() string
	Validate() error
	plan(ids identities) (call, error)
}

type identities struct {
	service string
	read    string
}

// call is a fully resolved ledger invocation.
type call struct {
	identity string
	proc     Procedure
	args     []string
}

func requireIdentity(field, label string) error {
	if strings.TrimSpace(label) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

type ListRequest struct {
	ID            string `json:"id"`
	Location      string `json:"location"`
	Size          string `json:"size"`
	Price         Price  `json:"price"`
	OwnerIdentity string `json:"ownerIdentity"`
}

func (ListRequest) Action() Action    { return ActionList }
func (r ListRequest) AssetID() string { return r.ID }
func (r ListRequest) Validate() error { _, err := r.plan(identities{}); return err }

func (r ListRequest) plan(identities) (call, error) {
	if err := requireIdentity("ownerIdentity", r.OwnerIdentity); err != nil {
		return call{}, err
	}
	args, err := ListLand.Args(r.ID, r.Location, r.Size, r.Price)
	return call{identity: r.OwnerIdentity, proc: ListLand, args: args}, err
}

type SellRequest struct {
	ID            string `json:"-"`
	Price         Price  `json:"price"`
	OwnerIdentity string `json:"ownerIdentity"`
}

func (SellRequest) Action() Action    { return ActionSell }
func (r SellRequest) AssetID() string { return r.ID }
func (r SellRequest) Validate() error { _, err := r.plan(identities{}); return err }

func (r SellRequest) plan(identities) (call, error) {
	if err := requireIdentity("ownerIdentity", r.OwnerIdentity); err != nil {
		return call{}, err
	}
	args, err := SellLand.Args(r.ID, r.Price)
	return call{identity: r.OwnerIdentity, proc: SellLand, args: args}, err
}

type BuyRequest struct {
	ID            string `json:"-"`
	BuyerIdentity string `json:"buyerIdentity"`
}

func (BuyRequest) Action() Action    { return ActionBuy }
func (r BuyRequest) AssetID() string { return r.ID }
func (r BuyRequest) Validate() error { _, err := r.plan(identities{}); return err }

func (r BuyRequest) plan(identities) (call, error) {
	if err := requireIdentity("buyerIdentity", r.BuyerIdentity); err != nil {
		return call{}, err
	}
	args, err := BuyLand.Args(r.ID)
	return call{identity: r.BuyerIdentity, proc: BuyLand, args: args}, err
}

// TransferRequest is executed under the registry's service identity, not the
// caller's.
type TransferRequest struct {
	ID       string `json:"-"`
	NewOwner string `json:"newOwner"`
}

func (TransferRequest) Action() Action    { return ActionTransfer }
func (r TransferRequest) AssetID() string { return r.ID }
func (r TransferRequest) Validate() error { _, err := TransferLandOwnership.Args(r.ID, r.NewOwner); return err }

func (r TransferRequest) plan(ids identities) (call, error) {
	args, err := TransferLandOwnership.Args(r.ID, r.NewOwner)
	if err != nil {
		return call{}, err
	}
	if ids.service == "" {
		return call{}, &ConfigError{Setting: "service identity"}
	}
	return call{identity: ids.service, proc: TransferLandOwnership, args: args}, nil
}

// ReadRequest runs under the configured read identity.
type ReadRequest struct {
	ID string
}

func (ReadRequest) Action() Action    { return ActionRead }
func (r ReadRequest) AssetID() string { return r.ID }
func (r ReadRequest) Validate() error { _, err := ReadLand.Args(r.ID); return err }

func (r ReadRequest) plan(ids identities) (call, error) {
	args, err := ReadLand.Args(r.ID)
	if err != nil {
		return call{}, err
	}
	label := ids.read
	if label == "" {
		label = ids.service
	}
	if label == "" {
		return call{}, &ConfigError{Setting: "read identity"}
	}
	return call{identity: label, proc: ReadLand, args: args}, nil
}
