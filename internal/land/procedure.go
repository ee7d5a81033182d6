package land

import (
	"fmt"
	"strconv"

	"github.com/tera-bt/teraland-gateway/internal/fabric"
)

type Kind int

const (
	KindString Kind = iota
	KindInt
)

type Param struct {
	Name     string
	Kind     Kind
	Optional bool
}

// Procedure describes a contract function: its name, whether it commits, and
// its positional parameters.
type Procedure struct {
	Name   string
	Mode   fabric.Mode
	Params []Param
}

var (
	ListLand = Procedure{Name: "ListLand", Mode: fabric.ModeSubmit, Params: []Param{
		{Name: "id"},
		{Name: "location", Optional: true},
		{Name: "size", Optional: true},
		{Name: "price", Kind: KindInt},
	}}
	SellLand = Procedure{Name: "SellLand", Mode: fabric.ModeSubmit, Params: []Param{
		{Name: "id"},
		{Name: "price", Kind: KindInt},
	}}
	BuyLand = Procedure{Name: "BuyLand", Mode: fabric.ModeSubmit, Params: []Param{
		{Name: "id"},
	}}
	TransferLandOwnership = Procedure{Name: "TransferLandOwnership", Mode: fabric.ModeSubmit, Params: []Param{
		{Name: "id"},
		{Name: "newOwner"},
	}}
	ReadLand = Procedure{Name: "ReadLand", Mode: fabric.ModeEvaluate, Params: []Param{
		{Name: "id"},
	}}
)

// Args checks values against the parameter list and renders them as the
// positional strings the contract expects. Strings pass through; ints accept
// int, int64 or Price.
func (p Procedure) Args(values ...any) ([]string, error) {
	if len(values) != len(p.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", p.Name, len(p.Params), len(values))
	}
	out := make([]string, len(values))
	for i, prm := range p.Params {
		switch prm.Kind {
		case KindString:
			s, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("%s: %s must be a string, got %T", p.Name, prm.Name, values[i])
			}
			if s == "" && !prm.Optional {
				return nil, &ValidationError{Field: prm.Name, Reason: "is required"}
			}
			out[i] = s
		case KindInt:
			var n int64
			switch v := values[i].(type) {
			case int:
				n = int64(v)
			case int64:
				n = v
			case Price:
				var err error
				if n, err = v.Int(); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("%s: %s must be an integer, got %T", p.Name, prm.Name, values[i])
			}
			if n < 0 {
				return nil, &ValidationError{Field: prm.Name, Reason: "must not be negative"}
			}
			out[i] = strconv.FormatInt(n, 10)
		}
	}
	return out, nil
}
