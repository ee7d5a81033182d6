package land

import (
	"encoding/json"
	"fmt"
)

// Asset is a land record as the registry contract reports it.
type Asset struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Location string `json:"location"`
	Size     string `json:"size"`
	Price    int64  `json:"price"`
	ForSale  bool   `json:"forSale"`
	Status   Status `json:"status"`
}

// Record is the raw result of a read, passed through to callers unchanged.
type Record struct {
	ID      string
	Payload []byte
}

// Asset decodes the payload. Contracts that do not report a status get one
// derived from the forSale flag.
func (r Record) Asset() (Asset, error) {
	var raw struct {
		ID       string `json:"id"`
		Owner    string `json:"owner"`
		Location string `json:"location"`
		Size     string `json:"size"`
		Price    Price  `json:"price"`
		ForSale  bool   `json:"forSale"`
		Status   Status `json:"status"`
	}
	if err := json.Unmarshal(r.Payload, &raw); err != nil {
		return Asset{}, fmt.Errorf("decode land %s: %w", r.ID, err)
	}
	a := Asset{
		ID:       raw.ID,
		Owner:    raw.Owner,
		Location: raw.Location,
		Size:     raw.Size,
		ForSale:  raw.ForSale,
		Status:   raw.Status,
	}
	if raw.Price != "" {
		n, err := raw.Price.Int()
		if err != nil {
			return Asset{}, fmt.Errorf("decode land %s: %w", r.ID, err)
		}
		a.Price = n
	}
	if !a.Status.Valid() {
		a.Status = StatusListed
		if a.ForSale {
			a.Status = StatusForSale
		}
	}
	return a, nil
}
