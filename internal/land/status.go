package land

// Status is where a land record is in its sale lifecycle.
type Status string

const (
	StatusListed      Status = "Listed"
	StatusForSale     Status = "ForSale"
	StatusSold        Status = "Sold"
	StatusTransferred Status = "Transferred"
)

func (s Status) Valid() bool {
	switch s {
	case StatusListed, StatusForSale, StatusSold, StatusTransferred:
		return true
	}
	return false
}

type Action string

const (
	ActionList     Action = "list"
	ActionRead     Action = "read"
	ActionSell     Action = "sell"
	ActionBuy      Action = "buy"
	ActionTransfer Action = "transfer"
)

// rule is one row of the lifecycle table. An empty from list with anyFrom
// unset means the action creates the record; an empty to keeps the status.
type rule struct {
	from    []Status
	anyFrom bool
	to      Status
}

var transitions = map[Action]rule{
	ActionList:     {to: StatusListed},
	ActionSell:     {from: []Status{StatusListed}, to: StatusForSale},
	ActionBuy:      {from: []Status{StatusForSale}, to: StatusSold},
	ActionTransfer: {anyFrom: true},
	ActionRead:     {anyFrom: true},
}

// Next returns the status after applying a to a record in status from.
// An empty from means the record does not exist yet.
//
//	Listed --sell--> ForSale --buy--> Sold
//	transfer: any status, unchanged
func Next(from Status, a Action) (Status, error) {
	r, ok := transitions[a]
	if !ok {
		return "", &TransitionError{Action: a, From: from}
	}
	switch {
	case r.anyFrom:
		if from == "" {
			return "", &TransitionError{Action: a}
		}
	case len(r.from) == 0:
		if from != "" {
			return "", &TransitionError{Action: a, From: from}
		}
	default:
		if !contains(r.from, from) {
			return "", &TransitionError{Action: a, From: from}
		}
	}
	if r.to == "" {
		return from, nil
	}
	return r.to, nil
}

// Requires reports the single status a gated action must start from.
func Requires(a Action) (Status, bool) {
	r := transitions[a]
	if len(r.from) != 1 {
		return "", false
	}
	return r.from[0], true
}

func contains(ss []Status, s Status) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
