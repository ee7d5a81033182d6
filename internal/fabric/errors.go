package fabric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"google.golang.org/grpc/status"
)

// IdentityNotFoundError means the wallet has no credential for the label.
type IdentityNotFoundError struct {
	Label string
}

func (e *IdentityNotFoundError) Error() string {
	return fmt.Sprintf("identity %s not found in wallet", e.Label)
}

// ConnectionError covers an unreadable connection profile, an unreachable peer
// and an open circuit breaker. Nothing has been submitted when it is returned.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return "connection: " + e.Err.Error()
	}
	return fmt.Sprintf("connection to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteExecutionError carries the ledger's own rejection message verbatim.
type RemoteExecutionError struct {
	Procedure string
	Mode      Mode
	Message   string
	Err       error
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Mode, e.Procedure, e.Message)
}

func (e *RemoteExecutionError) Unwrap() error { return e.Err }

var (
	ErrSessionClosed = errors.New("session is closed")
	ErrCircuitOpen   = errors.New("circuit breaker open")
)

// remoteMessage extracts the most specific message available: the gRPC status
// message followed by any per-peer details the gateway attached.
func remoteMessage(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	msg := st.Message()
	var details []string
	for _, d := range st.Details() {
		if ed, ok := d.(*gateway.ErrorDetail); ok && ed.GetMessage() != "" {
			details = append(details, ed.GetMessage())
		}
	}
	if len(details) > 0 {
		msg += ": " + strings.Join(details, "; ")
	}
	return msg
}
