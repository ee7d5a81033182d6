package fabric

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tera-bt/teraland-gateway/internal/wallet"
)

// Target is everything a connector needs to bind one contract handle.
type Target struct {
	Endpoint Endpoint
	Identity wallet.Identity
	Channel  string
	Contract string
}

// Contract is a contract namespace bound to a single signing identity.
type Contract interface {
	Submit(ctx context.Context, name string, args ...string) ([]byte, error)
	Evaluate(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Connector establishes the network side of a session. The returned closer
// releases every resource the connection holds; it may be non-nil on error.
type Connector interface {
	Connect(ctx context.Context, t Target) (Contract, io.Closer, error)
}

// GatewayConnector talks to a Fabric gateway peer over gRPC.
type GatewayConnector struct {
	EvaluateTimeout     time.Duration
	EndorseTimeout      time.Duration
	SubmitTimeout       time.Duration
	CommitStatusTimeout time.Duration
}

func (g GatewayConnector) Connect(ctx context.Context, t Target) (Contract, io.Closer, error) {
	id, sign, err := signer(t.Identity)
	if err != nil {
		return nil, nil, err
	}
	conn, err := dial(ctx, t.Endpoint)
	if err != nil {
		return nil, nil, err
	}
	opts := []client.ConnectOption{client.WithSign(sign), client.WithClientConnection(conn)}
	if g.EvaluateTimeout > 0 {
		opts = append(opts, client.WithEvaluateTimeout(g.EvaluateTimeout))
	}
	if g.EndorseTimeout > 0 {
		opts = append(opts, client.WithEndorseTimeout(g.EndorseTimeout))
	}
	if g.SubmitTimeout > 0 {
		opts = append(opts, client.WithSubmitTimeout(g.SubmitTimeout))
	}
	if g.CommitStatusTimeout > 0 {
		opts = append(opts, client.WithCommitStatusTimeout(g.CommitStatusTimeout))
	}
	gw, err := client.Connect(id, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("gateway connect: %w", err)
	}
	closer := closerFunc(func() error {
		return errors.Join(gw.Close(), conn.Close())
	})
	return gatewayContract{c: gw.GetNetwork(t.Channel).GetContract(t.Contract)}, closer, nil
}

// signer builds the gateway identity and signing function. Errors name the
// label only.
func signer(id wallet.Identity) (*identity.X509Identity, identity.Sign, error) {
	cert, err := identity.CertificateFromPEM(id.Certificate)
	if err != nil {
		return nil, nil, fmt.Errorf("identity %s: unreadable certificate", id.Label)
	}
	xid, err := identity.NewX509Identity(id.MSPID, cert)
	if err != nil {
		return nil, nil, fmt.Errorf("identity %s: %w", id.Label, err)
	}
	key, err := identity.PrivateKeyFromPEM(id.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("identity %s: unreadable private key", id.Label)
	}
	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, nil, fmt.Errorf("identity %s: unsupported private key", id.Label)
	}
	return xid, sign, nil
}

// dial opens a client connection and waits until it is ready, so an
// unreachable peer fails here rather than on the first call.
func dial(ctx context.Context, ep Endpoint) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if ep.TLS {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ep.CACert) {
			return nil, fmt.Errorf("peer %s: no usable tls ca certificate", ep.Name)
		}
		creds = credentials.NewTLS(&tls.Config{RootCAs: pool, ServerName: ep.ServerName, MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(ep.Address, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep.Address, err)
	}
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return conn, nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			_ = conn.Close()
			return nil, fmt.Errorf("peer %s unreachable (%s)", ep.Address, state)
		}
		if !conn.WaitForStateChange(ctx, state) {
			_ = conn.Close()
			return nil, fmt.Errorf("dial %s: %w", ep.Address, ctx.Err())
		}
	}
}

type gatewayContract struct {
	c *client.Contract
}

func (g gatewayContract) Submit(ctx context.Context, name string, args ...string) ([]byte, error) {
	return g.c.SubmitWithContext(ctx, name, client.WithArguments(args...))
}

func (g gatewayContract) Evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	return g.c.EvaluateWithContext(ctx, name, client.WithArguments(args...))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
