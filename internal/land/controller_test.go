package land_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tera-bt/teraland-gateway/internal/audit"
	"github.com/tera-bt/teraland-gateway/internal/fabric"
	"github.com/tera-bt/teraland-gateway/internal/fabric/fabrictest"
	"github.com/tera-bt/teraland-gateway/internal/land"
	"github.com/tera-bt/teraland-gateway/internal/mesh"
)

const (
	seller  = "seller1@sellers.tera.bt"
	buyer   = "buyer1@buyers.tera.bt"
	service = "Admin@govt.tera.bt"
)

// recorder refuses entries on a done context, as a database driver would.
type recorder struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (r *recorder) Append(ctx context.Context, e audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

type harness struct {
	ctl   *land.Controller
	conn  *fabrictest.Connector
	audit *recorder
	bus   *mesh.LocalBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path, err := fabrictest.WriteProfile(t.TempDir())
	require.NoError(t, err)
	conn := &fabrictest.Connector{Ledger: fabrictest.NewLedger(service)}
	factory := &fabric.Factory{
		Identities:  fabrictest.NewIdentities(seller, buyer, service),
		ProfilePath: path,
		Channel:     "teraconsortiumchannel",
		Contract:    "tera-landregistry",
		Connector:   conn,
	}
	h := &harness{conn: conn, audit: &recorder{}, bus: mesh.NewLocalBus()}
	h.ctl = &land.Controller{
		Gateway:         &fabric.Gateway{Sessions: factory, Timeout: 5 * time.Second},
		Bus:             h.bus,
		Audit:           h.audit,
		Channel:         "teraconsortiumchannel",
		ServiceIdentity: service,
	}
	return h
}

func (h *harness) read(t *testing.T, id string) land.Asset {
	t.Helper()
	rec, err := h.ctl.Read(context.Background(), land.ReadRequest{ID: id})
	require.NoError(t, err)
	a, err := rec.Asset()
	require.NoError(t, err)
	return a
}

func TestListThenRead_RoundTrip(t *testing.T) {
	h := newHarness(t)
	for _, in := range []land.ListRequest{
		{ID: "land123", Location: "Mongar, Bhutan", Size: "500sqm", Price: "10000", OwnerIdentity: seller},
		{ID: "plot-7", Location: "Paro", Size: "2 acres", Price: "0", OwnerIdentity: buyer},
	} {
		_, err := h.ctl.List(context.Background(), in)
		require.NoError(t, err)

		a := h.read(t, in.ID)
		want, _ := in.Price.Int()
		assert.Equal(t, in.ID, a.ID)
		assert.Equal(t, in.Location, a.Location)
		assert.Equal(t, in.Size, a.Size)
		assert.Equal(t, want, a.Price)
		assert.Equal(t, in.OwnerIdentity, a.Owner)
		assert.Equal(t, land.StatusListed, a.Status)
	}
}

func TestExampleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sold := make(chan mesh.Event, 1)
	_, err := h.bus.Subscribe(mesh.TopicLandSold, func(_ context.Context, e mesh.Event) { sold <- e })
	require.NoError(t, err)

	_, err = h.ctl.List(ctx, land.ListRequest{ID: "land123", Location: "Mongar, Bhutan", Size: "500sqm", Price: "10000", OwnerIdentity: seller})
	require.NoError(t, err)
	_, err = h.ctl.Sell(ctx, land.SellRequest{ID: "land123", Price: "12000", OwnerIdentity: seller})
	require.NoError(t, err)
	_, err = h.ctl.Buy(ctx, land.BuyRequest{ID: "land123", BuyerIdentity: buyer})
	require.NoError(t, err)

	a := h.read(t, "land123")
	assert.Equal(t, buyer, a.Owner)
	assert.Equal(t, land.StatusSold, a.Status)
	assert.Equal(t, int64(12000), a.Price)

	select {
	case e := <-sold:
		assert.Contains(t, string(e.Payload), `"actor":"buyer1@buyers.tera.bt"`)
	case <-time.After(time.Second):
		t.Fatal("no sold event")
	}

	var procs []string
	for _, e := range h.audit.entries {
		procs = append(procs, e.Procedure)
	}
	assert.Equal(t, []string{"ListLand", "SellLand", "BuyLand"}, procs, "reads are not audited")
	assert.Equal(t, 0, h.conn.Open())
}

func TestSellUnlisted_Fails(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Sell(context.Background(), land.SellRequest{ID: "ghost", Price: "1", OwnerIdentity: seller})
	var re *fabric.RemoteExecutionError
	require.True(t, errors.As(err, &re))
	var rj *land.RejectedError
	require.True(t, errors.As(err, &rj))
	assert.Equal(t, land.StatusListed, rj.Requires)
	assert.Contains(t, err.Error(), "land ghost does not exist")
	assert.Empty(t, h.audit.entries)
}

func TestBuyNotForSale_Fails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctl.List(ctx, land.ListRequest{ID: "l1", Price: "5", OwnerIdentity: seller})
	require.NoError(t, err)

	_, err = h.ctl.Buy(ctx, land.BuyRequest{ID: "l1", BuyerIdentity: buyer})
	var rj *land.RejectedError
	require.True(t, errors.As(err, &rj))
	assert.Equal(t, land.StatusForSale, rj.Requires)
	assert.Contains(t, err.Error(), "land l1 is not for sale")
	assert.Equal(t, seller, h.read(t, "l1").Owner)
}

func TestTransfer_UsesServiceIdentityAndKeepsStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctl.List(ctx, land.ListRequest{ID: "l1", Price: "5", OwnerIdentity: seller})
	require.NoError(t, err)
	_, err = h.ctl.Sell(ctx, land.SellRequest{ID: "l1", Price: "9", OwnerIdentity: seller})
	require.NoError(t, err)

	_, err = h.ctl.Transfer(ctx, land.TransferRequest{ID: "l1", NewOwner: "heir@sellers.tera.bt"})
	require.NoError(t, err)

	a := h.read(t, "l1")
	assert.Equal(t, "heir@sellers.tera.bt", a.Owner)
	assert.Equal(t, land.StatusForSale, a.Status)

	calls := h.conn.Calls()
	var transfer fabrictest.Call
	for _, c := range calls {
		if c.Procedure == "TransferLandOwnership" {
			transfer = c
		}
	}
	assert.Equal(t, service, transfer.Identity)
	assert.Equal(t, []string{"l1", "heir@sellers.tera.bt"}, transfer.Args)
}

func TestMissingServiceIdentityIsConfigError(t *testing.T) {
	h := newHarness(t)
	h.ctl.ServiceIdentity = ""
	ctx := context.Background()

	_, err := h.ctl.Transfer(ctx, land.TransferRequest{ID: "l1", NewOwner: buyer})
	var ce *land.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "service identity", ce.Setting)
	var ve *land.ValidationError
	assert.False(t, errors.As(err, &ve))

	_, err = h.ctl.Read(ctx, land.ReadRequest{ID: "l1"})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "read identity", ce.Setting)
	assert.Empty(t, h.conn.Calls())
}

func TestRead_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Read(context.Background(), land.ReadRequest{ID: "nope"})
	var nf *land.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nope", nf.ID)
	assert.Equal(t, service, h.conn.Calls()[0].Identity)
}

func TestValidationNeverOpensSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ctl.List(ctx, land.ListRequest{ID: "l1", Location: "Paro", Size: "1", Price: "1"})
	var ve *land.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "ownerIdentity", ve.Field)

	_, err = h.ctl.Sell(ctx, land.SellRequest{ID: "l1", Price: "abc", OwnerIdentity: seller})
	require.True(t, errors.As(err, &ve))
	_, err = h.ctl.Buy(ctx, land.BuyRequest{ID: "", BuyerIdentity: buyer})
	require.True(t, errors.As(err, &ve))

	assert.Zero(t, h.conn.Connects(), "no connection-layer side effect")
}

func TestUnknownIdentity_NoSubmission(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.List(context.Background(), land.ListRequest{ID: "l1", Price: "1", OwnerIdentity: "stranger@nowhere.tera.bt"})
	var inf *fabric.IdentityNotFoundError
	require.True(t, errors.As(err, &inf))
	assert.Empty(t, h.conn.Calls())
}

func TestAuditFailureDoesNotFailCall(t *testing.T) {
	h := newHarness(t)
	h.audit.err = errors.New("db down")
	_, err := h.ctl.List(context.Background(), land.ListRequest{ID: "l1", Price: "1", OwnerIdentity: seller})
	assert.NoError(t, err)
	assert.Len(t, h.audit.entries, 1)
}

// cancelAfterSubmit cancels the caller's context once the ledger has
// accepted a submit.
type cancelAfterSubmit struct {
	land.Ledger
	cancel context.CancelFunc
}

func (c cancelAfterSubmit) Submit(ctx context.Context, label, name string, args ...string) ([]byte, error) {
	out, err := c.Ledger.Submit(ctx, label, name, args...)
	c.cancel()
	return out, err
}

func TestCommittedSubmitIsAuditedAfterCallerCancels(t *testing.T) {
	h := newHarness(t)
	got := make(chan mesh.Event, 1)
	_, _ = h.bus.Subscribe(mesh.TopicLandListed, func(_ context.Context, e mesh.Event) { got <- e })

	ctx, cancel := context.WithCancel(land.WithRequestID(context.Background(), "req-7"))
	defer cancel()
	h.ctl.Gateway = cancelAfterSubmit{Ledger: h.ctl.Gateway, cancel: cancel}

	_, err := h.ctl.List(ctx, land.ListRequest{ID: "l1", Price: "1", OwnerIdentity: seller})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	h.audit.mu.Lock()
	entries := append([]audit.Entry(nil), h.audit.entries...)
	h.audit.mu.Unlock()
	require.Len(t, entries, 1)
	assert.Equal(t, "ListLand", entries[0].Procedure)
	assert.Equal(t, "l1", entries[0].AssetID)

	select {
	case e := <-got:
		assert.Contains(t, string(e.Payload), `"requestId":"req-7"`)
	case <-time.After(time.Second):
		t.Fatal("no listed event after cancellation")
	}
}

func TestRequestIDFlowsIntoEvents(t *testing.T) {
	h := newHarness(t)
	got := make(chan mesh.Event, 1)
	_, _ = h.bus.Subscribe(mesh.TopicLandListed, func(_ context.Context, e mesh.Event) { got <- e })

	ctx := land.WithRequestID(context.Background(), "req-42")
	_, err := h.ctl.List(ctx, land.ListRequest{ID: "l1", Price: "1", OwnerIdentity: seller})
	require.NoError(t, err)
	select {
	case e := <-got:
		assert.Contains(t, string(e.Payload), `"requestId":"req-42"`)
		assert.Contains(t, string(e.Payload), `"status":"Listed"`)
	case <-time.After(time.Second):
		t.Fatal("no listed event")
	}
}
