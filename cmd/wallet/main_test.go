package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tera-bt/teraland-gateway/internal/config"
	"github.com/tera-bt/teraland-gateway/internal/wallet"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Wallet: config.Wallet{Backend: "file", Dir: filepath.Join(dir, "wallet")},
		Crypto: config.Crypto{Root: filepath.Join(dir, "peerOrganizations"), Domain: "tera.bt"},
	}
}

// writeUser lays out cryptogen material for org/user under cfg.Crypto.Root.
func writeUser(t *testing.T, cfg *config.Config, org, user string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: user},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	pk, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	p := wallet.Provisioner{Root: cfg.Crypto.Root, Domain: cfg.Crypto.Domain}
	require.NoError(t, os.MkdirAll(filepath.Dir(p.CertPath(org, user)), 0o755))
	require.NoError(t, os.WriteFile(p.CertPath(org, user), pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.MkdirAll(p.KeystoreDir(org, user), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.KeystoreDir(org, user), "priv_sk"), pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pk}), 0o600))
}

func run(cfg *config.Config, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(cfg, &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddListExport(t *testing.T) {
	cfg := testConfig(t)
	writeUser(t, cfg, "govt", "Admin")

	out, err := run(cfg, "add", "govt", "Admin")
	require.NoError(t, err)
	assert.Contains(t, out, `Successfully added user "Admin@govt.tera.bt" to the wallet`)
	assert.FileExists(t, filepath.Join(cfg.Wallet.Dir, "Admin@govt.tera.bt.id"))

	out, err = run(cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "user: Admin@govt.tera.bt")

	out, err = run(cfg, "export", "govt", "Admin")
	require.NoError(t, err)
	assert.Contains(t, out, `"mspId":"GovtMSP"`)
	assert.Contains(t, out, "BEGIN CERTIFICATE")
}

func TestAdd_ExistingLabelIsNotAnError(t *testing.T) {
	cfg := testConfig(t)
	writeUser(t, cfg, "sellers", "seller1")
	_, err := run(cfg, "add", "sellers", "seller1")
	require.NoError(t, err)

	out, err := run(cfg, "add", "sellers", "seller1")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists in the wallet")
}

func TestAdd_MissingMaterialFails(t *testing.T) {
	cfg := testConfig(t)
	out, err := run(cfg, "add", "buyers", "ghost")
	require.Error(t, err)
	assert.Contains(t, out, "error reading certificate or key for buyers/ghost")

	entries, _ := os.ReadDir(cfg.Wallet.Dir)
	assert.Empty(t, entries)
}

func TestExport_NotFound(t *testing.T) {
	cfg := testConfig(t)
	out, err := run(cfg, "export", "buyers", "buyer9")
	require.NoError(t, err)
	assert.Contains(t, out, "Identity buyer9 for buyers Org Not found!!!")
}

func TestMissingArgs(t *testing.T) {
	cfg := testConfig(t)
	out, err := run(cfg, "add", "govt")
	require.Error(t, err)
	assert.Contains(t, out, "org & user are needed")
	assert.Contains(t, out, "Usage:")
}

func TestList_Empty(t *testing.T) {
	out, err := run(testConfig(t), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No identities found in wallet.")
}

func TestPostgresBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Wallet.Backend = "postgres"
	cfg.DB.DSN = "postgres://wallet@localhost/teraland"
	writeUser(t, cfg, "govt", "Admin")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	orig := connect
	var gotDSN string
	connect = func(_ context.Context, dsn string) (*sqlx.DB, error) {
		gotDSN = dsn
		return sqlx.NewDb(db, "sqlmock"), nil
	}
	t.Cleanup(func() { connect = orig })

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(1) FROM wallet_identities WHERE label=$1`)).
		WithArgs("Admin@govt.tera.bt").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO wallet_identities(label, payload) VALUES ($1,$2) ON CONFLICT (label) DO NOTHING`)).
		WithArgs("Admin@govt.tera.bt", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	out, err := run(cfg, "add", "govt", "Admin")
	require.NoError(t, err)
	assert.Contains(t, out, `Successfully added user "Admin@govt.tera.bt" to the wallet`)
	assert.Equal(t, cfg.DB.DSN, gotDSN)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoDirExists(t, cfg.Wallet.Dir, "file wallet must not be touched")
}

func TestPostgresBackend_ListReadsTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Wallet.Backend = "postgres"
	cfg.DB.DSN = "postgres://wallet@localhost/teraland"

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	orig := connect
	connect = func(context.Context, string) (*sqlx.DB, error) { return sqlx.NewDb(db, "sqlmock"), nil }
	t.Cleanup(func() { connect = orig })

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT label FROM wallet_identities ORDER BY label`)).
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow("buyer1@buyers.tera.bt"))
	mock.ExpectClose()

	out, err := run(cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "user: buyer1@buyers.tera.bt")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_RequiresDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Wallet.Backend = "postgres"
	out, err := run(cfg, "list")
	require.Error(t, err)
	assert.Contains(t, out, "requires a dsn")
}
