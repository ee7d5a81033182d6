package wallet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newCredential returns a self-signed certificate and its PKCS#8 key, both PEM.
func newCredential(t *testing.T, cn string) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	pk, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pk})
	return certPEM, keyPEM
}

func testIdentity(t *testing.T, label string) Identity {
	t.Helper()
	cert, key := newCredential(t, label)
	return Identity{Label: label, MSPID: "SellersMSP", Certificate: cert, PrivateKey: key, Type: X509}
}

// writeCryptogenUser lays out a cryptogen-style msp directory and returns the keystore path.
func writeCryptogenUser(t *testing.T, p Provisioner, org, user string, cert []byte, keys map[string][]byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p.CertPath(org, user)), 0o755))
	require.NoError(t, os.WriteFile(p.CertPath(org, user), cert, 0o644))
	ks := p.KeystoreDir(org, user)
	require.NoError(t, os.MkdirAll(ks, 0o755))
	for name, b := range keys {
		require.NoError(t, os.WriteFile(filepath.Join(ks, name), b, 0o600))
	}
	return ks
}
