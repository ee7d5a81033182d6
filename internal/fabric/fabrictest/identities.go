package fabrictest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/tera-bt/teraland-gateway/internal/wallet"
)

// Identities is a fixed credential set keyed by label.
type Identities map[string]wallet.Identity

// NewIdentities creates placeholder credentials for each label, deriving the
// MSP id from the organization part of the label.
func NewIdentities(labels ...string) Identities {
	ids := Identities{}
	for _, l := range labels {
		org := ""
		if at := strings.IndexByte(l, '@'); at >= 0 {
			org, _, _ = strings.Cut(l[at+1:], ".")
		}
		ids[l] = wallet.Identity{
			Label:       l,
			MSPID:       wallet.MSPID(org),
			Certificate: []byte("cert:" + l),
			PrivateKey:  []byte("key:" + l),
			Type:        wallet.X509,
		}
	}
	return ids
}

func (ids Identities) Lookup(_ context.Context, label string) (wallet.Identity, error) {
	id, ok := ids[label]
	if !ok {
		return wallet.Identity{}, wallet.ErrNotFound
	}
	return id, nil
}

// Profile is a two-organization connection profile with plaintext peers.
const Profile = `{
  "name": "teraland-test",
  "client": {"organization": "Govt"},
  "organizations": {
    "Govt": {"mspid": "GovtMSP", "peers": ["peer0.govt.tera.bt"]},
    "Buyers": {"mspid": "BuyersMSP", "peers": ["peer0.buyers.tera.bt"]}
  },
  "peers": {
    "peer0.govt.tera.bt": {"url": "grpc://peer0.govt.tera.bt:7051"},
    "peer0.buyers.tera.bt": {"url": "grpc://peer0.buyers.tera.bt:9051"}
  }
}`

// WriteProfile writes Profile into dir and returns its path.
func WriteProfile(dir string) (string, error) {
	path := filepath.Join(dir, "connection.json")
	return path, os.WriteFile(path, []byte(Profile), 0o600)
}
