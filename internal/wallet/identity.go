package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// X509 is the only credential kind the gateway understands.
const X509 = "X.509"

// Identity is an X.509 credential bundle stored under a unique label.
type Identity struct {
	Label       string
	MSPID       string
	Certificate []byte // PEM
	PrivateKey  []byte // PEM
	Type        string
}

// String never includes key material.
func (id Identity) String() string {
	return fmt.Sprintf("%s (%s, %s)", id.Label, id.MSPID, id.kind())
}

func (id Identity) kind() string {
	if id.Type == "" {
		return X509
	}
	return id.Type
}

// Validate checks the fields needed to authenticate a session.
func (id Identity) Validate() error {
	switch {
	case strings.TrimSpace(id.Label) == "":
		return errors.New("identity label is empty")
	case id.MSPID == "":
		return fmt.Errorf("identity %s: msp id is empty", id.Label)
	case len(id.Certificate) == 0:
		return fmt.Errorf("identity %s: certificate is empty", id.Label)
	case len(id.PrivateKey) == 0:
		return fmt.Errorf("identity %s: private key is empty", id.Label)
	case id.kind() != X509:
		return fmt.Errorf("identity %s: unsupported type %q", id.Label, id.Type)
	}
	return nil
}

// walletFile mirrors the Fabric SDK wallet record so wallets written by the
// node tooling can be read here and vice versa.
type walletFile struct {
	Credentials struct {
		Certificate string `json:"certificate"`
		PrivateKey  string `json:"privateKey"`
	} `json:"credentials"`
	MSPID   string `json:"mspId"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// Marshal encodes the identity in wallet record format (label is the record key, not part of the payload).
func (id Identity) Marshal() ([]byte, error) {
	var f walletFile
	f.Credentials.Certificate = string(id.Certificate)
	f.Credentials.PrivateKey = string(id.PrivateKey)
	f.MSPID = id.MSPID
	f.Type = id.kind()
	f.Version = 1
	return json.Marshal(f)
}

// Unmarshal decodes a wallet record stored under label.
func Unmarshal(label string, data []byte) (Identity, error) {
	var f walletFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Identity{}, fmt.Errorf("identity %s: malformed wallet record: %w", label, err)
	}
	return Identity{
		Label:       label,
		MSPID:       f.MSPID,
		Certificate: []byte(f.Credentials.Certificate),
		PrivateKey:  []byte(f.Credentials.PrivateKey),
		Type:        f.Type,
	}, nil
}

// Label derives the identity label user@org.domain.
func Label(org, user, domain string) string {
	return user + "@" + org + "." + domain
}

// MSPID derives the membership service provider id: capitalized org + "MSP".
func MSPID(org string) string {
	if org == "" {
		return "MSP"
	}
	r, n := utf8.DecodeRuneInString(org)
	return string(unicode.ToUpper(r)) + org[n:] + "MSP"
}
