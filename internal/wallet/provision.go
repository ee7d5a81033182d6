package wallet

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tera-bt/teraland-gateway/internal/logging"
)

// Provisioner reads user credentials from a cryptogen output tree:
//
//	<Root>/<org>.<Domain>/users/<user>@<org>.<Domain>/msp/signcerts/<user>@<org>.<Domain>-cert.pem
//	<Root>/<org>.<Domain>/users/<user>@<org>.<Domain>/msp/keystore/*
type Provisioner struct {
	Root   string
	Domain string
}

func (p Provisioner) Label(org, user string) string { return Label(org, user, p.Domain) }

func (p Provisioner) mspDir(org, user string) string {
	return filepath.Join(p.Root, org+"."+p.Domain, "users", p.Label(org, user), "msp")
}

func (p Provisioner) CertPath(org, user string) string {
	return filepath.Join(p.mspDir(org, user), "signcerts", p.Label(org, user)+"-cert.pem")
}

func (p Provisioner) KeystoreDir(org, user string) string {
	return filepath.Join(p.mspDir(org, user), "keystore")
}

// Load builds the identity for org/user from the tree. It performs no writes.
func (p Provisioner) Load(org, user string) (Identity, error) {
	if org == "" || user == "" {
		return Identity{}, errors.New("org and user are required")
	}
	certPath := p.CertPath(org, user)
	logging.Debug("certificate path: %s", certPath)
	cert, err := os.ReadFile(certPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{}, fmt.Errorf("certificate file %s: %w", certPath, ErrNotFound)
		}
		return Identity{}, err
	}
	key, err := p.readKey(p.KeystoreDir(org, user), cert)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Label:       p.Label(org, user),
		MSPID:       MSPID(org),
		Certificate: cert,
		PrivateKey:  key,
		Type:        X509,
	}, nil
}

func (p Provisioner) readKey(dir string, certPEM []byte) ([]byte, error) {
	logging.Debug("private key directory: %s", dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("private key directory %s: %w", dir, ErrNotFound)
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	switch len(files) {
	case 0:
		return nil, fmt.Errorf("%s: %w", dir, ErrEmptyKeystore)
	case 1:
		return os.ReadFile(files[0])
	}

	// Several keys: take the one paired with the certificate rather than guessing by name or mtime.
	certPub, err := certificatePublicKey(certPEM)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		pub, err := privateKeyPublic(b)
		if err != nil {
			logging.Debug("skipping unreadable key file %s: %v", f, err)
			continue
		}
		if eq, ok := pub.(interface{ Equal(crypto.PublicKey) bool }); ok && eq.Equal(certPub) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", dir, ErrAmbiguousKeystore)
}

func certificatePublicKey(certPEM []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("certificate is not PEM encoded")
	}
	c, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return c.PublicKey, nil
}

func privateKeyPublic(keyPEM []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("key is not PEM encoded")
	}
	var (
		k   any
		err error
	)
	switch block.Type {
	case "EC PRIVATE KEY":
		k, err = x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		k, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		k, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, err
	}
	s, ok := k.(crypto.Signer)
	if !ok {
		return nil, errors.New("unsupported private key type")
	}
	return s.Public(), nil
}
