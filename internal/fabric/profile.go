package fabric

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"sigs.k8s.io/yaml"
)

// Profile is the subset of a Fabric common connection profile the gateway
// needs: organizations and their peers. JSON and YAML are both accepted.
type Profile struct {
	Name          string                  `json:"name"`
	Client        ProfileClient           `json:"client"`
	Organizations map[string]Organization `json:"organizations"`
	Peers         map[string]Peer         `json:"peers"`

	dir string
}

type ProfileClient struct {
	Organization string `json:"organization"`
}

type Organization struct {
	MSPID string   `json:"mspid"`
	Peers []string `json:"peers"`
}

type Peer struct {
	URL         string         `json:"url"`
	TLSCACerts  TLSCACerts     `json:"tlsCACerts"`
	GRPCOptions map[string]any `json:"grpcOptions"`
}

type TLSCACerts struct {
	PEM  string `json:"pem"`
	Path string `json:"path"`
}

// Endpoint is one resolved peer address.
type Endpoint struct {
	Name       string
	Address    string // host:port
	TLS        bool
	CACert     []byte
	ServerName string
}

// LoadProfile reads and parses a connection profile file.
func LoadProfile(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connection profile: %w", err)
	}
	p, err := ParseProfile(b)
	if err != nil {
		return nil, err
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

func ParseProfile(b []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse connection profile: %w", err)
	}
	if len(p.Peers) == 0 {
		return nil, errors.New("parse connection profile: no peers defined")
	}
	return &p, nil
}

// Endpoint picks the peer to talk to: the preferred peer when named, else the
// first peer of the organization owning mspID, else the lexically first peer.
// With asLocalhost the host is rewritten to localhost and the original host
// name is kept for TLS verification.
func (p *Profile) Endpoint(mspID, preferred string, asLocalhost bool) (Endpoint, error) {
	name := preferred
	if name == "" {
		name = p.peerForMSP(mspID)
	}
	if name == "" {
		names := make([]string, 0, len(p.Peers))
		for n := range p.Peers {
			names = append(names, n)
		}
		sort.Strings(names)
		name = names[0]
	}
	peer, ok := p.Peers[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("peer %s not defined in connection profile", name)
	}
	u, err := url.Parse(peer.URL)
	if err != nil || u.Host == "" {
		return Endpoint{}, fmt.Errorf("peer %s: bad url %q", name, peer.URL)
	}
	ep := Endpoint{Name: name}
	switch u.Scheme {
	case "grpcs":
		ep.TLS = true
	case "grpc":
	default:
		return Endpoint{}, fmt.Errorf("peer %s: unsupported scheme %q", name, u.Scheme)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		return Endpoint{}, fmt.Errorf("peer %s: url %q has no port", name, peer.URL)
	}
	ep.ServerName = host
	if o, ok := peer.GRPCOptions["ssl-target-name-override"].(string); ok && o != "" {
		ep.ServerName = o
	} else if o, ok := peer.GRPCOptions["hostnameOverride"].(string); ok && o != "" {
		ep.ServerName = o
	}
	if asLocalhost {
		host = "localhost"
	}
	ep.Address = net.JoinHostPort(host, port)
	if ep.TLS {
		ca, err := p.caCert(name, peer.TLSCACerts)
		if err != nil {
			return Endpoint{}, err
		}
		ep.CACert = ca
	}
	return ep, nil
}

func (p *Profile) peerForMSP(mspID string) string {
	for _, org := range p.Organizations {
		if org.MSPID == mspID && len(org.Peers) > 0 {
			return org.Peers[0]
		}
	}
	if org, ok := p.Organizations[p.Client.Organization]; ok && len(org.Peers) > 0 {
		return org.Peers[0]
	}
	return ""
}

func (p *Profile) caCert(peer string, c TLSCACerts) ([]byte, error) {
	if c.PEM != "" {
		return []byte(c.PEM), nil
	}
	if c.Path == "" {
		return nil, fmt.Errorf("peer %s: grpcs url without tlsCACerts", peer)
	}
	path := c.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("peer %s: tls ca: %w", peer, err)
	}
	return b, nil
}
