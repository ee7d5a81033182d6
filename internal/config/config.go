package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tera-bt/teraland-gateway/internal/logging"
)

// Config is the resolved runtime configuration for the gateway and the wallet CLI.
type Config struct {
	HTTP     HTTP
	Wallet   Wallet
	Crypto   Crypto
	Fabric   Fabric
	Gateway  Gateway
	DB       DB
	Redis    Redis
	NATS     NATS
	OTel     OTel
	JWT      JWT
	Audit    Audit
	LogLevel string
}

type HTTP struct {
	Port           string
	CORSOrigins    []string
	TrustedProxies []string
	RatePerMinute  int
}

type Wallet struct {
	Backend string // file|postgres
	Dir     string
}

// Crypto locates the cryptogen output tree identities are imported from.
type Crypto struct {
	Root   string
	Domain string
}

type Fabric struct {
	Profile     string
	Channel     string
	Contract    string
	Peer        string
	Discovery   bool
	AsLocalhost bool
}

type Gateway struct {
	ServiceIdentity string
	ReadIdentity    string
	Timeout         time.Duration
}

type DB struct{ DSN string }

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type NATS struct{ URL string }

type OTel struct {
	Enable   bool
	Endpoint string
}

type JWT struct{ Secret string }

type Audit struct{ VerifyCron string }

// SetDefaults registers every key with its default so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.cors_origins", "http://localhost:3000")
	v.SetDefault("http.trusted_proxies", "")
	v.SetDefault("http.rate_per_minute", 120)
	v.SetDefault("wallet.backend", "file")
	v.SetDefault("wallet.dir", "./wallet")
	v.SetDefault("crypto.root", "../config/crypto-config/peerOrganizations")
	v.SetDefault("crypto.domain", "tera.bt")
	v.SetDefault("fabric.profile", "./connection.json")
	v.SetDefault("fabric.channel", "teraconsortiumchannel")
	v.SetDefault("fabric.contract", "tera-landregistry")
	v.SetDefault("fabric.peer", "")
	v.SetDefault("fabric.discovery", false)
	v.SetDefault("fabric.as_localhost", true)
	v.SetDefault("gateway.service_identity", "Admin@govt.tera.bt")
	v.SetDefault("gateway.read_identity", "")
	v.SetDefault("gateway.timeout", "30s")
	v.SetDefault("db.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "")
	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("audit.verify_cron", "")
	v.SetDefault("log.level", "info")
}

// Load reads .env (if present), an optional YAML file named by TERALAND_CONFIG,
// then TERALAND_* environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("could not load .env file: %v", err)
	}
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("TERALAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path := os.Getenv("TERALAND_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	// Plain PORT is what most process managers set.
	if p := os.Getenv("PORT"); p != "" && os.Getenv("TERALAND_HTTP_PORT") == "" {
		v.Set("http.port", p)
	}
	return FromViper(v)
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	timeout, err := time.ParseDuration(v.GetString("gateway.timeout"))
	if err != nil {
		return nil, errors.New("gateway.timeout: " + err.Error())
	}
	if timeout <= 0 {
		return nil, errors.New("gateway.timeout must be positive")
	}
	c := &Config{
		HTTP: HTTP{
			Port:           v.GetString("http.port"),
			CORSOrigins:    splitList(v.GetString("http.cors_origins")),
			TrustedProxies: splitList(v.GetString("http.trusted_proxies")),
			RatePerMinute:  v.GetInt("http.rate_per_minute"),
		},
		Wallet: Wallet{
			Backend: strings.ToLower(v.GetString("wallet.backend")),
			Dir:     v.GetString("wallet.dir"),
		},
		Crypto: Crypto{
			Root:   v.GetString("crypto.root"),
			Domain: v.GetString("crypto.domain"),
		},
		Fabric: Fabric{
			Profile:     v.GetString("fabric.profile"),
			Channel:     v.GetString("fabric.channel"),
			Contract:    v.GetString("fabric.contract"),
			Peer:        v.GetString("fabric.peer"),
			Discovery:   v.GetBool("fabric.discovery"),
			AsLocalhost: v.GetBool("fabric.as_localhost"),
		},
		Gateway: Gateway{
			ServiceIdentity: v.GetString("gateway.service_identity"),
			ReadIdentity:    v.GetString("gateway.read_identity"),
			Timeout:         timeout,
		},
		DB:       DB{DSN: v.GetString("db.dsn")},
		Redis:    Redis{Addr: v.GetString("redis.addr"), Password: v.GetString("redis.password"), DB: v.GetInt("redis.db")},
		NATS:     NATS{URL: v.GetString("nats.url")},
		OTel:     OTel{Enable: v.GetBool("otel.enable"), Endpoint: v.GetString("otel.endpoint")},
		JWT:      JWT{Secret: v.GetString("jwt.secret")},
		Audit:    Audit{VerifyCron: v.GetString("audit.verify_cron")},
		LogLevel: v.GetString("log.level"),
	}
	if c.Gateway.ReadIdentity == "" {
		c.Gateway.ReadIdentity = c.Gateway.ServiceIdentity
	}
	switch c.Wallet.Backend {
	case "file", "postgres":
	default:
		return nil, errors.New("wallet.backend must be file or postgres")
	}
	if c.Wallet.Backend == "postgres" && c.DB.DSN == "" {
		return nil, errors.New("wallet.backend=postgres requires db.dsn")
	}
	return c, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
