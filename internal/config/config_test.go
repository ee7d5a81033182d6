package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	c, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", c.HTTP.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, c.HTTP.CORSOrigins)
	assert.Empty(t, c.HTTP.TrustedProxies)
	assert.Equal(t, "file", c.Wallet.Backend)
	assert.Equal(t, "teraconsortiumchannel", c.Fabric.Channel)
	assert.Equal(t, "tera-landregistry", c.Fabric.Contract)
	assert.False(t, c.Fabric.Discovery)
	assert.True(t, c.Fabric.AsLocalhost)
	assert.Equal(t, 30*time.Second, c.Gateway.Timeout)
	assert.Equal(t, "Admin@govt.tera.bt", c.Gateway.ServiceIdentity)
	assert.Equal(t, c.Gateway.ServiceIdentity, c.Gateway.ReadIdentity, "read identity falls back to service identity")
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("http.cors_origins", " https://a.example , ,https://b.example")
	v.Set("gateway.read_identity", "viewer@govt.tera.bt")
	v.Set("gateway.timeout", "5s")
	c, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.HTTP.CORSOrigins)
	assert.Equal(t, "viewer@govt.tera.bt", c.Gateway.ReadIdentity)
	assert.Equal(t, 5*time.Second, c.Gateway.Timeout)
}

func TestFromViper_Invalid(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"bad timeout":       func(v *viper.Viper) { v.Set("gateway.timeout", "soon") },
		"zero timeout":      func(v *viper.Viper) { v.Set("gateway.timeout", "0s") },
		"unknown backend":   func(v *viper.Viper) { v.Set("wallet.backend", "couchdb") },
		"postgres sans dsn": func(v *viper.Viper) { v.Set("wallet.backend", "postgres") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			mutate(v)
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}
