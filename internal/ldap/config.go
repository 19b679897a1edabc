package ldap

import (
	"crypto/tls"
	"fmt"

	"github.com/creasty/defaults"
)

// SASL mechanism names accepted in ConnectionConfig.SASLMechanism.
const (
	SASLMechanismExternal = "external"
	SASLMechanismGSSAPI   = "gssapi"
)

// ConnectionConfig holds connection and authentication settings for a
// directory session. A session uses exactly one connection, created lazily
// and never recreated, so there are no pool or retry knobs here.
type ConnectionConfig struct {
	// Connection settings
	ServerURI string `default:"ldapi:///"` // directory endpoint; default is the local IPC socket
	StartTLS  bool   // upgrade the connection in-band before binding
	TLSConfig *tls.Config

	// Simple bind settings. A nil BindDN selects a SASL bind using the
	// transport identity; an empty non-nil BindDN is an anonymous bind.
	BindDN *string
	BindPW string

	// SASL settings, used only when BindDN is unset.
	SASLMechanism string `default:"external"`

	// Kerberos settings for the gssapi mechanism.
	KerberosUser   string
	KerberosRealm  string
	KerberosKeytab string
	KerberosCCache string
	KerberosConfig string `default:"/etc/krb5.conf"`
	KerberosSPN    string
}

// NewConnectionConfig returns a config with defaults applied.
func NewConnectionConfig() (*ConnectionConfig, error) {
	config := &ConnectionConfig{}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return config, nil
}

// Validate checks settings that can be rejected before any I/O.
func (c *ConnectionConfig) Validate() error {
	if c.ServerURI == "" {
		return fmt.Errorf("server_uri must not be empty")
	}
	switch c.SASLMechanism {
	case SASLMechanismExternal, SASLMechanismGSSAPI:
		return nil
	default:
		return fmt.Errorf("unsupported SASL mechanism %q: expected %q or %q",
			c.SASLMechanism, SASLMechanismExternal, SASLMechanismGSSAPI)
	}
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // explicit bind DN and password
	AuthMethodExternal                     // SASL EXTERNAL, transport identity
	AuthMethodKerberos                     // SASL GSSAPI via gokrb5
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodExternal:
		return "external"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the authentication method from the configuration.
// An explicitly supplied bind DN always selects simple bind, even when empty
// (anonymous); otherwise the SASL mechanism decides.
func (c *ConnectionConfig) GetAuthMethod() AuthMethod {
	if c.BindDN != nil {
		return AuthMethodSimpleBind
	}
	if c.SASLMechanism == SASLMechanismGSSAPI {
		return AuthMethodKerberos
	}
	return AuthMethodExternal
}
