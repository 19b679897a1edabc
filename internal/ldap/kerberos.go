package ldap

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// bindGSSAPI performs a SASL GSSAPI (Kerberos) bind on the connection.
func (s *Session) bindGSSAPI(conn *ldap.Conn) error {
	gssapiClient, err := s.newGSSAPIClient()
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := s.servicePrincipal()
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// newGSSAPIClient creates a GSSAPI client from the configured credentials.
// Priority order: credential cache, then keytab, then password.
func (s *Session) newGSSAPIClient() (ldap.GSSAPIClient, error) {
	cfg := s.config

	if cfg.KerberosCCache != "" {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, cfg.KerberosConfig,
			krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" {
		return gssapi.NewClientWithKeytab(cfg.KerberosUser, cfg.KerberosRealm,
			cfg.KerberosKeytab, cfg.KerberosConfig,
			krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosUser != "" && cfg.BindPW != "" {
		return gssapi.NewClientWithPassword(cfg.KerberosUser, cfg.KerberosRealm,
			cfg.BindPW, cfg.KerberosConfig,
			krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no Kerberos credentials available: set krb_ccache, krb_keytab, or krb_user with bind_pw")
}

// servicePrincipal resolves the SPN for the GSSAPI bind. An explicit
// krb_spn wins; otherwise ldap/<host> is derived from the server URI. The
// SPN must not include a port.
func (s *Session) servicePrincipal() (string, error) {
	if s.config.KerberosSPN != "" {
		return s.config.KerberosSPN, nil
	}

	host, err := hostFromURI(s.config.ServerURI)
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", fmt.Errorf("cannot derive a service principal from %q: set krb_spn explicitly", s.config.ServerURI)
	}
	return "ldap/" + host, nil
}
