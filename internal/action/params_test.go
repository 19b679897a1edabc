package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/ldap-entry/internal/ldap"
)

func TestParseParamsRejectsNonObject(t *testing.T) {
	_, err := ParseParams(strings.NewReader(`["not", "an", "object"]`))
	require.Error(t, err)

	_, err = ParseParams(strings.NewReader(``))
	require.Error(t, err)
}

func TestDesiredEntryNormalization(t *testing.T) {
	params, err := ParseParams(strings.NewReader(`{
		"dn": "cn=admin,dc=example,dc=com",
		"objectClass": "simpleSecurityObject,organizationalRole",
		"description": ["An LDAP administrator"],
		"server_uri": "ldap://localhost",
		"bind_dn": "cn=manager,dc=example,dc=com",
		"bind_pw": "secret"
	}`))
	require.NoError(t, err)

	entry, err := params.DesiredEntry()
	require.NoError(t, err)

	assert.Equal(t, "cn=admin,dc=example,dc=com", entry.DN)
	assert.Equal(t, map[string][]string{
		"objectClass": {"simpleSecurityObject", "organizationalRole"},
		"description": {"An LDAP administrator"},
	}, entry.Attributes, "reserved parameters must not become attributes")
}

func TestDesiredEntryValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "missing dn",
			doc:     `{"objectClass": "top"}`,
			wantErr: "dn is required",
		},
		{
			name:    "empty dn",
			doc:     `{"dn": "", "objectClass": "top"}`,
			wantErr: "dn must not be empty",
		},
		{
			name:    "missing objectClass",
			doc:     `{"dn": "cn=x,dc=example,dc=com", "description": "y"}`,
			wantErr: "objectClass is required",
		},
		{
			name:    "non-string scalar value",
			doc:     `{"dn": "cn=x,dc=example,dc=com", "objectClass": "top", "uidNumber": 1000}`,
			wantErr: "attribute uidNumber",
		},
		{
			name:    "non-string list element",
			doc:     `{"dn": "cn=x,dc=example,dc=com", "objectClass": "top", "memberUid": ["alice", 42]}`,
			wantErr: "attribute memberUid",
		},
		{
			name:    "empty value list",
			doc:     `{"dn": "cn=x,dc=example,dc=com", "objectClass": "top", "memberUid": []}`,
			wantErr: "attribute memberUid",
		},
		{
			name:    "object value",
			doc:     `{"dn": "cn=x,dc=example,dc=com", "objectClass": "top", "extra": {"nested": true}}`,
			wantErr: "attribute extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseParams(strings.NewReader(tt.doc))
			require.NoError(t, err)

			entry, err := params.DesiredEntry()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, entry)
		})
	}
}

func TestConnectionConfigFromParams(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		params := NewParams(map[string]any{"dn": "cn=x", "objectClass": "top"})

		config, err := params.ConnectionConfig()
		require.NoError(t, err)

		assert.Equal(t, "ldapi:///", config.ServerURI)
		assert.False(t, config.StartTLS)
		assert.Nil(t, config.BindDN)
		assert.Equal(t, ldap.AuthMethodExternal, config.GetAuthMethod())
	})

	t.Run("explicit bind identity", func(t *testing.T) {
		params := NewParams(map[string]any{
			"server_uri": "ldaps://dc1.example.com",
			"start_tls":  false,
			"bind_dn":    "cn=manager,dc=example,dc=com",
			"bind_pw":    "secret",
		})

		config, err := params.ConnectionConfig()
		require.NoError(t, err)

		require.NotNil(t, config.BindDN)
		assert.Equal(t, "cn=manager,dc=example,dc=com", *config.BindDN)
		assert.Equal(t, "secret", config.BindPW)
		assert.Equal(t, ldap.AuthMethodSimpleBind, config.GetAuthMethod())
	})

	t.Run("explicitly empty bind dn means anonymous", func(t *testing.T) {
		params := NewParams(map[string]any{"bind_dn": ""})

		config, err := params.ConnectionConfig()
		require.NoError(t, err)

		require.NotNil(t, config.BindDN)
		assert.Empty(t, *config.BindDN)
		assert.Equal(t, ldap.AuthMethodSimpleBind, config.GetAuthMethod())
	})

	t.Run("start_tls accepts bool and string", func(t *testing.T) {
		config, err := NewParams(map[string]any{"start_tls": true}).ConnectionConfig()
		require.NoError(t, err)
		assert.True(t, config.StartTLS)

		config, err = NewParams(map[string]any{"start_tls": "true"}).ConnectionConfig()
		require.NoError(t, err)
		assert.True(t, config.StartTLS)

		_, err = NewParams(map[string]any{"start_tls": "sometimes"}).ConnectionConfig()
		require.Error(t, err)
	})

	t.Run("kerberos parameters", func(t *testing.T) {
		params := NewParams(map[string]any{
			"server_uri":     "ldap://dc1.example.com",
			"sasl_mechanism": "gssapi",
			"krb_user":       "svc-ldap",
			"krb_realm":      "EXAMPLE.COM",
			"krb_keytab":     "/etc/svc-ldap.keytab",
			"krb_spn":        "ldap/dc1.example.com",
		})

		config, err := params.ConnectionConfig()
		require.NoError(t, err)

		assert.Equal(t, ldap.AuthMethodKerberos, config.GetAuthMethod())
		assert.Equal(t, "svc-ldap", config.KerberosUser)
		assert.Equal(t, "EXAMPLE.COM", config.KerberosRealm)
		assert.Equal(t, "/etc/svc-ldap.keytab", config.KerberosKeytab)
		assert.Equal(t, "ldap/dc1.example.com", config.KerberosSPN)
	})

	t.Run("unsupported sasl mechanism", func(t *testing.T) {
		_, err := NewParams(map[string]any{"sasl_mechanism": "digest-md5"}).ConnectionConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "digest-md5")
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv("LDAP_ENTRY_SERVER_URI", "ldap://env.example.com")
		t.Setenv("LDAP_ENTRY_START_TLS", "true")

		config, err := NewParams(map[string]any{}).ConnectionConfig()
		require.NoError(t, err)

		assert.Equal(t, "ldap://env.example.com", config.ServerURI)
		assert.True(t, config.StartTLS)
	})

	t.Run("document wins over environment", func(t *testing.T) {
		t.Setenv("LDAP_ENTRY_SERVER_URI", "ldap://env.example.com")

		config, err := NewParams(map[string]any{"server_uri": "ldap://doc.example.com"}).ConnectionConfig()
		require.NoError(t, err)

		assert.Equal(t, "ldap://doc.example.com", config.ServerURI)
	})
}

func TestNormalizeValuesKeepsInsertionOrder(t *testing.T) {
	values, err := normalizeValues("objectClass", "simpleSecurityObject,organizationalRole")
	require.NoError(t, err)
	assert.Equal(t, []string{"simpleSecurityObject", "organizationalRole"}, values)

	values, err = normalizeValues("memberUid", []any{"carol", "alice", "bob", "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice", "bob", "alice"}, values, "duplicates are preserved, not deduplicated")
}
