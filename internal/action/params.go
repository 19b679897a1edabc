// Package action is the boundary with the invoking orchestration runtime:
// it normalizes the raw JSON parameter document into a validated desired
// entry plus connection config, and encodes the structured result documents
// written back to the runtime.
package action

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/isometry/ldap-entry/internal/ldap"
	"github.com/isometry/ldap-entry/internal/reconcile"
)

// envPrefix scopes the environment fallback for connection parameters,
// e.g. LDAP_ENTRY_SERVER_URI.
const envPrefix = "LDAP_ENTRY"

// reservedParams are consumed by the connection layer. Every parameter name
// not listed here is treated as a directory attribute.
var reservedParams = map[string]struct{}{
	"dn":             {},
	"server_uri":     {},
	"start_tls":      {},
	"bind_dn":        {},
	"bind_pw":        {},
	"sasl_mechanism": {},
	"krb_user":       {},
	"krb_realm":      {},
	"krb_keytab":     {},
	"krb_ccache":     {},
	"krb_config":     {},
	"krb_spn":        {},
}

// Params holds the raw, loosely-typed parameter document. Connection
// parameters absent from the document fall back to the environment.
type Params struct {
	raw map[string]any
	env *viper.Viper
}

// ParseParams decodes one JSON object of parameters from r.
func ParseParams(r io.Reader) (*Params, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parameter document is not a JSON object: %w", err)
	}
	return NewParams(raw), nil
}

// NewParams wraps an already-decoded parameter map.
func NewParams(raw map[string]any) *Params {
	env := viper.New()
	env.SetEnvPrefix(envPrefix)
	env.AutomaticEnv()
	return &Params{raw: raw, env: env}
}

// DesiredEntry validates and canonicalizes the attribute parameters into
// the reconciliation target. All validation happens here, before any
// directory I/O.
func (p *Params) DesiredEntry() (*reconcile.DesiredEntry, error) {
	dn, err := p.requiredString("dn")
	if err != nil {
		return nil, err
	}

	attributes := make(map[string][]string)
	for name, raw := range p.raw {
		if _, ok := reservedParams[name]; ok {
			continue
		}
		values, err := normalizeValues(name, raw)
		if err != nil {
			return nil, err
		}
		attributes[name] = values
	}

	return reconcile.NewDesiredEntry(dn, attributes)
}

// normalizeValues canonicalizes one attribute parameter: a single string is
// split on commas, a list is taken as-is with every element required to be
// a string. The result is always a non-empty list.
func normalizeValues(name string, raw any) ([]string, error) {
	switch value := raw.(type) {
	case string:
		return strings.Split(value, ","), nil
	case []any:
		if len(value) == 0 {
			return nil, fmt.Errorf("attribute %s: value list must not be empty", name)
		}
		values := make([]string, 0, len(value))
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("attribute %s: list value %v is not a string", name, item)
			}
			values = append(values, s)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("attribute %s: value must be a string or a list of strings, got %T", name, raw)
	}
}

// ConnectionConfig assembles the directory connection settings from the
// reserved parameters, with environment variables as fallback for anything
// the document leaves out.
func (p *Params) ConnectionConfig() (*ldap.ConnectionConfig, error) {
	config, err := ldap.NewConnectionConfig()
	if err != nil {
		return nil, err
	}

	if uri, ok, err := p.optionalString("server_uri"); err != nil {
		return nil, err
	} else if ok {
		config.ServerURI = uri
	}

	if startTLS, ok, err := p.optionalBool("start_tls"); err != nil {
		return nil, err
	} else if ok {
		config.StartTLS = startTLS
	}

	// bind_dn is significant even when empty: an explicitly-empty identity
	// means anonymous bind, while an absent one selects a SASL bind.
	if raw, ok := p.raw["bind_dn"]; ok {
		bindDN, err := asString("bind_dn", raw)
		if err != nil {
			return nil, err
		}
		config.BindDN = &bindDN
	} else if bindDN := p.env.GetString("bind_dn"); bindDN != "" {
		config.BindDN = &bindDN
	}

	if pw, ok, err := p.optionalString("bind_pw"); err != nil {
		return nil, err
	} else if ok {
		config.BindPW = pw
	}

	if mech, ok, err := p.optionalString("sasl_mechanism"); err != nil {
		return nil, err
	} else if ok {
		config.SASLMechanism = mech
	}

	kerberos := map[string]*string{
		"krb_user":   &config.KerberosUser,
		"krb_realm":  &config.KerberosRealm,
		"krb_keytab": &config.KerberosKeytab,
		"krb_ccache": &config.KerberosCCache,
		"krb_config": &config.KerberosConfig,
		"krb_spn":    &config.KerberosSPN,
	}
	for name, target := range kerberos {
		if value, ok, err := p.optionalString(name); err != nil {
			return nil, err
		} else if ok {
			*target = value
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (p *Params) requiredString(name string) (string, error) {
	raw, ok := p.raw[name]
	if !ok {
		return "", fmt.Errorf("parameter %s is required", name)
	}
	value, err := asString(name, raw)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("parameter %s must not be empty", name)
	}
	return value, nil
}

func (p *Params) optionalString(name string) (string, bool, error) {
	if raw, ok := p.raw[name]; ok {
		value, err := asString(name, raw)
		return value, err == nil, err
	}
	if value := p.env.GetString(name); value != "" {
		return value, true, nil
	}
	return "", false, nil
}

func (p *Params) optionalBool(name string) (bool, bool, error) {
	if raw, ok := p.raw[name]; ok {
		value, err := asBool(name, raw)
		return value, err == nil, err
	}
	if value := p.env.GetString(name); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, false, fmt.Errorf("parameter %s: %w", name, err)
		}
		return parsed, true, nil
	}
	return false, false, nil
}

func asString(name string, raw any) (string, error) {
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string, got %T", name, raw)
	}
	return value, nil
}

func asBool(name string, raw any) (bool, error) {
	switch value := raw.(type) {
	case bool:
		return value, nil
	case string:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("parameter %s must be a boolean, got %q", name, value)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("parameter %s must be a boolean, got %T", name, raw)
	}
}
