package ldap

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// Presence is the tri-state outcome of a server-side value comparison.
type Presence int

const (
	ValueAbsent     Presence = iota // attribute exists, value does not
	ValuePresent                    // attribute exists and carries the value
	AttributeAbsent                 // the attribute does not exist on the entry
)

// String returns string representation of a presence state.
func (p Presence) String() string {
	switch p {
	case ValueAbsent:
		return "value_absent"
	case ValuePresent:
		return "value_present"
	case AttributeAbsent:
		return "attribute_absent"
	default:
		return "unknown"
	}
}

// Session is a single authenticated directory connection, established
// lazily on first use and reused for the rest of the process. It is not
// safe for concurrent use and is owned exclusively by the reconciler.
type Session struct {
	config *ConnectionConfig
	log    *zap.Logger
	conn   *ldap.Conn
}

// NewSession creates a session from config without touching the network.
func NewSession(config *ConnectionConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{config: config, log: log}
}

// Connect establishes the connection if it has not been established yet.
// It is idempotent; real work happens only on the first call. Any failure
// is fatal to the invocation — there are no retries and no fallback.
func (s *Session) Connect() error {
	if s.conn != nil {
		return nil
	}

	method := s.config.GetAuthMethod()
	s.log.Debug("dialing directory",
		zap.String("server_uri", s.config.ServerURI),
		zap.Bool("start_tls", s.config.StartTLS),
		zap.String("auth_method", method.String()))

	conn, err := ldap.DialURL(s.config.ServerURI)
	if err != nil {
		return NewDirectoryError("connect", "", err)
	}

	if s.config.StartTLS {
		if err := conn.StartTLS(s.tlsConfig()); err != nil {
			_ = conn.Close()
			return NewDirectoryError("starttls", "", err)
		}
	}

	if err := s.bind(conn, method); err != nil {
		_ = conn.Close()
		return err
	}

	s.log.Debug("directory session established", zap.String("auth_method", method.String()))
	s.conn = conn
	return nil
}

func (s *Session) tlsConfig() *tls.Config {
	if s.config.TLSConfig != nil {
		return s.config.TLSConfig
	}
	host, _ := hostFromURI(s.config.ServerURI)
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: host,
	}
}

func (s *Session) bind(conn *ldap.Conn, method AuthMethod) error {
	var err error
	switch method {
	case AuthMethodSimpleBind:
		bindDN := *s.config.BindDN
		if s.config.BindPW == "" {
			// Anonymous or unauthenticated bind; go-ldap rejects a simple
			// bind with an empty password to prevent accidental anonymous
			// authentication, so it has to be requested explicitly.
			err = conn.UnauthenticatedBind(bindDN)
		} else {
			err = conn.Bind(bindDN, s.config.BindPW)
		}
	case AuthMethodKerberos:
		err = s.bindGSSAPI(conn)
	case AuthMethodExternal:
		err = conn.ExternalBind()
	default:
		err = fmt.Errorf("unsupported authentication method: %s", method.String())
	}

	if err != nil {
		return NewDirectoryError("bind", "", err)
	}
	return nil
}

// Close tears the connection down. Safe to call whether or not Connect ever
// succeeded.
func (s *Session) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Exists performs a base-scope lookup at the exact DN. A noSuchObject
// result is a normal false; any other directory error propagates.
func (s *Session) Exists(dn string) (bool, error) {
	if err := s.Connect(); err != nil {
		return false, err
	}

	req := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		0, 0, false,
		"(objectClass=*)",
		[]string{"1.1"}, // request no attributes, presence is all we need
		nil,
	)

	result, err := s.conn.Search(req)
	if err != nil {
		if IsNoSuchObject(err) {
			s.log.Debug("entry does not exist", zap.String("dn", dn))
			return false, nil
		}
		return false, NewDirectoryError("search", dn, err)
	}

	for _, entry := range result.Entries {
		if strings.EqualFold(entry.DN, dn) {
			return true, nil
		}
	}
	return false, nil
}

// ValueIsPresent asks the server whether the attribute carries the value.
// A noSuchAttribute result maps to the distinct AttributeAbsent state; any
// other directory error propagates.
func (s *Session) ValueIsPresent(dn, attribute, value string) (Presence, error) {
	if err := s.Connect(); err != nil {
		return ValueAbsent, err
	}

	matched, err := s.conn.Compare(dn, attribute, value)
	if err != nil {
		if IsNoSuchAttribute(err) {
			return AttributeAbsent, nil
		}
		return ValueAbsent, NewDirectoryError("compare", dn, err)
	}
	if matched {
		return ValuePresent, nil
	}
	return ValueAbsent, nil
}

// Apply translates a Mutation into the corresponding wire call and returns
// its raw outcome. Errors propagate unmodified apart from categorization.
func (s *Session) Apply(m Mutation) (OpResult, error) {
	if err := s.Connect(); err != nil {
		return OpResult{}, err
	}

	s.log.Debug("applying mutation",
		zap.String("op", m.Kind.String()),
		zap.String("dn", m.DN),
		zap.String("attribute", m.Attribute))

	var err error
	switch m.Kind {
	case MutationCreate:
		req := ldap.NewAddRequest(m.DN, nil)
		for _, name := range sortedAttributeNames(m.Attributes) {
			req.Attribute(name, m.Attributes[name])
		}
		err = s.conn.Add(req)
	case MutationAddValues:
		req := ldap.NewModifyRequest(m.DN, nil)
		req.Add(m.Attribute, m.Values)
		err = s.conn.Modify(req)
	case MutationReplaceValues:
		req := ldap.NewModifyRequest(m.DN, nil)
		req.Replace(m.Attribute, m.Values)
		err = s.conn.Modify(req)
	default:
		err = fmt.Errorf("unknown mutation kind %d", int(m.Kind))
	}

	if err != nil {
		return OpResult{}, NewDirectoryError(m.Kind.String(), m.DN, err)
	}
	return m.Outcome(), nil
}

// hostFromURI extracts the hostname from a directory URI. Empty for ldapi
// socket addresses.
func hostFromURI(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid server URI %q: %w", uri, err)
	}
	return parsed.Hostname(), nil
}
