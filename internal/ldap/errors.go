package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of directory errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// DirectoryError carries the operation, DN and LDAP result code alongside
// the underlying error so the caller can report failures verbatim.
type DirectoryError struct {
	Operation  string
	Category   ErrorCategory
	ResultCode uint16
	Message    string
	DN         string
	Cause      error
}

func (e *DirectoryError) Error() string {
	var parts []string

	if e.ResultCode > 0 {
		parts = append(parts, fmt.Sprintf("LDAP %s failed (code %d)", e.Operation, e.ResultCode))
	} else {
		parts = append(parts, fmt.Sprintf("LDAP %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// GetCategory returns the error category.
func (e *DirectoryError) GetCategory() ErrorCategory {
	return e.Category
}

// NewDirectoryError wraps err with operation context. The DN may be empty
// for connection-level failures.
func NewDirectoryError(operation, dn string, err error) *DirectoryError {
	if err == nil {
		return nil
	}

	dirErr := &DirectoryError{
		Operation: operation,
		DN:        dn,
		Cause:     err,
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		dirErr.ResultCode = ldapErr.ResultCode
		dirErr.Category = categorizeCode(ldapErr.ResultCode)
		dirErr.Message = describeCode(ldapErr.ResultCode, ldapErr)
	} else {
		dirErr.Category = categorizeGenericError(err)
		dirErr.Message = err.Error()
	}

	return dirErr
}

// describeCode combines go-ldap's result-code text with any server-provided
// diagnostic message.
func describeCode(code uint16, ldapErr *ldap.Error) string {
	text := ldap.LDAPResultCodeMap[code]
	if ldapErr.Err != nil && ldapErr.Err.Error() != "" && ldapErr.Err.Error() != text {
		if text == "" {
			return ldapErr.Err.Error()
		}
		return fmt.Sprintf("%s: %s", text, ldapErr.Err.Error())
	}
	return text
}

// categorizeCode categorizes an error based on LDAP result code.
func categorizeCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultAuthMethodNotSupported,
		ldap.LDAPResultStrongAuthRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrorCategoryConflict

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation:
		return ErrorCategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-LDAP errors.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") {
		return ErrorCategoryConnection
	}

	if strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "credentials") ||
		strings.Contains(errStr, "password") {
		return ErrorCategoryAuthentication
	}

	return ErrorCategoryUnknown
}

// IsNoSuchObject reports whether err is the noSuchObject (32) result. The
// existence check treats it as a normal "entry absent", not an error.
func IsNoSuchObject(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject)
}

// IsNoSuchAttribute reports whether err indicates that the compared
// attribute does not exist on the entry. OpenLDAP reports this as
// noSuchAttribute (16), or undefinedAttributeType (17) when the attribute
// is absent from the entry's schema; both feed the attributeAbsent state.
func IsNoSuchAttribute(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchAttribute) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUndefinedAttributeType)
}
