package ldap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestNewDirectoryError(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		err       error
		wantNil   bool
		wantCode  uint16
	}{
		{
			name:      "nil error",
			operation: "search",
			err:       nil,
			wantNil:   true,
		},
		{
			name:      "ldap error",
			operation: "bind",
			err:       ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")),
			wantCode:  ldap.LDAPResultInvalidCredentials,
		},
		{
			name:      "wrapped ldap error",
			operation: "compare",
			err:       fmt.Errorf("compare: %w", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("missing"))),
			wantCode:  ldap.LDAPResultNoSuchObject,
		},
		{
			name:      "generic error",
			operation: "connect",
			err:       errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewDirectoryError(tt.operation, "", tt.err)

			if tt.wantNil {
				if result != nil {
					t.Errorf("NewDirectoryError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("NewDirectoryError() = nil, want non-nil")
			}
			if result.Operation != tt.operation {
				t.Errorf("Operation = %s, want %s", result.Operation, tt.operation)
			}
			if result.ResultCode != tt.wantCode {
				t.Errorf("ResultCode = %d, want %d", result.ResultCode, tt.wantCode)
			}
			if !errors.Is(result, tt.err) {
				t.Errorf("error chain does not contain cause %v", tt.err)
			}
		})
	}
}

func TestDirectoryError_Error(t *testing.T) {
	tests := []struct {
		name   string
		dirErr *DirectoryError
		want   string
	}{
		{
			name: "basic error",
			dirErr: &DirectoryError{
				Operation: "connect",
				Message:   "connection refused",
			},
			want: "LDAP connect failed - connection refused",
		},
		{
			name: "error with code",
			dirErr: &DirectoryError{
				Operation:  "bind",
				ResultCode: ldap.LDAPResultInvalidCredentials,
				Message:    "Invalid Credentials",
			},
			want: "LDAP bind failed (code 49) - Invalid Credentials",
		},
		{
			name: "error with DN",
			dirErr: &DirectoryError{
				Operation:  "add_values",
				ResultCode: ldap.LDAPResultInsufficientAccessRights,
				Message:    "Insufficient Access Rights",
				DN:         "cn=admin,dc=example,dc=com",
			},
			want: "LDAP add_values failed (code 50) - Insufficient Access Rights - DN: cn=admin,dc=example,dc=com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.dirErr.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorizeCode(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		want ErrorCategory
	}{
		{"invalid credentials", ldap.LDAPResultInvalidCredentials, ErrorCategoryAuthentication},
		{"insufficient access", ldap.LDAPResultInsufficientAccessRights, ErrorCategoryPermission},
		{"no such object", ldap.LDAPResultNoSuchObject, ErrorCategoryNotFound},
		{"no such attribute", ldap.LDAPResultNoSuchAttribute, ErrorCategoryNotFound},
		{"already exists", ldap.LDAPResultEntryAlreadyExists, ErrorCategoryConflict},
		{"naming violation", ldap.LDAPResultNamingViolation, ErrorCategoryValidation},
		{"server busy", ldap.LDAPResultBusy, ErrorCategoryServer},
		{"protocol error", ldap.LDAPResultProtocolError, ErrorCategoryConnection},
		{"unmapped code", ldap.LDAPResultOther, ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeCode(tt.code); got != tt.want {
				t.Errorf("categorizeCode(%d) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestExpectedConditionPredicates(t *testing.T) {
	noSuchObject := ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New(""))
	noSuchAttribute := ldap.NewError(ldap.LDAPResultNoSuchAttribute, errors.New(""))
	undefinedType := ldap.NewError(ldap.LDAPResultUndefinedAttributeType, errors.New(""))
	busy := ldap.NewError(ldap.LDAPResultBusy, errors.New(""))

	if !IsNoSuchObject(noSuchObject) {
		t.Error("IsNoSuchObject(code 32) = false, want true")
	}
	if IsNoSuchObject(noSuchAttribute) {
		t.Error("IsNoSuchObject(code 16) = true, want false")
	}

	if !IsNoSuchAttribute(noSuchAttribute) {
		t.Error("IsNoSuchAttribute(code 16) = false, want true")
	}
	if !IsNoSuchAttribute(undefinedType) {
		t.Error("IsNoSuchAttribute(code 17) = false, want true")
	}
	if IsNoSuchAttribute(busy) {
		t.Error("IsNoSuchAttribute(code 51) = true, want false")
	}
	if IsNoSuchAttribute(nil) {
		t.Error("IsNoSuchAttribute(nil) = true, want false")
	}
}
