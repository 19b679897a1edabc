// Package reconcile implements the decision engine that brings a directory
// entry from its current state to a desired state with the minimal set of
// mutations: create when the entry is absent, otherwise per-attribute
// add-or-replace for only the attributes whose value sets differ.
package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/isometry/ldap-entry/internal/ldap"
)

// objectClassAttribute defines the schema classes of an entry. It is
// required on creation and never modified on an existing entry.
const objectClassAttribute = "objectClass"

// DesiredEntry is the reconciliation target: a DN and the attribute values
// the entry should carry. It is immutable once constructed.
type DesiredEntry struct {
	DN         string
	Attributes map[string][]string
}

// NewDesiredEntry validates the target before any directory I/O: the DN
// must be non-empty and the attribute map must declare at least one
// objectClass.
func NewDesiredEntry(dn string, attributes map[string][]string) (*DesiredEntry, error) {
	if dn == "" {
		return nil, errors.New("dn must be a non-empty string")
	}
	if len(attributes[objectClassAttribute]) == 0 {
		return nil, fmt.Errorf("attribute %s is required: an entry without a schema class cannot be created or validated", objectClassAttribute)
	}
	return &DesiredEntry{DN: dn, Attributes: attributes}, nil
}

// Directory is the session surface the reconciler drives. The live
// implementation is *ldap.Session; tests substitute a fake.
type Directory interface {
	Exists(dn string) (bool, error)
	ValueIsPresent(dn, attribute, value string) (ldap.Presence, error)
	Apply(m ldap.Mutation) (ldap.OpResult, error)
}

// Result reports whether anything changed, with the ordered raw outcomes of
// every applied mutation for the caller's audit trail.
type Result struct {
	Changed bool
	Results []ldap.OpResult
}

// Reconciler owns the directory session for the whole invocation. Any
// directory error at any step is terminal: mutations already applied stay
// applied and the error is reported as-is.
type Reconciler struct {
	dir       Directory
	log       *zap.Logger
	checkMode bool
}

// NewReconciler creates a reconciler. In check mode the mutation list is
// computed and reported but nothing is written to the directory.
func NewReconciler(dir Directory, log *zap.Logger, checkMode bool) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{dir: dir, log: log, checkMode: checkMode}
}

// Reconcile ensures the entry exists with the desired attributes, creating
// it if absent or patching only the attributes that differ if present.
func (r *Reconciler) Reconcile(entry *DesiredEntry) (*Result, error) {
	exists, err := r.dir.Exists(entry.DN)
	if err != nil {
		return nil, err
	}
	if !exists {
		return r.create(entry)
	}
	return r.update(entry)
}

func (r *Reconciler) create(entry *DesiredEntry) (*Result, error) {
	r.log.Info("entry absent, creating",
		zap.String("dn", entry.DN),
		zap.Int("attributes", len(entry.Attributes)))

	outcome, err := r.apply(ldap.NewCreate(entry.DN, entry.Attributes))
	if err != nil {
		return nil, err
	}
	return &Result{Changed: true, Results: []ldap.OpResult{outcome}}, nil
}

func (r *Reconciler) update(entry *DesiredEntry) (*Result, error) {
	result := &Result{}

	for _, name := range sortedAttributeNames(entry.Attributes) {
		if name == objectClassAttribute {
			// Schema classes are never touched on an existing entry.
			continue
		}

		mutation, err := r.planAttribute(entry.DN, name, entry.Attributes[name])
		if err != nil {
			return nil, err
		}
		if mutation == nil {
			continue
		}

		outcome, err := r.apply(*mutation)
		if err != nil {
			return nil, err
		}
		result.Changed = true
		result.Results = append(result.Results, outcome)
	}

	if !result.Changed {
		r.log.Info("entry already matches desired state", zap.String("dn", entry.DN))
	}
	return result, nil
}

// planAttribute reduces the per-value presence scan to at most one
// mutation for the attribute:
//
//   - every value present: nil, nothing to do
//   - attribute exists but some value missing: replace with exactly the
//     desired list (pre-existing extra values are overwritten, not merged)
//   - attribute absent: add the desired list
//
// An attributeAbsent comparison decides the verdict outright; the scan
// stops there regardless of what earlier values reported.
func (r *Reconciler) planAttribute(dn, attribute string, values []string) (*ldap.Mutation, error) {
	allPresent := true
	for _, value := range values {
		presence, err := r.dir.ValueIsPresent(dn, attribute, value)
		if err != nil {
			return nil, err
		}
		switch presence {
		case ldap.AttributeAbsent:
			m := ldap.NewAddValues(dn, attribute, values)
			return &m, nil
		case ldap.ValueAbsent:
			allPresent = false
		}
	}

	if allPresent {
		return nil, nil
	}
	m := ldap.NewReplaceValues(dn, attribute, values)
	return &m, nil
}

func (r *Reconciler) apply(m ldap.Mutation) (ldap.OpResult, error) {
	if r.checkMode {
		r.log.Info("check mode, skipping mutation",
			zap.String("op", m.Kind.String()),
			zap.String("dn", m.DN),
			zap.String("attribute", m.Attribute))
		return m.Outcome(), nil
	}
	return r.dir.Apply(m)
}

func sortedAttributeNames(attributes map[string][]string) []string {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
