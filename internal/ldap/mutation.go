package ldap

import "sort"

// MutationKind identifies the directory write a Mutation performs. There is
// no delete variant: this system never removes entries, values or attribute
// types.
type MutationKind int

const (
	MutationCreate        MutationKind = iota // add a new entry with the full attribute map
	MutationAddValues                         // add values to an attribute absent from the entry
	MutationReplaceValues                     // replace an attribute's value set outright
)

// String returns the wire-op name used in audit records.
func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationAddValues:
		return "add_values"
	case MutationReplaceValues:
		return "replace_values"
	default:
		return "unknown"
	}
}

// Mutation is one planned directory write. Create mutations carry the full
// attribute map; the value-level kinds carry a single attribute and its
// desired value list.
type Mutation struct {
	Kind       MutationKind
	DN         string
	Attribute  string
	Values     []string
	Attributes map[string][]string
}

// NewCreate builds the entry-creation mutation from a desired attribute map.
func NewCreate(dn string, attributes map[string][]string) Mutation {
	return Mutation{Kind: MutationCreate, DN: dn, Attributes: attributes}
}

// NewAddValues builds a MOD_ADD mutation for an attribute the entry lacks.
func NewAddValues(dn, attribute string, values []string) Mutation {
	return Mutation{Kind: MutationAddValues, DN: dn, Attribute: attribute, Values: values}
}

// NewReplaceValues builds a MOD_REPLACE mutation overwriting the attribute's
// value set with exactly values.
func NewReplaceValues(dn, attribute string, values []string) Mutation {
	return Mutation{Kind: MutationReplaceValues, DN: dn, Attribute: attribute, Values: values}
}

// OpResult is the raw per-mutation outcome passed through to the caller for
// audit. It records what was sent to the directory, never credentials.
type OpResult struct {
	Op         string              `json:"op"`
	DN         string              `json:"dn"`
	Attribute  string              `json:"attribute,omitempty"`
	Values     []string            `json:"values,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Outcome describes the mutation as an audit record. Apply returns it after
// a successful write; check mode returns it for the planned write.
func (m Mutation) Outcome() OpResult {
	return OpResult{
		Op:         m.Kind.String(),
		DN:         m.DN,
		Attribute:  m.Attribute,
		Values:     m.Values,
		Attributes: m.Attributes,
	}
}

// sortedAttributeNames gives a stable iteration order over an attribute map.
func sortedAttributeNames(attributes map[string][]string) []string {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
