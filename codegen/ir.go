package codegen

import (
	"maps"
	"slices"

	"github.com/vektah/gqlparser/v2/ast"
)

// ParsedField is one selected field or one inline fragment branch.
type ParsedField struct {
	// Name is the response key, or the type condition for a fragment branch.
	Name string
	// Type is the schema type at this position. Object, interface and union
	// leaves carry the synthetic type name of the selection.
	Type TypeRef
	// Node is the *ast.Field, *ast.InlineFragment or *ast.FragmentSpread the
	// selection came from.
	Node            ast.Selection
	Fields          *OrderedMap[*ParsedField]
	InlineFragments *OrderedMap[*ParsedField]
	// Interface points at the selection a fragment branch narrows. Nil for fields.
	Interface *ParsedField

	// nodes are the *ast.Field selections merged into a field.
	nodes []*ast.Field
	// path names the enclosing IR nodes of a fragment branch, the branch included.
	path []string
}

func newParsedField(name string, t TypeRef, node ast.Selection) *ParsedField {
	return &ParsedField{
		Name:            name,
		Type:            t,
		Node:            node,
		Fields:          NewOrderedMap[*ParsedField](),
		InlineFragments: NewOrderedMap[*ParsedField](),
	}
}

// TypeName returns the name of the leaf type, synthetic for composite selections.
// It is empty for the operation root.
func (f *ParsedField) TypeName() string {
	if f.Type == nil {
		return ""
	}
	return Unwrap(f.Type).Name
}

// Branches returns the fragment branches of f and, after each branch, the
// branches nested in it.
func (f *ParsedField) Branches() []*ParsedField {
	var out []*ParsedField
	for _, branch := range f.InlineFragments.All() {
		out = append(out, branch)
		out = append(out, branch.Branches()...)
	}
	return out
}

// ParsedVariable describes one operation variable.
type ParsedVariable struct {
	// IsUndefinedable is true when the variable may be left out: it has a
	// default value or its outer type is nullable.
	IsUndefinedable bool
	Type            TypeRef
	Node            *ast.Type
}

// InputField is a field of an input object type.
type InputField struct {
	Name       string
	Type       TypeRef
	HasDefault bool
}

// IsUndefinedable reports whether the field may be left out of the input.
func (f *InputField) IsUndefinedable() bool {
	return f.HasDefault || !IsNonNull(f.Type)
}

// InputObject is a schema input object type referenced through variables.
type InputObject struct {
	Name       string
	Definition *ast.Definition
	Fields     []*InputField
}

// ParsedQuery is the typed IR of one operation.
type ParsedQuery struct {
	Name                string
	Operation           *ast.OperationDefinition
	VariableDefinitions ast.VariableDefinitionList
	Fields              *OrderedMap[*ParsedField]
	// TypeMap maps every synthetic type name to its selection, in first-seen order.
	TypeMap        *OrderedMap[*ParsedField]
	UsedInputTypes *OrderedMap[*InputObject]
	UsedEnums      *OrderedMap[*ast.Definition]
	VariableMap    *OrderedMap[*ParsedVariable]
	// TypeNameMapping maps a synthetic type name to the concrete __typename
	// values a response value of that selection can carry.
	TypeNameMapping map[string]TypenameSet
	// Source is the verbatim operation text followed by the text of every
	// fragment definition it spreads.
	Source string
}

func newParsedQuery(op *ast.OperationDefinition) *ParsedQuery {
	return &ParsedQuery{
		Name:                op.Name,
		Operation:           op,
		VariableDefinitions: op.VariableDefinitions,
		Fields:              NewOrderedMap[*ParsedField](),
		TypeMap:             NewOrderedMap[*ParsedField](),
		UsedInputTypes:      NewOrderedMap[*InputObject](),
		UsedEnums:           NewOrderedMap[*ast.Definition](),
		VariableMap:         NewOrderedMap[*ParsedVariable](),
		TypeNameMapping:     make(map[string]TypenameSet),
	}
}

// Root returns a field-shaped view of the operation's top level selections.
func (q *ParsedQuery) Root() *ParsedField {
	return &ParsedField{
		Name:            q.Name,
		Fields:          q.Fields,
		InlineFragments: NewOrderedMap[*ParsedField](),
	}
}

// TypenameSet is a set of concrete GraphQL type names.
type TypenameSet map[string]struct{}

func NewTypenameSet(names ...string) TypenameSet {
	s := make(TypenameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s TypenameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Difference returns the names of s that are not in other.
func (s TypenameSet) Difference(other TypenameSet) TypenameSet {
	out := make(TypenameSet, len(s))
	for n := range s {
		if !other.Has(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

func (s TypenameSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}
