package codegen

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// TypeRef is a GraphQL type reference: a named type optionally wrapped in list
// and non-null modifiers. The only implementations are *Named, *List and *NonNull.
type TypeRef interface {
	String() string
	isTypeRef()
}

// Named is the leaf of a TypeRef.
//
// Name is the synthetic type name for object, interface and union selections and
// the schema name for everything else. SchemaName always holds the schema name.
type Named struct {
	Name       string
	SchemaName string
	Kind       ast.DefinitionKind
}

type List struct {
	Elem TypeRef
}

type NonNull struct {
	Elem TypeRef
}

func (*Named) isTypeRef()   {}
func (*List) isTypeRef()    {}
func (*NonNull) isTypeRef() {}

func (t *Named) String() string   { return t.Name }
func (t *List) String() string    { return "[" + t.Elem.String() + "]" }
func (t *NonNull) String() string { return t.Elem.String() + "!" }

// FromAST converts a gqlparser type reference, resolving the kind of the named
// type against schema.
func FromAST(schema *ast.Schema, t *ast.Type) TypeRef {
	var ref TypeRef
	switch {
	case t.NamedType != "":
		named := &Named{Name: t.NamedType, SchemaName: t.NamedType}
		if def := schema.Types[t.NamedType]; def != nil {
			named.Kind = def.Kind
		}
		ref = named
	case t.Elem != nil:
		ref = &List{Elem: FromAST(schema, t.Elem)}
	default:
		panic(fmt.Sprintf("unexpected GraphQL type structure: %+v", t))
	}

	if t.NonNull {
		return &NonNull{Elem: ref}
	}
	return ref
}

// Unwrap strips every list and non-null modifier.
func Unwrap(t TypeRef) *Named {
	switch t := t.(type) {
	case *Named:
		return t
	case *List:
		return Unwrap(t.Elem)
	case *NonNull:
		return Unwrap(t.Elem)
	}
	panic(fmt.Sprintf("unexpected type reference %T", t))
}

// Rename returns a copy of t whose leaf is called name. t itself is left untouched.
func Rename(t TypeRef, name string) TypeRef {
	switch t := t.(type) {
	case *Named:
		return &Named{Name: name, SchemaName: t.SchemaName, Kind: t.Kind}
	case *List:
		return &List{Elem: Rename(t.Elem, name)}
	case *NonNull:
		return &NonNull{Elem: Rename(t.Elem, name)}
	}
	panic(fmt.Sprintf("unexpected type reference %T", t))
}

func IsNonNull(t TypeRef) bool {
	_, ok := t.(*NonNull)
	return ok
}

// IsComposite reports whether values of kind carry a selection set.
func IsComposite(kind ast.DefinitionKind) bool {
	switch kind {
	case ast.Object, ast.Interface, ast.Union:
		return true
	}
	return false
}
