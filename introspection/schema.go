package introspection

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

var builtinScalars = map[string]bool{
	"Int":     true,
	"Float":   true,
	"String":  true,
	"Boolean": true,
	"ID":      true,
}

// SchemaFromIntrospection rebuilds a schema document from an introspection
// result. Introspection types, builtin scalars and directives the prelude
// already declares are left out, and the prelude is merged in so the document
// can be passed to validator.ValidateSchemaDocument.
func SchemaFromIntrospection(endpoint string, q Query) (*ast.SchemaDocument, error) {
	prelude, err := parser.ParseSchema(validator.Prelude)
	if err != nil {
		return nil, fmt.Errorf("parse prelude: %w", err)
	}

	b := &schemaBuilder{pos: &ast.Position{Src: &ast.Source{Name: endpoint}}}
	doc := &ast.SchemaDocument{}

	for _, t := range q.Schema.Types {
		if t.Name == nil || strings.HasPrefix(*t.Name, "__") {
			continue
		}
		if t.Kind == TypeKindScalar && builtinScalars[*t.Name] {
			continue
		}
		doc.Definitions = append(doc.Definitions, b.definition(t))
	}

	for _, d := range q.Schema.Directives {
		if prelude.Directives.ForName(d.Name) != nil {
			continue
		}
		doc.Directives = append(doc.Directives, b.directive(d))
	}

	schemaDef := &ast.SchemaDefinition{Position: b.pos}
	roots := []struct {
		operation ast.Operation
		ref       *NamedRef
	}{
		{ast.Query, q.Schema.QueryType},
		{ast.Mutation, q.Schema.MutationType},
		{ast.Subscription, q.Schema.SubscriptionType},
	}
	for _, root := range roots {
		if root.ref != nil && root.ref.Name != nil {
			schemaDef.OperationTypes = append(schemaDef.OperationTypes, &ast.OperationTypeDefinition{
				Operation: root.operation,
				Type:      *root.ref.Name,
				Position:  b.pos,
			})
		}
	}
	if len(schemaDef.OperationTypes) > 0 {
		doc.Schema = append(doc.Schema, schemaDef)
	}

	doc.Merge(prelude)

	return doc, nil
}

type schemaBuilder struct {
	pos *ast.Position
}

func (b *schemaBuilder) definition(t *FullType) *ast.Definition {
	def := &ast.Definition{
		Name:        *t.Name,
		Description: deref(t.Description),
		Position:    b.pos,
	}

	switch t.Kind {
	case TypeKindScalar:
		def.Kind = ast.Scalar
	case TypeKindObject:
		def.Kind = ast.Object
	case TypeKindInterface:
		def.Kind = ast.Interface
	case TypeKindUnion:
		def.Kind = ast.Union
	case TypeKindEnum:
		def.Kind = ast.Enum
	case TypeKindInputObject:
		def.Kind = ast.InputObject
	}

	for _, f := range t.Fields {
		def.Fields = append(def.Fields, &ast.FieldDefinition{
			Name:        f.Name,
			Description: deref(f.Description),
			Arguments:   b.arguments(f.Args),
			Type:        b.typeRef(&f.Type),
			Position:    b.pos,
		})
	}
	for _, f := range t.InputFields {
		def.Fields = append(def.Fields, &ast.FieldDefinition{
			Name:         f.Name,
			Description:  deref(f.Description),
			Type:         b.typeRef(&f.Type),
			DefaultValue: b.value(f.DefaultValue),
			Position:     b.pos,
		})
	}
	for _, i := range t.Interfaces {
		if i.Name != nil {
			def.Interfaces = append(def.Interfaces, *i.Name)
		}
	}
	for _, p := range t.PossibleTypes {
		if p.Name != nil && def.Kind == ast.Union {
			def.Types = append(def.Types, *p.Name)
		}
	}
	for _, v := range t.EnumValues {
		def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
			Name:        v.Name,
			Description: deref(v.Description),
			Position:    b.pos,
		})
	}

	return def
}

func (b *schemaBuilder) directive(d *DirectiveType) *ast.DirectiveDefinition {
	def := &ast.DirectiveDefinition{
		Name:         d.Name,
		Description:  deref(d.Description),
		Arguments:    b.arguments(d.Args),
		IsRepeatable: d.IsRepeatable,
		Position:     b.pos,
	}
	for _, l := range d.Locations {
		def.Locations = append(def.Locations, ast.DirectiveLocation(l))
	}
	return def
}

func (b *schemaBuilder) arguments(args []*InputValue) ast.ArgumentDefinitionList {
	var list ast.ArgumentDefinitionList
	for _, a := range args {
		list = append(list, &ast.ArgumentDefinition{
			Name:         a.Name,
			Description:  deref(a.Description),
			Type:         b.typeRef(&a.Type),
			DefaultValue: b.value(a.DefaultValue),
			Position:     b.pos,
		})
	}
	return list
}

func (b *schemaBuilder) typeRef(t *TypeRef) *ast.Type {
	switch t.Kind {
	case TypeKindNonNull:
		inner := b.typeRef(t.OfType)
		inner.NonNull = true
		return inner
	case TypeKindList:
		return &ast.Type{Elem: b.typeRef(t.OfType), Position: b.pos}
	}
	return &ast.Type{NamedType: deref(t.Name), Position: b.pos}
}

// value parses a default value literal by placing it in an argument of a
// throwaway query.
func (b *schemaBuilder) value(literal *string) *ast.Value {
	if literal == nil {
		return nil
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: "{ f(v: " + *literal + ") }"})
	if err != nil || len(doc.Operations) == 0 {
		return nil
	}
	field, ok := doc.Operations[0].SelectionSet[0].(*ast.Field)
	if !ok || len(field.Arguments) == 0 {
		return nil
	}
	value := field.Arguments[0].Value
	value.Position = b.pos
	return value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
