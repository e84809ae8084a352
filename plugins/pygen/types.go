package pygen

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/s1s5/python-graphql-compiler/codegen"
	"github.com/s1s5/python-graphql-compiler/config"
)

func (c *renderContext) scalar(name string) config.ScalarConfig {
	if cfg, ok := c.scalars[name]; ok {
		return cfg
	}
	return config.ScalarConfig{PythonType: name}
}

// typeString returns the Python annotation for t. Every nullable level is
// wrapped in typing.Optional.
func (c *renderContext) typeString(t codegen.TypeRef, nullable bool) string {
	var s string
	switch t := t.(type) {
	case *codegen.NonNull:
		return c.typeString(t.Elem, false)
	case *codegen.List:
		s = "typing.List[" + c.typeString(t.Elem, true) + "]"
	case *codegen.Named:
		s = c.leafString(t)
	default:
		panic(fmt.Sprintf("unexpected type reference %T", t))
	}

	if nullable {
		return "typing.Optional[" + s + "]"
	}
	return s
}

func (c *renderContext) leafString(t *codegen.Named) string {
	switch {
	case codegen.IsComposite(t.Kind):
		return c.compositeString(t.Name)
	case t.Kind == ast.InputObject:
		return c.ref(t.SchemaName)
	}

	cfg := c.scalar(t.SchemaName)
	c.addImports(cfg.Import)
	return cfg.PythonType
}

// compositeString names a generated type. A selection with fragments is the
// union of its own type and every branch type.
func (c *renderContext) compositeString(name string) string {
	names := []string{name}
	if entry, ok := c.types[name]; ok {
		for _, branch := range entry.field.Branches() {
			names = append(names, branch.TypeName())
		}
	}
	if len(names) == 1 {
		return c.ref(name)
	}

	refs := make([]string, 0, len(names))
	forward := false
	for _, n := range names {
		ref := c.ref(n)
		forward = forward || ref != n
		refs = append(refs, ref)
	}
	if forward || c.useTypingExtensions() {
		return "typing.Union[" + strings.Join(refs, ", ") + "]"
	}
	return strings.Join(refs, " | ")
}

// ref quotes name when its declaration has not been written yet.
func (c *renderContext) ref(name string) string {
	if c.declared[name] {
		return name
	}
	return `"` + name + `"`
}

// converter turns a Python expression into the expression of the converted
// value. A nil converter leaves values as they are.
type converter func(value string) string

func templateConverter(template string) converter {
	if template == "" {
		return nil
	}
	return func(value string) string {
		return strings.ReplaceAll(template, "{value}", value)
	}
}

// assignExpr applies conv to the value held in variable v of type t. Lists
// become one comprehension per level and nullable levels pass None through.
func assignExpr(v string, t codegen.TypeRef, conv converter, nullable bool) string {
	if conv == nil {
		return v
	}

	var expr string
	switch t := t.(type) {
	case *codegen.NonNull:
		return assignExpr(v, t.Elem, conv, false)
	case *codegen.List:
		item := v + "__iter"
		expr = "[" + assignExpr(item, t.Elem, conv, true) + " for " + item + " in " + v + "]"
	case *codegen.Named:
		expr = conv(v)
	default:
		panic(fmt.Sprintf("unexpected type reference %T", t))
	}

	if nullable {
		return expr + " if " + v + " is not None else None"
	}
	return expr
}

func pyList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, "'"+item+"'")
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
