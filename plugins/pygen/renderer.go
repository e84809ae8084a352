// Package pygen renders matched operations as a Python module of typed
// request and response bindings.
package pygen

import (
	"maps"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/s1s5/python-graphql-compiler/codegen"
	"github.com/s1s5/python-graphql-compiler/config"
	"github.com/s1s5/python-graphql-compiler/plugins/pygen/chunk"
)

var defaultScalarMap = map[string]config.ScalarConfig{
	"Int":     {PythonType: "int", Deserializer: "int({value})"},
	"Float":   {PythonType: "float", Deserializer: "float({value})"},
	"String":  {PythonType: "str"},
	"Boolean": {PythonType: "bool"},
	"ID":      {PythonType: "str"},
}

var header = []string{
	"# @generated AUTOGENERATED file. Do not Change!",
	"# flake8: noqa",
	"# fmt: off",
	"# isort: skip_file",
}

var demangleHelper = []string{
	"def demangle(data, attrs):",
	"    data = copy.copy(data)",
	"    for attr in attrs:",
	"        if attr in data:",
	"            data[attr[1:]] = data.pop(attr)",
	"    return data",
}

var banner = strings.Repeat("#", 80)

type Options struct {
	// ScalarMap overrides and extends the builtin scalar mapping.
	ScalarMap     map[string]config.ScalarConfig
	Inherit       []config.InheritConfig
	PythonVersion config.PythonVersion
}

// Renderer turns ParsedQuery values into Python source. It keeps no state
// between Render calls.
type Renderer struct {
	opts Options
}

func New(opts Options) *Renderer {
	if opts.PythonVersion.IsZero() {
		opts.PythonVersion = config.DefaultPythonVersion
	}
	return &Renderer{opts: opts}
}

func (r *Renderer) Name() string {
	return "pygen"
}

// Render returns one Python module holding every operation in queries.
// Enums, input objects and types shared by several operations are written once.
func (r *Renderer) Render(queries []*codegen.ParsedQuery) string {
	c := r.newContext()

	c.buf.WriteLines(header...)
	c.writeImports()
	importPos := c.buf.Tell()

	c.writeEnums(queries)
	c.writeInputs(queries)
	c.writeTypes(queries)
	for _, q := range queries {
		c.writeOperation(q)
	}

	if c.useDemangle {
		c.buf.Insert(importPos, append([]string{"", ""}, demangleHelper...)...)
	}
	c.buf.Insert(importPos, slices.Sorted(maps.Keys(c.imports))...)

	return c.buf.String() + "\n"
}

// renderContext is the state of one Render call.
type renderContext struct {
	opts     Options
	buf      *chunk.Chunk
	scalars  map[string]config.ScalarConfig
	types    map[string]typeEntry
	declared map[string]bool
	imports  map[string]struct{}
	// useDemangle is set once any generated code calls demangle.
	useDemangle bool
}

type typeEntry struct {
	field *codegen.ParsedField
	query *codegen.ParsedQuery
}

func (r *Renderer) newContext() *renderContext {
	scalars := maps.Clone(defaultScalarMap)
	maps.Copy(scalars, r.opts.ScalarMap)

	return &renderContext{
		opts:     r.opts,
		buf:      chunk.New(),
		scalars:  scalars,
		types:    make(map[string]typeEntry),
		declared: make(map[string]bool),
		imports:  make(map[string]struct{}),
	}
}

func (c *renderContext) useTypingExtensions() bool {
	return c.opts.PythonVersion.Before(3, 10)
}

func (c *renderContext) writeImports() {
	c.buf.Write("import copy")
	c.buf.Write("import inspect")
	c.buf.Write("import typing")
	if c.useTypingExtensions() {
		c.buf.Write("import typing_extensions")
	}
	c.buf.Write("from dataclasses import dataclass")

	inheritImports := map[string]struct{}{}
	for _, inherit := range c.opts.Inherit {
		for _, im := range inherit.Import {
			if im != "" {
				inheritImports[im] = struct{}{}
			}
		}
	}
	c.buf.WriteLines(slices.Sorted(maps.Keys(inheritImports))...)
}

func (c *renderContext) addImports(imports []string) {
	for _, im := range imports {
		if im != "" {
			c.imports[im] = struct{}{}
		}
	}
}

// section runs body and puts a titled banner in front of its output when it
// wrote anything.
func (c *renderContext) section(title string, body func() bool) {
	start := c.buf.Tell()
	if body() {
		c.buf.Insert(start, "", "", banner, "# "+title)
	}
}

func (c *renderContext) writeEnums(queries []*codegen.ParsedQuery) {
	c.section("enum", func() bool {
		wrote := false
		for _, q := range queries {
			for name, def := range q.UsedEnums.All() {
				if c.declared[name] {
					continue
				}
				c.declared[name] = true
				c.writeEnum(name, def)
				c.scalars[name] = config.ScalarConfig{PythonType: name}
				wrote = true
			}
		}
		return wrote
	})
}

func (c *renderContext) writeEnum(name string, def *ast.Definition) {
	values := make([]string, 0, len(def.EnumValues))
	for _, v := range def.EnumValues {
		values = append(values, `"`+v.Name+`"`)
	}
	c.buf.Write(name + " = typing.Literal[" + strings.Join(values, ", ") + "]")
}

func (c *renderContext) writeInputs(queries []*codegen.ParsedQuery) {
	inputs := map[string]*codegen.InputObject{}
	var base []string
	for _, q := range queries {
		for name, obj := range q.UsedInputTypes.Backward() {
			if _, ok := inputs[name]; !ok && !c.declared[name] {
				inputs[name] = obj
				base = append(base, name)
			}
		}
	}

	order := dependencyOrder(base, func(name string) []string {
		var deps []string
		for _, f := range inputs[name].Fields {
			if leaf := codegen.Unwrap(f.Type); leaf.Kind == ast.InputObject {
				deps = append(deps, leaf.SchemaName)
			}
		}
		return deps
	})

	c.section("input", func() bool {
		for i, name := range order {
			if i > 0 {
				c.buf.WriteLines("", "")
			}
			c.writeInput(inputs[name])
		}
		return len(order) > 0
	})
}

func (c *renderContext) writeTypes(queries []*codegen.ParsedQuery) {
	var base []string
	for _, q := range queries {
		for name, f := range q.TypeMap.All() {
			c.types[name] = typeEntry{field: f, query: q}
		}
	}
	seen := map[string]bool{}
	for _, q := range queries {
		for name := range q.TypeMap.Backward() {
			if !seen[name] && !c.declared[name] {
				seen[name] = true
				base = append(base, name)
			}
		}
	}

	order := dependencyOrder(base, c.typeDependencies)

	c.section("type", func() bool {
		for i, name := range order {
			if i > 0 {
				c.buf.WriteLines("", "")
			}
			entry := c.types[name]
			c.writeClass(name, entry.field, entry.query)
			c.declared[name] = true
		}
		return len(order) > 0
	})
}

// typeDependencies lists the generated types the annotations of name refer to.
func (c *renderContext) typeDependencies(name string) []string {
	var deps []string
	for f := c.types[name].field; f != nil; f = f.Interface {
		for _, child := range f.Fields.All() {
			leaf := codegen.Unwrap(child.Type)
			if !codegen.IsComposite(leaf.Kind) {
				continue
			}
			deps = append(deps, leaf.Name)
			for _, branch := range child.Branches() {
				deps = append(deps, branch.TypeName())
			}
		}
	}
	return deps
}

func (c *renderContext) writeOperation(q *codegen.ParsedQuery) {
	responseName := q.Name + "Response"
	inputName := q.Name + "Input"

	c.buf.WriteLines("", "", banner, "# "+q.Name)
	c.writeClass(responseName, q.Root(), q)
	c.buf.WriteLines("", "")
	c.writeVariables(inputName, q)
	c.buf.WriteLines("", "")

	inherits := make([]string, 0, len(c.opts.Inherit))
	for _, inherit := range c.opts.Inherit {
		inherits = append(inherits, inherit.Inherit)
	}
	base := strings.NewReplacer("{Input}", inputName, "{Response}", responseName).Replace(strings.Join(inherits, ", "))
	if base != "" {
		base = "(" + base + ")"
	}

	typeAlias := "typing.TypeAlias"
	if c.useTypingExtensions() {
		typeAlias = "typing_extensions.TypeAlias"
	}

	c.buf.Block("class "+q.Name+base+":", func() {
		c.buf.Block("_query = inspect.cleandoc('''", func() {
			c.buf.WriteLines(strings.Split(escapeQuery(q.Source), "\n")...)
		})
		c.buf.Write("''')")
		c.buf.Write("Input: " + typeAlias + " = " + inputName)
		c.buf.Write("Response: " + typeAlias + " = " + responseName)

		c.buf.Write("")
		c.buf.Write("@classmethod")
		c.buf.Block("def serialize(cls, data: "+inputName+"):", func() {
			c.buf.Block("return {", func() {
				c.buf.Write(`"operation_name": "` + q.Name + `",`)
				c.buf.Write(`"query": cls._query,`)
				c.buf.Write(`"variables": ` + inputName + `__serialize(data),`)
			})
			c.buf.Write("}")
		})

		c.buf.Write("")
		c.buf.Write("@classmethod")
		c.buf.Block("def deserialize(cls, data):", func() {
			if keys := demangleKeys(q.Root()); len(keys) > 0 {
				c.useDemangle = true
				c.buf.Write("return cls.Response(**demangle(data, " + pyList(keys) + "))")
				return
			}
			c.buf.Write("return cls.Response(**data)")
		})
	})
}

// escapeQuery makes text safe inside a ''' string literal.
func escapeQuery(text string) string {
	return strings.NewReplacer(`\`, `\\`, `'''`, `\'\'\'`).Replace(text)
}

// dependencyOrder returns base reordered so every name comes after the names
// deps reports for it. Names outside base are ignored and cycles are broken
// at the first name reached again. A base that is already ordered is kept.
func dependencyOrder(base []string, deps func(string) []string) []string {
	known := make(map[string]bool, len(base))
	for _, name := range base {
		known[name] = true
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(base))
	order := make([]string, 0, len(base))

	var visit func(string)
	visit = func(name string) {
		if state[name] != 0 {
			return
		}
		state[name] = visiting
		for _, dep := range deps(name) {
			if known[dep] {
				visit(dep)
			}
		}
		state[name] = done
		order = append(order, name)
	}
	for _, name := range base {
		visit(name)
	}

	return order
}
