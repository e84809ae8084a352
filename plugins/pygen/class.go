package pygen

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/s1s5/python-graphql-compiler/codegen"
)

type fieldInfo struct {
	field      *codegen.ParsedField
	pythonType string
}

// fieldMapping collects the fields of f keyed by response key, including the
// fields of the selection f narrows.
func (c *renderContext) fieldMapping(f *codegen.ParsedField, q *codegen.ParsedQuery) map[string]*fieldInfo {
	m := map[string]*fieldInfo{}
	if f.Interface != nil {
		maps.Copy(m, c.fieldMapping(f.Interface, q))
	}

	for key, child := range f.Fields.All() {
		m[key] = &fieldInfo{field: child, pythonType: c.typeString(child.Type, true)}
	}

	if info, ok := m["__typename"]; ok && f.Type != nil {
		info.pythonType = typenameLiteral(q.TypeNameMapping[f.TypeName()])
	}

	return m
}

func typenameLiteral(names codegen.TypenameSet) string {
	if len(names) == 0 {
		return "str"
	}
	quoted := make([]string, 0, len(names))
	for _, name := range names.Sorted() {
		quoted = append(quoted, `"`+name+`"`)
	}
	return "typing.Literal[" + strings.Join(quoted, ", ") + "]"
}

var reservedAttrs = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	"self": true,
}

// CheckAttributes returns an error when a response key of q cannot become a
// Python attribute: a keyword, self, or a key whose attribute another key of
// the same class already has.
func CheckAttributes(q *codegen.ParsedQuery) error {
	classes := map[string]*codegen.ParsedField{q.Name + "Response": q.Root()}
	for name, f := range q.TypeMap.All() {
		classes[name] = f
	}

	for _, name := range slices.Sorted(maps.Keys(classes)) {
		keys := map[string]string{}
		for f := classes[name]; f != nil; f = f.Interface {
			for key := range f.Fields.All() {
				attr := attrName(key)
				if reservedAttrs[attr] {
					return fmt.Errorf("%s: field %q is a reserved word in Python, use an alias", name, key)
				}
				if other, ok := keys[attr]; ok && other != key {
					return fmt.Errorf("%s: fields %q and %q share the attribute %s", name, other, key, attr)
				}
				keys[attr] = key
			}
		}
	}
	return nil
}

// attrName is the Python attribute of a response key. A leading "__" loses
// one underscore.
func attrName(key string) string {
	if strings.HasPrefix(key, "__") {
		return key[1:]
	}
	return key
}

// demangleKeys returns the child keys of f and all its fragment branches that
// must be renamed before the child dict can be passed as keyword arguments.
func demangleKeys(f *codegen.ParsedField) []string {
	keys := map[string]struct{}{}
	collect := func(f *codegen.ParsedField) {
		for key := range f.Fields.All() {
			if strings.HasPrefix(key, "__") {
				keys[key] = struct{}{}
			}
		}
	}
	collect(f)
	for _, branch := range f.Branches() {
		collect(branch)
	}
	return slices.Sorted(maps.Keys(keys))
}

func (c *renderContext) writeClass(name string, f *codegen.ParsedField, q *codegen.ParsedQuery) {
	m := c.fieldMapping(f, q)
	keys := slices.Sorted(maps.Keys(m))

	c.buf.Write("@dataclass")
	c.buf.Block("class "+name+":", func() {
		if len(keys) == 0 {
			c.buf.Write("pass")
			return
		}
		for _, key := range keys {
			c.buf.Write(attrName(key) + ": " + m[key].pythonType)
		}
		c.writeInit(keys, m, q)
	})
}

func (c *renderContext) writeInit(keys []string, m map[string]*fieldInfo, q *codegen.ParsedQuery) {
	args := make([]string, 0, len(keys))
	for _, key := range keys {
		args = append(args, attrName(key))
	}

	c.buf.Block("def __init__(self, "+strings.Join(args, ", ")+"):", func() {
		for _, key := range keys {
			attr := attrName(key)
			f := m[key].field
			conv := c.deserializer(attr, f, q)
			c.buf.Write("self." + attr + " = " + assignExpr(attr, f.Type, conv, true))
		}
	})
}

// deserializer returns the converter building the value of f. For a field
// with fragments it first writes the table choosing a class by __typename.
// Nested branches hold no typename of the branch they narrow, so each
// typename maps to the deepest branch matching it.
func (c *renderContext) deserializer(attr string, f *codegen.ParsedField, q *codegen.ParsedQuery) converter {
	leaf := codegen.Unwrap(f.Type)
	if !codegen.IsComposite(leaf.Kind) {
		return templateConverter(c.scalar(leaf.SchemaName).Deserializer)
	}

	keys := demangleKeys(f)
	if len(keys) > 0 {
		c.useDemangle = true
	}
	kwargs := func(v string) string {
		if len(keys) == 0 {
			return v
		}
		return "demangle(" + v + ", " + pyList(keys) + ")"
	}

	if f.InlineFragments.Len() == 0 {
		return func(v string) string {
			return leaf.Name + "(**" + kwargs(v) + ")"
		}
	}

	mapName := "__" + attr + "_map"
	c.buf.Block(mapName+" = {", func() {
		seen := map[string]bool{}
		for _, branch := range f.Branches() {
			for _, typename := range q.TypeNameMapping[branch.TypeName()].Sorted() {
				if seen[typename] {
					continue
				}
				seen[typename] = true
				c.buf.Write(`"` + typename + `": ` + branch.TypeName() + ",")
			}
		}
	})
	c.buf.Write("}")

	return func(v string) string {
		return mapName + ".get(" + v + `["__typename"], ` + leaf.Name + ")(**" + kwargs(v) + ")"
	}
}
