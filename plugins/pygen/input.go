package pygen

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/s1s5/python-graphql-compiler/codegen"
)

type serializedField struct {
	key      string
	typ      codegen.TypeRef
	optional bool
}

func (c *renderContext) writeInput(obj *codegen.InputObject) {
	fields := make([]serializedField, 0, len(obj.Fields))
	for _, f := range obj.Fields {
		fields = append(fields, serializedField{key: f.Name, typ: f.Type, optional: f.IsUndefinedable()})
	}
	c.writeTypedDict(obj.Name, fields)
	c.declared[obj.Name] = true

	c.buf.WriteLines("", "")
	c.writeSerializer(obj.Name, fields)
}

func (c *renderContext) writeVariables(name string, q *codegen.ParsedQuery) {
	fields := make([]serializedField, 0, q.VariableMap.Len())
	for key, v := range q.VariableMap.All() {
		fields = append(fields, serializedField{key: key, typ: v.Type, optional: v.IsUndefinedable})
	}
	c.writeTypedDict(name, fields)

	c.buf.WriteLines("", "")
	c.writeSerializer(name, fields)
}

// writeTypedDict declares name as the union of a total TypedDict of the
// required keys and a non-total one of the optional keys.
func (c *renderContext) writeTypedDict(name string, fields []serializedField) {
	var required, notRequired []string
	for _, f := range fields {
		entry := `"` + f.key + `": ` + c.typeString(f.typ, true)
		if f.optional {
			notRequired = append(notRequired, entry)
		} else {
			required = append(required, entry)
		}
	}

	c.buf.Write(fmt.Sprintf(`%s__required = typing.TypedDict("%s__required", {%s})`, name, name, strings.Join(required, ", ")))
	c.buf.Write(fmt.Sprintf(`%s__not_required = typing.TypedDict("%s__not_required", {%s}, total=False)`, name, name, strings.Join(notRequired, ", ")))
	c.buf.WriteLines("", "")
	c.buf.Block(fmt.Sprintf("class %s(%s__required, %s__not_required):", name, name, name), func() {
		c.buf.Write("pass")
	})
}

// writeSerializer writes name__serialize, which copies its argument and
// rewrites only the keys whose values need converting.
func (c *renderContext) writeSerializer(name string, fields []serializedField) {
	c.buf.Block("def "+name+"__serialize(data):", func() {
		c.buf.Write("ret = copy.copy(data)")
		for _, f := range fields {
			conv := c.serializer(f.typ)
			if conv == nil {
				continue
			}

			lines := []string{
				`x = data["` + f.key + `"]`,
				`ret["` + f.key + `"] = ` + assignExpr("x", f.typ, conv, true),
			}
			if f.optional {
				c.buf.Block(`if "`+f.key+`" in data:`, func() {
					c.buf.WriteLines(lines...)
				})
			} else {
				c.buf.WriteLines(lines...)
			}
		}
		c.buf.Write("return ret")
	})
}

func (c *renderContext) serializer(t codegen.TypeRef) converter {
	leaf := codegen.Unwrap(t)
	if leaf.Kind == ast.InputObject {
		return templateConverter(leaf.SchemaName + "__serialize({value})")
	}
	return templateConverter(c.scalar(leaf.SchemaName).Serializer)
}
