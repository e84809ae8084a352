package codegen

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/s1s5/python-graphql-compiler/queryparser"
)

var (
	ErrMissingTypename    = errors.New("must add field '__typename' in inline fragment")
	ErrAnonymousOperation = errors.New("operation must have a name")
	ErrAmbiguousName      = errors.New("name must not contain '__' or begin or end with '_'")
)

// Matcher pairs the selections of an operation with schema types.
// A Matcher holds no per-operation state, so Parse may be called concurrently.
type Matcher struct {
	schema *ast.Schema
	doc    *ast.QueryDocument
}

// NewMatcher returns a Matcher for operations of doc. doc supplies fragment
// definitions and may be nil when no operation spreads named fragments.
func NewMatcher(schema *ast.Schema, doc *ast.QueryDocument) *Matcher {
	return &Matcher{schema: schema, doc: doc}
}

// Parse builds the IR of op. op must already be validated against the schema.
func (m *Matcher) Parse(op *ast.OperationDefinition) (*ParsedQuery, error) {
	if op.Name == "" {
		return nil, ErrAnonymousOperation
	}
	if !isNameSegment(op.Name) {
		return nil, fmt.Errorf("%s: %w", op.Name, ErrAmbiguousName)
	}

	w := &walker{schema: m.schema, parsed: newParsedQuery(op)}
	if m.doc != nil {
		w.fragments = m.doc.Fragments
	}

	for _, v := range op.VariableDefinitions {
		t := FromAST(m.schema, v.Type)
		w.registerInputType(Unwrap(t).SchemaName)
		w.parsed.VariableMap.Set(v.Variable, &ParsedVariable{
			IsUndefinedable: v.DefaultValue != nil || !v.Type.NonNull,
			Type:            t,
			Node:            v.Type,
		})
	}

	rootDef := w.rootDefinition(op.Operation)
	if rootDef == nil {
		return nil, fmt.Errorf("%s: schema does not define a %s type", op.Name, op.Operation)
	}
	if err := w.selectionSet(w.parsed.Root(), rootDef, []string{op.Name}, op.SelectionSet); err != nil {
		return nil, err
	}

	w.parsed.Source = queryparser.FullSource(op, w.fragments)

	return w.parsed, nil
}

type walker struct {
	schema    *ast.Schema
	fragments ast.FragmentDefinitionList
	parsed    *ParsedQuery
}

func (w *walker) rootDefinition(operation ast.Operation) *ast.Definition {
	switch operation {
	case ast.Query:
		return w.schema.Query
	case ast.Mutation:
		return w.schema.Mutation
	case ast.Subscription:
		return w.schema.Subscription
	}
	return nil
}

// selectionSet adds the selections of set to owner. parentDef is the schema
// type the selections are made on and path the names of the enclosing IR nodes.
func (w *walker) selectionSet(owner *ParsedField, parentDef *ast.Definition, path []string, set ast.SelectionSet) error {
	var touched []string
	for _, selection := range set {
		switch sel := selection.(type) {
		case *ast.Field:
			key, err := w.field(owner, parentDef, path, sel)
			if err != nil {
				return err
			}
			touched = append(touched, key)
		case *ast.InlineFragment:
			if err := w.fragment(owner, parentDef, path, sel.TypeCondition, sel, sel.SelectionSet); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			def := sel.Definition
			if def == nil {
				def = w.fragments.ForName(sel.Name)
			}
			if def == nil {
				return fmt.Errorf("%s: unknown fragment %q", strings.Join(path, "."), sel.Name)
			}
			if err := w.fragment(owner, parentDef, path, def.TypeCondition, sel, def.SelectionSet); err != nil {
				return err
			}
		default:
			panic(fmt.Sprintf("unexpected selection %T", selection))
		}
	}

	for _, key := range touched {
		f, _ := owner.Fields.Get(key)
		if f.InlineFragments.Len() > 0 && !selectsTypename(owner, key) {
			return fmt.Errorf("%s: %w", strings.Join(append(slices.Clone(path), key), "."), ErrMissingTypename)
		}
	}

	return nil
}

// selectsTypename reports whether the field key of owner, or of a selection
// owner narrows, selects __typename.
func selectsTypename(owner *ParsedField, key string) bool {
	for ; owner != nil; owner = owner.Interface {
		if f, ok := owner.Fields.Get(key); ok && f.Fields.Has("__typename") {
			return true
		}
	}
	return false
}

func (w *walker) field(owner *ParsedField, parentDef *ast.Definition, path []string, sel *ast.Field) (string, error) {
	key := sel.Alias
	if key == "" {
		key = sel.Name
	}
	fieldPath := append(slices.Clone(path), key)

	var t TypeRef
	if sel.Name == "__typename" {
		t = &NonNull{Elem: &Named{Name: "String", SchemaName: "String", Kind: ast.Scalar}}
	} else {
		fieldDef := sel.Definition
		if fieldDef == nil && parentDef != nil {
			fieldDef = parentDef.Fields.ForName(sel.Name)
		}
		if fieldDef == nil {
			return "", fmt.Errorf("%s: unknown field %q", strings.Join(fieldPath, "."), sel.Name)
		}
		t = FromAST(w.schema, fieldDef.Type)
	}

	leaf := Unwrap(t)
	f, merged := owner.Fields.Get(key)
	if !merged {
		f = newParsedField(key, t, sel)
		switch {
		case IsComposite(leaf.Kind):
			if !isNameSegment(key) {
				return "", fmt.Errorf("%s: %w", strings.Join(fieldPath, "."), ErrAmbiguousName)
			}
			name := strings.Join(fieldPath, "__")
			f.Type = Rename(t, name)
			w.parsed.TypeNameMapping[name] = w.availableTypenames(w.schema.Types[leaf.SchemaName])
			w.parsed.TypeMap.Set(name, f)
		case leaf.Kind == ast.Enum:
			w.parsed.UsedEnums.Set(leaf.SchemaName, w.schema.Types[leaf.SchemaName])
		}
		owner.Fields.Set(key, f)
	}
	if !slices.Contains(f.nodes, sel) {
		f.nodes = append(f.nodes, sel)
	}

	if IsComposite(leaf.Kind) {
		if err := w.selectionSet(f, w.schema.Types[leaf.SchemaName], fieldPath, sel.SelectionSet); err != nil {
			return "", err
		}
		if err := w.mergeInherited(f); err != nil {
			return "", err
		}
	}

	return key, nil
}

// mergeInherited adds to each composite field of a branch of f the selections
// made under the same key by the selections the branch narrows.
func (w *walker) mergeInherited(f *ParsedField) error {
	for _, branch := range f.Branches() {
		def := w.schema.Types[Unwrap(branch.Type).SchemaName]
		for key, child := range branch.Fields.All() {
			if !IsComposite(Unwrap(child.Type).Kind) {
				continue
			}
			for from := branch.Interface; from != nil; from = from.Interface {
				inherited, ok := from.Fields.Get(key)
				if !ok {
					continue
				}
				for _, node := range slices.Clone(inherited.nodes) {
					if _, err := w.field(branch, def, branch.path, node); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// fragment handles inline fragments and fragment spreads alike. A fragment on
// the type owner already has merges into owner. Any other type condition gets
// its own branch whose concrete typenames are removed from owner's, nested
// branches included.
func (w *walker) fragment(owner *ParsedField, parentDef *ast.Definition, path []string, typeCondition string, node ast.Selection, set ast.SelectionSet) error {
	if typeCondition == "" || (parentDef != nil && typeCondition == parentDef.Name) {
		return w.selectionSet(owner, parentDef, path, set)
	}

	condDef := w.schema.Types[typeCondition]
	if condDef == nil {
		return fmt.Errorf("%s: unknown type %q", strings.Join(path, "."), typeCondition)
	}

	if !isNameSegment(typeCondition) {
		return fmt.Errorf("%s: %s: %w", strings.Join(path, "."), typeCondition, ErrAmbiguousName)
	}
	branchPath := append(slices.Clone(path), typeCondition)
	name := strings.Join(branchPath, "__")
	matched := w.availableTypenames(condDef)

	branch, merged := owner.InlineFragments.Get(typeCondition)
	if !merged {
		branch = newParsedField(typeCondition, &Named{Name: name, SchemaName: typeCondition, Kind: condDef.Kind}, node)
		branch.Interface = owner
		branch.path = branchPath
		w.parsed.TypeNameMapping[name] = matched
		w.parsed.TypeMap.Set(name, branch)
		owner.InlineFragments.Set(typeCondition, branch)
	}

	if err := w.selectionSet(branch, condDef, branchPath, set); err != nil {
		return err
	}

	if owner.Type != nil {
		ownerName := owner.TypeName()
		w.parsed.TypeNameMapping[ownerName] = w.parsed.TypeNameMapping[ownerName].Difference(matched)
	}

	return nil
}

// isNameSegment reports whether name can be joined with "__" into a synthetic
// type name without two different paths producing the same name. A leading
// "__" is allowed for introspection names.
func isNameSegment(name string) bool {
	name = strings.TrimPrefix(name, "__")
	return name != "" && !strings.Contains(name, "__") &&
		!strings.HasPrefix(name, "_") && !strings.HasSuffix(name, "_")
}

// availableTypenames returns the names a value of def can report as __typename.
// Abstract types include their own name.
func (w *walker) availableTypenames(def *ast.Definition) TypenameSet {
	switch def.Kind {
	case ast.Object:
		return NewTypenameSet(def.Name)
	case ast.Interface:
		names := NewTypenameSet(def.Name)
		for name, t := range w.schema.Types {
			if slices.Contains(t.Interfaces, def.Name) {
				names[name] = struct{}{}
			}
		}
		return names
	case ast.Union:
		return NewTypenameSet(append([]string{def.Name}, def.Types...)...)
	}
	panic(fmt.Sprintf("unexpected type %s of kind %s", def.Name, def.Kind))
}

// registerInputType records the input object or enum called name and every
// input type reachable from its fields. Registration happens before the
// fields are visited so self referencing inputs terminate.
func (w *walker) registerInputType(name string) {
	def := w.schema.Types[name]
	if def == nil {
		return
	}

	switch def.Kind {
	case ast.InputObject:
		if w.parsed.UsedInputTypes.Has(name) {
			return
		}
		obj := &InputObject{Name: name, Definition: def}
		w.parsed.UsedInputTypes.Set(name, obj)
		for _, f := range def.Fields {
			t := FromAST(w.schema, f.Type)
			obj.Fields = append(obj.Fields, &InputField{Name: f.Name, Type: t, HasDefault: f.DefaultValue != nil})
			w.registerInputType(Unwrap(t).SchemaName)
		}
	case ast.Enum:
		w.parsed.UsedEnums.Set(name, def)
	}
}
