package queryparser

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/lexer"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
	"github.com/vektah/gqlparser/v2/validator/rules"
)

// ValidationError reports every validation error of one query file.
type ValidationError struct {
	Filename string
	Errors   gqlerror.List
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed: %s", e.Filename, e.Errors.Error())
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}
	return errs
}

// LoadQuerySources reads every query file.
func LoadQuerySources(queryFileNames []string) ([]*ast.Source, error) {
	querySources := make([]*ast.Source, 0, len(queryFileNames))
	for _, filename := range queryFileNames {
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("unable to open query: %w", err)
		}
		querySources = append(querySources, &ast.Source{Name: filename, Input: string(content)})
	}

	return querySources, nil
}

// QueryDocument parses source and validates it against schema.
//
// Fragment definitions found in shared are added to the document when source
// does not define a fragment of the same name, so a query file can spread
// fragments kept in another file. Shared sources that do not parse are
// skipped. Each call parses its own copy of shared
// because validation annotates the AST.
func QueryDocument(schema *ast.Schema, source *ast.Source, shared []*ast.Source) (*ast.QueryDocument, error) {
	queryDocument, err := parser.ParseQuery(source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source.Name, err)
	}

	defined := make(map[string]bool, len(queryDocument.Fragments))
	for _, fragment := range queryDocument.Fragments {
		defined[fragment.Name] = true
	}
	for _, s := range shared {
		if s.Name == source.Name {
			continue
		}
		doc, err := parser.ParseQuery(s)
		if err != nil {
			// reported when s itself is compiled
			continue
		}
		for _, fragment := range doc.Fragments {
			if defined[fragment.Name] {
				continue
			}
			defined[fragment.Name] = true
			queryDocument.Fragments = append(queryDocument.Fragments, fragment)
		}
	}

	// Fragments may be shared between files, so unused fragments are fine.
	r := rules.NewDefaultRules()
	r.RemoveRule("NoUnusedFragments")
	if errs := validator.ValidateWithRules(schema, queryDocument, r); len(errs) > 0 {
		return nil, &ValidationError{Filename: source.Name, Errors: errs}
	}

	return queryDocument, nil
}

// OperationSource returns the operation exactly as written, from its first
// token to the brace closing its selection set.
func OperationSource(op *ast.OperationDefinition) string {
	return span(op.Position)
}

// FragmentSource returns the fragment definition exactly as written.
func FragmentSource(fragment *ast.FragmentDefinition) string {
	return span(fragment.Position)
}

func span(pos *ast.Position) string {
	if pos == nil || pos.Src == nil {
		return ""
	}

	runes := []rune(pos.Src.Input)
	end, err := definitionEnd(pos.Src, pos.Start)
	if err != nil || end > len(runes) {
		return ""
	}

	return string(runes[pos.Start:end])
}

// definitionEnd returns the rune offset just past the closing brace of the
// top level selection set of the definition starting at start. Braces inside
// parentheses belong to object values and are skipped.
func definitionEnd(src *ast.Source, start int) (int, error) {
	lex := lexer.New(src)
	var braces, parens int
	for {
		tok, err := lex.ReadToken()
		if err != nil {
			return 0, err
		}
		if tok.Kind == lexer.EOF {
			return 0, errors.New("unterminated definition")
		}
		if tok.Pos.Start < start {
			continue
		}

		switch tok.Kind {
		case lexer.ParenL:
			parens++
		case lexer.ParenR:
			parens--
		case lexer.BraceL:
			if parens == 0 {
				braces++
			}
		case lexer.BraceR:
			if parens == 0 {
				braces--
				if braces == 0 {
					return tok.Pos.End, nil
				}
			}
		}
	}
}

// UsedFragments returns the fragment definitions op spreads, directly or
// through other fragments, in order of first use.
func UsedFragments(op *ast.OperationDefinition, fragments ast.FragmentDefinitionList) ast.FragmentDefinitionList {
	var used ast.FragmentDefinitionList
	seen := map[string]bool{}
	var walk func(ast.SelectionSet)
	walk = func(selectionSet ast.SelectionSet) {
		for _, selection := range selectionSet {
			switch sel := selection.(type) {
			case *ast.Field:
				walk(sel.SelectionSet)
			case *ast.InlineFragment:
				walk(sel.SelectionSet)
			case *ast.FragmentSpread:
				if seen[sel.Name] {
					continue
				}
				seen[sel.Name] = true
				def := sel.Definition
				if def == nil {
					def = fragments.ForName(sel.Name)
				}
				if def == nil {
					continue
				}
				used = append(used, def)
				walk(def.SelectionSet)
			}
		}
	}
	walk(op.SelectionSet)

	return used
}

// FullSource returns the operation text followed by the text of every
// fragment it uses, separated by blank lines.
func FullSource(op *ast.OperationDefinition, fragments ast.FragmentDefinitionList) string {
	parts := []string{OperationSource(op)}
	for _, fragment := range UsedFragments(op, fragments) {
		parts = append(parts, FragmentSource(fragment))
	}

	return strings.Join(slices.DeleteFunc(parts, func(s string) bool { return s == "" }), "\n\n")
}
