package queryparser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const testSchema = `
type A {
	id: ID!
	name: String
}
input Filter {
	name: String
}
type Query {
	hello: String!
	a(id: ID!): A
	search(filter: Filter): [A!]!
}
`

func loadTestSchema(t *testing.T) *ast.Schema {
	t.Helper()
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: testSchema})
	if err != nil {
		t.Fatalf("LoadSchema() error = %v", err)
	}
	return schema
}

func TestOperationSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name: "前後のコメントは含まない",
			input: `
# comment
query Q {
    hello
}
# other-comment
`,
			want: "query Q {\n    hello\n}",
		},
		{
			name:  "省略形のクエリ",
			input: `{ hello }`,
			want:  "{ hello }",
		},
		{
			name: "変数のデフォルト値にオブジェクトを含む",
			input: `query S($f: Filter = {name: "x"}) {
  search(filter: $f) { id }
}
query Second { hello }`,
			want: "query S($f: Filter = {name: \"x\"}) {\n  search(filter: $f) { id }\n}",
		},
		{
			name:  "マルチバイト文字を含む",
			input: "# あいうえお\nquery Q { hello } # かきくけこ",
			want:  "query Q { hello }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			schema := loadTestSchema(t)
			doc, err := QueryDocument(schema, &ast.Source{Name: "q.graphql", Input: tt.input}, nil)
			if err != nil {
				t.Fatalf("QueryDocument() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, OperationSource(doc.Operations[0])); diff != "" {
				t.Errorf("OperationSource() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryDocument(t *testing.T) {
	t.Parallel()

	t.Run("使われていないフラグメントはエラーにならない", func(t *testing.T) {
		t.Parallel()

		src := &ast.Source{Name: "q.graphql", Input: `
query Q { hello }
fragment Unused on A { id }
`}
		doc, err := QueryDocument(loadTestSchema(t), src, nil)
		if err != nil {
			t.Fatalf("QueryDocument() error = %v", err)
		}
		if got := len(doc.Fragments); got != 1 {
			t.Errorf("len(Fragments) = %d, want 1", got)
		}
	})

	t.Run("存在しないフィールドはValidationError", func(t *testing.T) {
		t.Parallel()

		src := &ast.Source{Name: "bad.graphql", Input: `query Q { nothing }`}
		_, err := QueryDocument(loadTestSchema(t), src, nil)

		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("error = %v, want *ValidationError", err)
		}
		if validationErr.Filename != "bad.graphql" {
			t.Errorf("Filename = %q, want %q", validationErr.Filename, "bad.graphql")
		}
		if len(validationErr.Errors) == 0 {
			t.Error("Errors is empty")
		}
	})

	t.Run("他のファイルのフラグメントを参照できる", func(t *testing.T) {
		t.Parallel()

		fragments := &ast.Source{Name: "fragments.graphql", Input: `fragment AFields on A { id name }`}
		src := &ast.Source{Name: "q.graphql", Input: `query Q($id: ID!) { a(id: $id) { ...AFields } }`}
		doc, err := QueryDocument(loadTestSchema(t), src, []*ast.Source{src, fragments})
		if err != nil {
			t.Fatalf("QueryDocument() error = %v", err)
		}

		want := "query Q($id: ID!) { a(id: $id) { ...AFields } }\n\nfragment AFields on A { id name }"
		if diff := cmp.Diff(want, FullSource(doc.Operations[0], doc.Fragments)); diff != "" {
			t.Errorf("FullSource() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("構文エラーのある他のファイルは無視される", func(t *testing.T) {
		t.Parallel()

		broken := &ast.Source{Name: "broken.graphql", Input: `query Broken {`}
		src := &ast.Source{Name: "q.graphql", Input: `query Q { hello }`}
		if _, err := QueryDocument(loadTestSchema(t), src, []*ast.Source{broken, src}); err != nil {
			t.Fatalf("QueryDocument() error = %v", err)
		}

		if _, err := QueryDocument(loadTestSchema(t), broken, []*ast.Source{broken, src}); err == nil {
			t.Error("QueryDocument() error = nil, want syntax error")
		}
	})
}

func TestUsedFragments(t *testing.T) {
	t.Parallel()

	src := &ast.Source{Name: "q.graphql", Input: `
query Q($id: ID!) {
	a(id: $id) { ...Outer }
}
fragment Inner on A { name }
fragment Outer on A { id ...Inner }
fragment Unused on A { id }
`}
	doc, err := QueryDocument(loadTestSchema(t), src, nil)
	if err != nil {
		t.Fatalf("QueryDocument() error = %v", err)
	}

	var got []string
	for _, f := range UsedFragments(doc.Operations[0], doc.Fragments) {
		got = append(got, f.Name)
	}
	if diff := cmp.Diff([]string{"Outer", "Inner"}, got); diff != "" {
		t.Errorf("UsedFragments() mismatch (-want +got):\n%s", diff)
	}
}
