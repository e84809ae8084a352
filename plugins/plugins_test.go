package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s1s5/python-graphql-compiler/config"
)

const userSchema = `
input UserFilter {
  name: String
}
type User {
  id: ID!
  name: String
}
type Query {
  user(id: ID!): User
  users(filter: UserFilter): [User!]!
}
`

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func loadConfig(t *testing.T, dir, outputPath string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		SchemaFilename: []string{filepath.Join(dir, "schema.graphql")},
		Query:          []string{filepath.Join(dir, "query")},
		QueryExt:       config.DefaultQueryExt,
		OutputPath:     outputPath,
		PythonVersion:  config.DefaultPythonVersion,
	}
	require.NoError(t, cfg.LoadSchema(context.Background()))
	return cfg
}

func TestGenerateCode_PerFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"schema.graphql":             userSchema,
		"query/getUser.graphql":      `query GetUser($id: ID!) { user(id: $id) { ...UserFields } }`,
		"query/fragments.graphql":    `fragment UserFields on User { id name }`,
		"query/broken.graphql":       `query Broken { user(id: "1") { unknown } }`,
		"query/nested/users.graphql": `query Users($filter: UserFilter) { users(filter: $filter) { id } }`,
	})

	err := GenerateCode(context.Background(), loadConfig(t, dir, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.graphql")

	getUser, err := os.ReadFile(filepath.Join(dir, "query", "get_user.py"))
	require.NoError(t, err)
	assert.Contains(t, string(getUser), "class GetUser:")
	assert.Contains(t, string(getUser), "fragment UserFields on User { id name }")

	users, err := os.ReadFile(filepath.Join(dir, "query", "nested", "users.py"))
	require.NoError(t, err)
	assert.Contains(t, string(users), "def UserFilter__serialize(data):")

	assert.NoFileExists(t, filepath.Join(dir, "query", "fragments.py"))
	assert.NoFileExists(t, filepath.Join(dir, "query", "broken.py"))
}

func TestGenerateCode_SingleOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
		want    []string
	}{
		{
			name: "全ての操作が一つのファイルに出力される",
			files: map[string]string{
				"query/a.graphql": `query GetUser($id: ID!) { user(id: $id) { id } }`,
				"query/b.graphql": `query Users { users { id name } }`,
			},
			want: []string{"class GetUser:", "class Users:"},
		},
		{
			name: "操作名が重複するとエラーになる",
			files: map[string]string{
				"query/a.graphql": `query GetUser($id: ID!) { user(id: $id) { id } }`,
				"query/b.graphql": `query GetUser { users { id } }`,
			},
			wantErr: "duplicate operation name GetUser",
		},
		{
			name: "一つでも検証に失敗すると出力しない",
			files: map[string]string{
				"query/a.graphql": `query GetUser($id: ID!) { user(id: $id) { id } }`,
				"query/b.graphql": `query Users { users { unknown } }`,
			},
			wantErr: "b.graphql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{"schema.graphql": userSchema})
			writeFiles(t, dir, tt.files)
			outputPath := filepath.Join(dir, "out", "client.py")

			err := GenerateCode(context.Background(), loadConfig(t, dir, outputPath))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.NoFileExists(t, outputPath)
				return
			}
			require.NoError(t, err)

			content, err := os.ReadFile(outputPath)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, string(content), want)
			}
		})
	}
}

func TestGenerateCode_NoQueryFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"schema.graphql": userSchema})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "query"), 0o755))

	assert.NoError(t, GenerateCode(context.Background(), loadConfig(t, dir, "")))
}

func TestGenerateCode_InputNameConflict(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"schema.graphql":        userSchema,
		"query/userFil.graphql": `query UserFilter($filter: UserFilter) { users(filter: $filter) { id } }`,
	})

	err := GenerateCode(context.Background(), loadConfig(t, dir, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts with")
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "camelCaseはsnake_caseになる", query: "q/getUser.graphql", want: filepath.Join("q", "get_user.py")},
		{name: "PascalCaseはsnake_caseになる", query: "q/GetUser.graphql", want: filepath.Join("q", "get_user.py")},
		{name: "snake_caseはそのまま", query: "q/get_user.graphql", want: filepath.Join("q", "get_user.py")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, OutputPath(tt.query))
		})
	}
}

func TestGenerateCode_ReservedWord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"schema.graphql":        userSchema,
		"query/getUser.graphql": `query GetUser($id: ID!) { user(id: $id) { id in: name } }`,
	})

	err := GenerateCode(context.Background(), loadConfig(t, dir, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "in" is a reserved word in Python`)
	assert.NoFileExists(t, filepath.Join(dir, "query", "get_user.py"))
}
