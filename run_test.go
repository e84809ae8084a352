package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/s1s5/python-graphql-compiler/config"
)

func Test_IntegrationTest(t *testing.T) {
	type want struct {
		files map[string]string
	}
	tests := []struct {
		name    string
		testDir string
		wantErr bool
		want    want
	}{
		{
			name:    "クエリファイルごとにPythonモジュールを生成する",
			testDir: "testdata/integration/basic/",
			want: want{
				files: map[string]string{"query/get_a.py": "want/get_a.py"},
			},
		},
		{
			name:    "output_pathを指定すると一つのファイルに生成する",
			testDir: "testdata/integration/single/",
			want: want{
				files: map[string]string{"gen/client.py": "want/client.py"},
			},
		},
		{
			name:    "検証に失敗するクエリはエラーになる",
			testDir: "testdata/integration/invalid/",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("panic: %v", r)
				}
			}()

			t.Chdir(copyTestDir(t, tt.testDir))
			err := run(t.Context(), options{stdout: &bytes.Buffer{}})
			if tt.wantErr {
				if err == nil {
					t.Errorf("run() expected error but got nil")
				}
				return // エラーが期待される場合はここでテストを終了
			}
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}

			for generated, wantFile := range tt.want.files {
				compareFiles(t, wantFile, generated)
			}
		})
	}
}

func Test_PrintSchema(t *testing.T) {
	t.Chdir(copyTestDir(t, "testdata/integration/basic/"))

	var stdout bytes.Buffer
	if err := run(t.Context(), options{configFile: ".pygqlc.yml", printSchema: true, stdout: &stdout}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	for _, want := range []string{"type A {", "type Query {"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("schema output does not contain %q:\n%s", want, stdout.String())
		}
	}
	if _, err := os.Stat(filepath.Join("query", "get_a.py")); !os.IsNotExist(err) {
		t.Errorf("code must not be generated with -print-schema, stat error = %v", err)
	}
}

func Test_WatchDirs(t *testing.T) {
	dir := copyTestDir(t, "testdata/integration/basic/")
	t.Chdir(dir)
	if err := os.MkdirAll(filepath.Join("query", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadConfig(".pygqlc.yml")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	got, err := watchDirs(cfg)
	if err != nil {
		t.Fatalf("watchDirs() error = %v", err)
	}
	want := []string{".", "query", filepath.Join("query", "nested")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("watchDirs() mismatch (-want +got):\n%s", diff)
	}
}

func copyTestDir(t *testing.T, testDir string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.CopyFS(dir, os.DirFS(testDir)); err != nil {
		t.Fatalf("failed to copy %s: %v", testDir, err)
	}
	return dir
}

func compareFiles(t *testing.T, wantFile, generatedFile string) {
	t.Helper()

	// Compare file contents
	want, err := os.ReadFile(wantFile)
	if err != nil {
		t.Errorf("error reading file (expected file): %v", err)
		return
	}

	generated, err := os.ReadFile(generatedFile)
	if err != nil {
		t.Errorf("error reading file (actual file): %v", err)
		return
	}

	if diff := cmp.Diff(string(want), string(generated)); diff != "" {
		t.Errorf("file contents differ:\n%s", diff)
	}
}
