package client

import (
	"strings"
	"testing"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/go-cmp/cmp"
)

type todo struct {
	ID     string  `json:"id"`
	Text   *string `json:"text"`
	Labels []string
}

func TestDecodeData(t *testing.T) {
	t.Parallel()

	text := "write tests"

	tests := []struct {
		name    string
		data    string
		want    map[string]*todo
		wantErr string
	}{
		{
			name: "dataを構造体に変換できる",
			data: `{"todo": {"id": "1", "text": "write tests", "Labels": ["a", "b"]}}`,
			want: map[string]*todo{"todo": {ID: "1", Text: &text, Labels: []string{"a", "b"}}},
		},
		{
			name: "nullはnilになる",
			data: `{"todo": null}`,
			want: map[string]*todo{"todo": nil},
		},
		{
			name:    "型が合わないとエラー",
			data:    `{"todo": {"id": 1}}`,
			wantErr: "failed to decode data:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]*todo
			err := decodeData(jsontext.Value(tt.data), &got)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("decodeData() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeData() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decodeData() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeData_NonPointer(t *testing.T) {
	t.Parallel()

	var got map[string]any
	err := decodeData(jsontext.Value(`{}`), got)
	if err == nil || !strings.Contains(err.Error(), "cannot decode into non-pointer") {
		t.Errorf("decodeData() error = %v, want non-pointer error", err)
	}
}
