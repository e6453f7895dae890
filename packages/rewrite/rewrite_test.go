package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriter_Rewrite(t *testing.T) {
	rw := New(Rules{
		Block: []string{"http://tracker.example.com", ""},
		Replace: map[string]string{
			"http://api.example.com/":    "https://api.example.com/",
			"http://api.example.com/v1/": "https://v1.internal/",
			"":                           "ignored",
		},
	})

	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{"blocked", "http://tracker.example.com/pixel.gif", "", false},
		{"longest prefix wins", "http://api.example.com/v1/users", "https://v1.internal/users", true},
		{"shorter prefix", "http://api.example.com/v2/users", "https://api.example.com/v2/users", true},
		{"exact prefix", "http://api.example.com/", "https://api.example.com/", true},
		{"unchanged", "https://other.example.com/x", "https://other.example.com/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rw.Rewrite(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewriter_BlockBeatsReplace(t *testing.T) {
	rw := New(Rules{
		Block:   []string{"http://legacy.example.com/admin"},
		Replace: map[string]string{"http://legacy.example.com/": "https://new.example.com/"},
	})

	_, ok := rw.Rewrite("http://legacy.example.com/admin/users")
	assert.False(t, ok)

	got, ok := rw.Rewrite("http://legacy.example.com/public")
	assert.True(t, ok)
	assert.Equal(t, "https://new.example.com/public", got)
}

func TestRewriter_Empty(t *testing.T) {
	assert.True(t, Rules{}.Empty())
	assert.False(t, Rules{Block: []string{"x"}}.Empty())

	got, ok := New(Rules{}).Rewrite("http://example.com")
	assert.True(t, ok)
	assert.Equal(t, "http://example.com", got)
}
