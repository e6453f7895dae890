package http

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

type readerSource struct {
	r io.Reader
}

func (s readerSource) Open() (io.ReadCloser, error) { return io.NopCloser(s.r), nil }

type failingSource struct{}

func (failingSource) Open() (io.ReadCloser, error) { return nil, errors.New("permission denied") }

func partHeaderFor(boundary, name string) string {
	return "--" + boundary + "\r\n" +
		`Content-Disposition: form-data;name="media";filename="` + name + "\"\r\n" +
		"Content-Type:application/octet-stream\r\n\r\n"
}

func TestBuildMultipartBody_SingleFile(t *testing.T) {
	body, err := BuildMultipartBody([]FileEntry{{Name: "a.txt", Source: BytesSource("hello")}}, "B")
	require.NoError(t, err)

	want := "--B\r\n" +
		"Content-Disposition: form-data;name=\"media\";filename=\"a.txt\"\r\n" +
		"Content-Type:application/octet-stream\r\n\r\n" +
		"hello" +
		"\r\n--B--\r\n"
	assert.Equal(t, want, string(body))
}

func TestBuildMultipartBody_TwoFiles(t *testing.T) {
	body, err := BuildMultipartBody([]FileEntry{
		{Name: "a.txt", Source: BytesSource("AAA")},
		{Name: "b.txt", Source: BytesSource("BBB")},
	}, "B")
	require.NoError(t, err)

	want := partHeaderFor("B", "a.txt") + "AAA" + "\r\n" +
		partHeaderFor("B", "b.txt") + "BBB" +
		"\r\n--B--\r\n"
	assert.Equal(t, want, string(body))
	assert.Equal(t, 1, strings.Count(string(body), "AAA\r\n--B\r\n"))
	assert.False(t, strings.Contains(string(body), "BBB\r\n\r\n"), "no separator after the last part")
}

func TestBuildMultipartBody_Empty(t *testing.T) {
	body, err := BuildMultipartBody(nil, "B")
	require.NoError(t, err)
	assert.Equal(t, "\r\n--B--\r\n", string(body))
}

func TestBuildMultipartBody_EmptyFile(t *testing.T) {
	body, err := BuildMultipartBody([]FileEntry{{Name: "empty.bin", Source: BytesSource(nil)}}, "B")
	require.NoError(t, err)
	assert.Equal(t, partHeaderFor("B", "empty.bin")+"\r\n--B--\r\n", string(body))
}

func TestBuildMultipartBody_ChunkedReads(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 500)

	tests := []struct {
		name string
		r    io.Reader
	}{
		{"one byte reads", iotest.OneByteReader(bytes.NewReader(content))},
		{"half reads", iotest.HalfReader(bytes.NewReader(content))},
		{"data with EOF", iotest.DataErrReader(bytes.NewReader(content))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := BuildMultipartBody([]FileEntry{{Name: "big.bin", Source: readerSource{tt.r}}}, "B")
			require.NoError(t, err)
			assert.Equal(t, partHeaderFor("B", "big.bin")+string(content)+"\r\n--B--\r\n", string(body))
		})
	}
}

func TestBuildMultipartBody_Unreadable(t *testing.T) {
	tests := []struct {
		name   string
		source FileSource
	}{
		{"open fails", failingSource{}},
		{"read fails", readerSource{iotest.TimeoutReader(iotest.OneByteReader(strings.NewReader("abc")))}},
		{"missing path", FilePath(filepath.Join(t.TempDir(), "missing.txt"))},
		{"nil source", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := BuildMultipartBody([]FileEntry{
				{Name: "ok.txt", Source: BytesSource("ok")},
				{Name: "bad.txt", Source: tt.source},
			}, "B")
			require.Error(t, err)
			assert.Nil(t, body)
			assert.Equal(t, errdef.CodeResource, errdef.CodeOf(err))
			assert.Contains(t, err.Error(), "bad.txt")
		})
	}
}

func TestBuildMultipartBody_FilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0x00, 0x0d, 0x0a}, 0o644))

	body, err := BuildMultipartBody([]FileEntry{{Name: "photo.jpg", Source: FilePath(path)}}, "B")
	require.NoError(t, err)
	assert.Equal(t, partHeaderFor("B", "photo.jpg")+"\xff\xd8\x00\r\n\r\n--B--\r\n", string(body))
}

func TestBuildMultipartBody_NamesNotEscaped(t *testing.T) {
	body, err := BuildMultipartBody([]FileEntry{{Name: `say "hi".txt`, Source: BytesSource("x")}}, "B")
	require.NoError(t, err)
	assert.Contains(t, string(body), `filename="say "hi".txt"`)
}

func TestMultipartBuilder_ParsesWithMimeReader(t *testing.T) {
	b := MultipartBuilder{Boundary: NewBoundary()}
	body, err := b.Build([]FileEntry{
		{Name: "a.txt", Source: BytesSource("alpha")},
		{Name: "b.txt", Source: BytesSource("beta")},
	})
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(b.ContentType())
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)
	assert.Equal(t, b.Boundary, params["boundary"])

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	var names, contents []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, "media", part.FormName())
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		names = append(names, part.FileName())
		contents = append(contents, string(data))
	}
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
	assert.Equal(t, []string{"alpha", "beta"}, contents)
}

func TestNewBoundary(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		b := NewBoundary()
		assert.True(t, strings.HasPrefix(b, "----------"))
		assert.Len(t, b, 42)
		assert.NotContains(t, b[10:], "-")
		assert.False(t, seen[b], "boundary repeated")
		seen[b] = true
	}
}

func TestMultipartContentType(t *testing.T) {
	assert.Equal(t, "multipart/form-data; boundary=XYZ", MultipartContentType("XYZ"))
}
