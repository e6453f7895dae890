package http

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
)

const (
	multipartSeparator = "\r\n"
	multipartChunkSize = 1024
)

// FileSource yields the content of one uploaded file.
type FileSource interface {
	Open() (io.ReadCloser, error)
}

// FilePath is a FileSource reading a file from disk.
type FilePath string

func (p FilePath) Open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

// BytesSource is a FileSource over in-memory content.
type BytesSource []byte

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FileEntry is one named file of a multipart body.
type FileEntry struct {
	Name   string
	Source FileSource
}

// NewBoundary returns a fresh boundary token.
func NewBoundary() string {
	return "----------" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MultipartContentType returns the Content-Type value matching boundary.
func MultipartContentType(boundary string) string {
	return "multipart/form-data; boundary=" + boundary
}

// MultipartBuilder serializes files into a multipart/form-data body.
//
// Every part is sent under the form field "media" with the entry name as its
// filename. Names are written as is: a name containing a quote or the
// boundary produces a body the server cannot frame.
type MultipartBuilder struct {
	Boundary string
	Logger   *slog.Logger
}

// BuildMultipartBody is MultipartBuilder{Boundary: boundary}.Build(files).
func BuildMultipartBody(files []FileEntry, boundary string) ([]byte, error) {
	return MultipartBuilder{Boundary: boundary}.Build(files)
}

// ContentType returns the Content-Type value for bodies built by b.
func (b MultipartBuilder) ContentType() string {
	return MultipartContentType(b.Boundary)
}

// Build returns the body for files, in order. If any file cannot be read
// no body is returned.
func (b MultipartBuilder) Build(files []FileEntry) ([]byte, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var out bytes.Buffer
	for i, f := range files {
		out.WriteString(b.partHeader(f.Name))
		if err := copyFile(&out, f); err != nil {
			return nil, err
		}
		if i < len(files)-1 {
			logger.Debug("adding multipart separator", "after", f.Name)
			out.WriteString(multipartSeparator)
		}
	}
	out.WriteString("\r\n--" + b.Boundary + "--\r\n")
	return out.Bytes(), nil
}

func (b MultipartBuilder) partHeader(name string) string {
	var sb strings.Builder
	sb.WriteString("--")
	sb.WriteString(b.Boundary)
	sb.WriteString("\r\n")
	sb.WriteString(`Content-Disposition: form-data;name="media";filename="`)
	sb.WriteString(name)
	sb.WriteString("\"\r\n")
	sb.WriteString("Content-Type:application/octet-stream\r\n\r\n")
	return sb.String()
}

func copyFile(w io.Writer, f FileEntry) error {
	if f.Source == nil {
		return errdef.New(errdef.CodeResource, "no content for file %q", f.Name)
	}
	rc, err := f.Source.Open()
	if err != nil {
		return errdef.Wrap(errdef.CodeResource, err, "open file %q", f.Name)
	}
	defer rc.Close()

	buf := make([]byte, multipartChunkSize)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return errdef.Wrap(errdef.CodeResource, werr, "buffer file %q", f.Name)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errdef.Wrap(errdef.CodeResource, err, "read file %q", f.Name)
		}
	}
}
