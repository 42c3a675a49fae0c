package storage

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibomarket/internal/domain/entity"
	"bibomarket/pkg/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestLocalSource_SniffsContentType(t *testing.T) {
	dir := t.TempDir()
	// The extension lies; the content is a PNG.
	writeFile(t, dir, "shelf.txt", pngHeader)
	writeFile(t, dir, "notes.png", []byte("just some text\n"))

	src := NewLocalSource(dir)

	file, err := src.Open(context.Background(), "shelf.txt")
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.ContentType)
	assert.Equal(t, "shelf.txt", file.Name)
	assert.Equal(t, int64(len(pngHeader)), file.Size)

	rc, err := file.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	file, err = src.Open(context.Background(), "notes.png")
	require.NoError(t, err)
	assert.Contains(t, file.ContentType, "text/plain")
}

func TestLocalSource_StaysInsideRoot(t *testing.T) {
	outside := t.TempDir()
	secret := writeFile(t, outside, "private.png", pngHeader)
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "chats"), 0o755))
	writeFile(t, filepath.Join(root, "chats"), "shelf.png", pngHeader)

	src := NewLocalSource(root)

	rel, err := filepath.Rel(root, secret)
	require.NoError(t, err)
	for _, ref := range []string{
		secret,
		rel,
		"../private.png",
		"chats/../../private.png",
	} {
		_, err := src.Open(context.Background(), ref)
		assert.True(t, errors.Is(err, errors.CodeForbidden), ref)
	}

	file, err := src.Open(context.Background(), "chats/../chats/shelf.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.ContentType)
}

func TestLocalSource_Errors(t *testing.T) {
	dir := t.TempDir()
	src := NewLocalSource(dir)

	_, err := src.Open(context.Background(), "missing.png")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "album"), 0o755))
	_, err = src.Open(context.Background(), "album")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestFromMultipart(t *testing.T) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("media", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	fh := req.MultipartForm.File["media"][0]

	file, err := FromMultipart(fh)

	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", file.Name)
	assert.Equal(t, "image/png", file.ContentType)
	assert.Equal(t, int64(len(pngHeader)), file.Size)
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://bibo-media/chats/u1/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "bibo-media", bucket)
	assert.Equal(t, "chats/u1/photo.jpg", object)

	for _, ref := range []string{"", "gs://", "gs://bucket", "gs://bucket/", "gs:///object", "s3://bucket/object"} {
		_, _, err := ParseGCSURI(ref)
		assert.True(t, errors.Is(err, errors.CodeBadRequest), ref)
	}
}

type fakeSource struct {
	prefix string
	opened []string
}

func (f *fakeSource) Handles(ref string) bool {
	return len(ref) >= len(f.prefix) && ref[:len(f.prefix)] == f.prefix
}

func (f *fakeSource) Open(_ context.Context, ref string) (*entity.MediaFile, error) {
	f.opened = append(f.opened, ref)
	return &entity.MediaFile{Name: ref}, nil
}

func TestMultiSource_FirstHandlerWins(t *testing.T) {
	gcs := &fakeSource{prefix: "gs://"}
	local := &fakeSource{prefix: ""}
	m := NewMultiSource(gcs, nil, local)

	_, err := m.Open(context.Background(), "gs://b/o.png")
	require.NoError(t, err)
	_, err = m.Open(context.Background(), " /tmp/a.png ")
	require.NoError(t, err)

	assert.Equal(t, []string{"gs://b/o.png"}, gcs.opened)
	assert.Equal(t, []string{"/tmp/a.png"}, local.opened)

	_, err = m.Open(context.Background(), "  ")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = NewMultiSource(gcs).Open(context.Background(), "/tmp/a.png")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}
