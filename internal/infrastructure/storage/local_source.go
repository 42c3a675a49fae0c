package storage

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"bibomarket/internal/domain/entity"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

// LocalSource opens files from the local filesystem. The content type is
// sniffed from the file content, not taken from the extension.
type LocalSource struct {
	root string
}

// NewLocalSource serves files under root. An empty root means the working
// directory. Absolute references and references leaving root are refused.
func NewLocalSource(root string) *LocalSource {
	if root == "" {
		root = "."
	}
	return &LocalSource{root: root}
}

func (s *LocalSource) Handles(ref string) bool {
	return ref != ""
}

func (s *LocalSource) Open(ctx context.Context, ref string) (*entity.MediaFile, error) {
	name, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("File", err)
		}
		return nil, errors.BadRequest("Cannot read file", err)
	}
	if info.IsDir() {
		return nil, errors.BadRequest("Cannot attach a directory", nil)
	}

	mtype, err := mimetype.DetectFile(name)
	if err != nil {
		logger.Error("Open Error: failed to detect type of %s: %v", name, err)
		return nil, errors.BadRequest("Cannot read file", err)
	}

	return &entity.MediaFile{
		Name:        filepath.Base(name),
		ContentType: mtype.String(),
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(name)
		},
	}, nil
}

func (s *LocalSource) resolve(ref string) (string, error) {
	if filepath.IsAbs(ref) || filepath.VolumeName(ref) != "" {
		logger.Warn("Open: refused absolute media reference %q", ref)
		return "", errors.Forbidden("Media must be inside the media folder", nil)
	}
	name := filepath.Join(s.root, ref)
	rel, err := filepath.Rel(s.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		logger.Warn("Open: refused media reference %q outside %s", ref, s.root)
		return "", errors.Forbidden("Media must be inside the media folder", nil)
	}
	return name, nil
}

// FromMultipart wraps an uploaded form file. The declared content type is
// ignored in favour of the sniffed one.
func FromMultipart(fh *multipart.FileHeader) (*entity.MediaFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.BadRequest("Cannot read uploaded file", err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, errors.BadRequest("Cannot read uploaded file", err)
	}

	return &entity.MediaFile{
		Name:        fh.Filename,
		ContentType: mtype.String(),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}, nil
}
