package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"bibomarket/internal/domain/entity"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

const gcsScheme = "gs://"

// CloudStorageSource opens gs://bucket/object references as media files.
// Size and content type come from the object attributes; the content is
// streamed only when the message is sent.
type CloudStorageSource struct {
	client *storage.Client
}

func NewCloudStorageSource(ctx context.Context, credentialsPath string) (*CloudStorageSource, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageSource{client: client}, nil
}

// Handles reports whether ref is a gs:// URI.
func (s *CloudStorageSource) Handles(ref string) bool {
	return strings.HasPrefix(ref, gcsScheme)
}

func (s *CloudStorageSource) Open(ctx context.Context, ref string) (*entity.MediaFile, error) {
	bucket, object, err := ParseGCSURI(ref)
	if err != nil {
		return nil, err
	}

	obj := s.client.Bucket(bucket).Object(object)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist || err == storage.ErrBucketNotExist {
			return nil, errors.NotFound("File", err)
		}
		logger.Error("Open Error: failed to read attributes of %s: %v", ref, err)
		return nil, errors.Internal("Failed to read file", err)
	}

	return &entity.MediaFile{
		Name:        path.Base(attrs.Name),
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		Open: func() (io.ReadCloser, error) {
			// The picking request is usually over by the time the file is
			// uploaded, so reads are not tied to its context.
			return obj.NewReader(context.Background())
		},
	}, nil
}

func (s *CloudStorageSource) Close() error {
	return s.client.Close()
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(ref string) (bucket, object string, err error) {
	if !strings.HasPrefix(ref, gcsScheme) {
		return "", "", errors.BadRequest("invalid GCS URI: expected gs://bucket/object", nil)
	}
	parts := strings.SplitN(strings.TrimPrefix(ref, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.BadRequest("invalid GCS URI: expected gs://bucket/object", nil)
	}
	return parts[0], parts[1], nil
}
