// Package photos stores report photos on local disk or in a Cloud Storage
// bucket and hands back the URL saved in Report.Photos.
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/apex/log"
	"github.com/google/uuid"
)

// MaxUploadSize bounds a single multipart upload.
const MaxUploadSize = 20 << 20

var ErrUnsupportedType = errors.New("photos: unsupported file type")

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
}

// Store saves one photo and returns the URL clients load it from.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (url string, err error)
}

// ObjectName validates the client filename and builds a collision-free
// name: "<yyyyMMdd-HHmmss>-<uuid><ext>".
func ObjectName(filename string, now time.Time) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExt[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return fmt.Sprintf("%s-%s%s", now.Format("20060102-150405"), uuid.NewString(), ext), nil
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := allowedExt[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// LocalStore writes photos under Dir and serves them below URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
	now       func() time.Time
}

func NewLocalStore(dir, urlPrefix string) *LocalStore {
	return &LocalStore{Dir: dir, URLPrefix: strings.TrimSuffix(urlPrefix, "/"), now: time.Now}
}

func (s *LocalStore) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	name, err := ObjectName(filename, s.now())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(r, MaxUploadSize)); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("save file: %w", err)
	}
	log.WithField("file", name).Debug("photo stored locally")
	return s.URLPrefix + "/" + name, nil
}

// GCSStore writes photos to a Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	Bucket string
	now    func() time.Time
}

// NewGCSStore opens a client with the default application credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("photos: GCS bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, Bucket: bucket, now: time.Now}, nil
}

func (s *GCSStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := ObjectName(filename, s.now())
	if err != nil {
		return "", err
	}
	object := "reports/" + name

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	w := s.client.Bucket(s.Bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType(name)
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, io.LimitReader(r, MaxUploadSize)); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", object, err)
	}
	log.WithField("object", object).Info("photo uploaded to GCS")
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, object), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
