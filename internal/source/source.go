package source

import (
	"FlowTagger/internal/config"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"k8s.io/klog/v2"
)

// ErrUnsupportedScheme is returned for locations that are neither local paths nor s3:// URIs.
var ErrUnsupportedScheme = errors.New("unsupported location scheme")

// Store opens inputs and creates outputs by location. A location is a local path
// or an s3://bucket/key URI. The S3 client is only created when first needed.
type Store struct {
	awsCfg config.AWSConfig

	once  sync.Once
	s3    s3iface.S3API
	s3Err error
}

// New creates a new store.
func New(cfg config.AWSConfig) *Store {
	return &Store{awsCfg: cfg}
}

// NewWithS3 creates a store using an existing S3 client.
func NewWithS3(client s3iface.S3API) *Store {
	s := &Store{s3: client}
	s.once.Do(func() {})
	return s
}

// Location is a parsed input or output location.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// IsS3 reports whether the location refers to an S3 object.
func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Parse splits a location string.
func Parse(location string) (Location, error) {
	if location == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.Contains(location, "://") {
		return Location{Path: location}, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location '%s': %w", location, err)
	}
	switch u.Scheme {
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("invalid location '%s': expected s3://bucket/key", location)
		}
		return Location{Bucket: u.Host, Key: key}, nil
	case "file":
		return Location{Path: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("%w: '%s'", ErrUnsupportedScheme, u.Scheme)
	}
}

func (s *Store) client() (s3iface.S3API, error) {
	s.once.Do(func() {
		opts := session.Options{
			SharedConfigState: session.SharedConfigEnable,
			Profile:           s.awsCfg.Profile,
		}
		if s.awsCfg.Region != "" {
			opts.Config.Region = aws.String(s.awsCfg.Region)
		}
		if s.awsCfg.Endpoint != "" {
			opts.Config.Endpoint = aws.String(s.awsCfg.Endpoint)
			opts.Config.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSessionWithOptions(opts)
		if err != nil {
			s.s3Err = fmt.Errorf("failed to create AWS session: %w", err)
			return
		}
		s.s3 = s3.New(sess)
	})
	return s.s3, s.s3Err
}

// Open opens the location for reading.
func (s *Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := Parse(location)
	if err != nil {
		return nil, err
	}
	if !loc.IsS3() {
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open '%s': %w", loc.Path, err)
		}
		return f, nil
	}

	client, err := s.client()
	if err != nil {
		return nil, err
	}
	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get '%s': %w", loc, err)
	}
	klog.V(1).Infof("Opened %s (%d bytes)", loc, aws.Int64Value(out.ContentLength))
	return out.Body, nil
}

// Output is a pending write to a location. Close publishes the written data,
// Abort discards it.
type Output interface {
	io.WriteCloser
	Abort() error
}

// Create opens the location for writing. Nothing is visible at the location
// until Close returns without error.
func (s *Store) Create(ctx context.Context, location string) (Output, error) {
	loc, err := Parse(location)
	if err != nil {
		return nil, err
	}
	if !loc.IsS3() {
		return newFileWriter(loc.Path)
	}

	client, err := s.client()
	if err != nil {
		return nil, err
	}
	return &objectWriter{ctx: ctx, client: client, loc: loc}, nil
}

// fileWriter writes to a temporary file and renames it into place on Close.
type fileWriter struct {
	*os.File
	path string
}

func newFileWriter(path string) (*fileWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create '%s': %w", path, err)
	}
	return &fileWriter{File: f, path: path}, nil
}

func (w *fileWriter) Close() error {
	tmp := w.File.Name()
	if err := w.File.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

func (w *fileWriter) Abort() error {
	w.File.Close()
	return os.Remove(w.File.Name())
}

// objectWriter buffers the object in memory and uploads it on Close.
type objectWriter struct {
	ctx    context.Context
	client s3iface.S3API
	loc    Location
	buf    bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	_, err := w.client.PutObjectWithContext(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.loc.Bucket),
		Key:         aws.String(w.loc.Key),
		Body:        bytes.NewReader(w.buf.Bytes()),
		ContentType: aws.String(contentType(w.loc.Key)),
	})
	if err != nil {
		return fmt.Errorf("failed to put '%s': %w", w.loc, err)
	}
	return nil
}

func (w *objectWriter) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}

func contentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
