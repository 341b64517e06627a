// Package artifacts fetches model and reference artifacts from the local
// filesystem or from S3 compatible object storage.
package artifacts

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// MaxArtifactSize bounds how much of a single artifact is read into memory.
const MaxArtifactSize = 1 << 30

const s3Scheme = "s3://"

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the artifacts module logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("artifacts")
	})
	return pkgLogger
}

// Location is a parsed artifact location.
type Location struct {
	Bucket string // set for s3:// locations
	Key    string
	Path   string // set for local files
}

// IsS3 reports whether the location points at object storage.
func (l Location) IsS3() bool { return l.Bucket != "" }

// String returns the location in its configured form.
func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation splits an s3://bucket/key location or returns a local path.
func ParseLocation(location string) (Location, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Location{}, errors.Newf("artifact location is empty").
			Component("artifacts").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !strings.HasPrefix(location, s3Scheme) {
		return Location{Path: location}, nil
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, errors.Newf("invalid S3 location %q, expected s3://bucket/key", location).
			Component("artifacts").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// Fetcher reads artifacts by location. The S3 client is created on first use
// so deployments without S3 never load AWS configuration.
type Fetcher struct {
	settings  *conf.Settings
	s3Options []func(*s3.Options)

	s3Once   sync.Once
	s3Client *s3.Client
	s3Err    error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithS3Options appends options applied when the S3 client is built.
func WithS3Options(opts ...func(*s3.Options)) Option {
	return func(f *Fetcher) {
		f.s3Options = append(f.s3Options, opts...)
	}
}

// New creates a Fetcher. settings may be nil, in which case local paths are
// used as given and S3 uses the default AWS configuration.
func New(settings *conf.Settings, opts ...Option) *Fetcher {
	if settings == nil {
		settings = &conf.Settings{}
	}
	f := &Fetcher{settings: settings}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the full content of the artifact at location.
// A missing artifact yields an error of category not-found.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var data []byte
	if loc.IsS3() {
		data, err = f.fetchS3(ctx, loc)
	} else {
		loc.Path = f.settings.ResolvePath(loc.Path)
		data, err = fetchLocal(loc.Path)
	}
	if err != nil {
		return nil, err
	}

	GetLogger().Debug("artifact fetched",
		logger.String("location", loc.String()),
		logger.Int("size", len(data)),
		logger.Duration("duration", time.Since(start)))
	return data, nil
}

func fetchLocal(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		category := errors.CategoryFileIO
		if os.IsNotExist(err) {
			category = errors.CategoryNotFound
		}
		return nil, errors.New(err).
			Component("artifacts").
			Category(category).
			FileContext(path, 0).
			Context("operation", "open_artifact").
			Build()
	}
	defer func() { _ = file.Close() }()

	return readLimited(file, path)
}

func readLimited(r io.Reader, location string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxArtifactSize+1))
	if err != nil {
		return nil, errors.New(err).
			Component("artifacts").
			Category(errors.CategoryFileIO).
			Context("location", location).
			Context("operation", "read_artifact").
			Build()
	}
	if len(data) > MaxArtifactSize {
		return nil, errors.Newf("artifact %s exceeds %d bytes", location, MaxArtifactSize).
			Component("artifacts").
			Category(errors.CategoryFileIO).
			Build()
	}
	return data, nil
}
