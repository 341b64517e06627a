package artifacts

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

const defaultS3Region = "us-east-1"

// newS3Client builds a client from S3 settings. Static credentials are used
// when configured; otherwise the default AWS credential chain applies.
func newS3Client(ctx context.Context, settings conf.S3Settings, opts ...func(*s3.Options)) (*s3.Client, error) {
	region := settings.Region
	if region == "" {
		region = defaultS3Region
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if settings.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("artifacts").
			Category(errors.CategoryConfiguration).
			Context("operation", "load_aws_config").
			Build()
	}

	clientOpts := []func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = settings.UsePathStyle
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
	}}
	clientOpts = append(clientOpts, opts...)

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func (f *Fetcher) client(ctx context.Context) (*s3.Client, error) {
	f.s3Once.Do(func() {
		f.s3Client, f.s3Err = newS3Client(ctx, f.settings.Artifacts.S3, f.s3Options...)
	})
	return f.s3Client, f.s3Err
}

func (f *Fetcher) fetchS3(ctx context.Context, loc Location) ([]byte, error) {
	client, err := f.client(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		category := errors.CategoryNetwork
		if isS3NotFound(err) {
			category = errors.CategoryNotFound
		}
		GetLogger().Warn("S3 artifact fetch failed",
			logger.String("bucket", loc.Bucket),
			logger.String("key", loc.Key),
			logger.Error(err))
		return nil, errors.New(err).
			Component("artifacts").
			Category(category).
			Context("bucket", loc.Bucket).
			Context("key", loc.Key).
			NetworkContext(loc.String(), 0).
			Timing("s3_get_object", time.Since(start)).
			Build()
	}
	defer func() { _ = out.Body.Close() }()

	return readLimited(out.Body, loc.String())
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
