package quarantine

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/spf13/afero"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3 copies the artifact to a bucket and then deletes the local copy.
type S3 struct {
	fs     afero.Fs
	client objectPutter
	bucket string
	prefix string
}

func (*S3) Name() string { return KindS3 }

// NewS3 builds the S3 policy. Static credentials are used when both keys are
// set, the default chain otherwise. A custom endpoint switches to path-style
// addressing so MinIO works.
func NewS3(ctx context.Context, fs afero.Fs, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 quarantine bucket is required", common.ErrInvalidConfig)
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 quarantine: load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3WithClient(fs, client, cfg.Bucket, cfg.Prefix), nil
}

func newS3WithClient(fs afero.Fs, c objectPutter, bucket, prefix string) *S3 {
	return &S3{fs: fs, client: c, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key: [prefix/]branch/yyyy/mm/base.
func (q *S3) Key(s Subject) string {
	return path.Join(q.prefix, s.Branch, s.Period.YearFolder(), s.Period.Prefix(), filepath.Base(s.Artifact.Path))
}

func (q *S3) Handle(ctx context.Context, s Subject) error {
	if s.Artifact.Path == "" {
		return nil
	}
	f, err := q.fs.Open(s.Artifact.Path)
	if err != nil {
		return fmt.Errorf("s3 quarantine: open %s: %w", s.Artifact.Path, err)
	}
	defer f.Close()

	in := &s3.PutObjectInput{
		Bucket: aws.String(q.bucket),
		Key:    aws.String(q.Key(s)),
		Body:   f,
	}
	if s.Artifact.ContentType != "" {
		in.ContentType = aws.String(s.Artifact.ContentType)
	}
	if s.Artifact.Size > 0 {
		in.ContentLength = aws.Int64(s.Artifact.Size)
	}
	if _, err := q.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 quarantine: put %s: %w", aws.ToString(in.Key), err)
	}

	_ = f.Close()
	if err := q.fs.Remove(s.Artifact.Path); err != nil {
		return fmt.Errorf("s3 quarantine: remove local %s: %w", s.Artifact.Path, err)
	}
	return nil
}
