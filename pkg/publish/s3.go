// Package publish uploads finished output tables to S3.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the part of the S3 API the publisher uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads tables to s3://bucket/prefix/<job>/<file>.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Publisher creates a publisher using the default AWS credential chain.
func NewS3Publisher(ctx context.Context, bucket, prefix string) (*S3Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(awsCfg), bucket, prefix)
}

// NewWithClient creates a publisher on an existing S3 client.
func NewWithClient(client ObjectPutter, bucket, prefix string) (*S3Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: log.With().Str("component", "publish").Logger(),
	}, nil
}

// Key returns the object key a file of job is uploaded to.
func (p *S3Publisher) Key(job, file string) string {
	return path.Join(p.prefix, job, filepath.Base(file))
}

// Publish uploads each file of job. Missing files are skipped.
func (p *S3Publisher) Publish(ctx context.Context, job string, files ...string) (int, error) {
	uploaded := 0
	for _, file := range files {
		body, err := os.ReadFile(file)
		if os.IsNotExist(err) {
			p.logger.Debug().Str("file", file).Msg("Skipping missing file")
			continue
		}
		if err != nil {
			return uploaded, fmt.Errorf("read %s: %w", file, err)
		}

		key := p.Key(job, file)
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType(file)),
		})
		if err != nil {
			return uploaded, fmt.Errorf("put s3://%s/%s: %w", p.bucket, key, err)
		}
		uploaded++

		p.logger.Info().
			Str("job", job).
			Str("bucket", p.bucket).
			Str("key", key).
			Int("bytes", len(body)).
			Msg("Table published")
	}
	return uploaded, nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
