package fetch

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (f *Fetcher) getS3(ctx context.Context, src Source, dst string) (int64, error) {
	if f.s3 == nil {
		c, err := NewS3Client(ctx, f.s3Region)
		if err != nil {
			return 0, err
		}
		f.s3 = c
	}
	out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return 0, fmt.Errorf("get s3://%s/%s: %w", src.Bucket, src.Key, err)
	}
	defer out.Body.Close()
	return f.writeBody(out.Body, aws.ToInt64(out.ContentLength), path.Base(src.Key), dst)
}
