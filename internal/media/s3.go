package media

import (
    "bytes"
    "context"
    "fmt"

    "github.com/aws/aws-sdk-go-v2/aws"
    awsconfig "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store uploads objects to an S3 (or S3-compatible) bucket.
type S3Store struct {
    client  *s3.Client
    bucket  string
    baseURL string
}

// S3Options configures NewS3Store.  Endpoint is optional and switches the
// client to path-style addressing, which MinIO and LocalStack expect.
type S3Options struct {
    Bucket   string
    Region   string
    Endpoint string
    BaseURL  string
}

// NewS3Store loads the default AWS credential chain and builds a client.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
    cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
    if err != nil {
        return nil, fmt.Errorf("load aws config: %w", err)
    }
    client := s3.NewFromConfig(cfg, func(o *s3.Options) {
        if opts.Endpoint != "" {
            o.BaseEndpoint = aws.String(opts.Endpoint)
            o.UsePathStyle = true
        }
    })
    base := opts.BaseURL
    if base == "" {
        base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
    }
    return &S3Store{client: client, bucket: opts.Bucket, baseURL: base}, nil
}

// Put uploads body under key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
    key, err := cleanKey(key)
    if err != nil {
        return "", err
    }
    _, err = s.client.PutObject(ctx, &s3.PutObjectInput{
        Bucket:      aws.String(s.bucket),
        Key:         aws.String(key),
        Body:        bytes.NewReader(body),
        ContentType: aws.String(contentType),
    })
    if err != nil {
        return "", fmt.Errorf("put %s: %w", key, err)
    }
    return joinURL(s.baseURL, key), nil
}
