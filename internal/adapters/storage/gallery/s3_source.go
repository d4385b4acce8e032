package gallery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	domain "ministry/internal/domain/gallery"
)

// DefaultMaxItems caps how many photos one gallery page shows.
const DefaultMaxItems = 200

// S3Config locates the bucket holding gallery photos.
type S3Config struct {
	Bucket    string
	Prefix    string // e.g. "gallery/"
	Region    string
	Endpoint  string // S3-compatible endpoint (R2, MinIO); empty for AWS
	AccessKey string
	SecretKey string
	PublicURL string // base URL objects are served from, e.g. "https://media.worshipacademy.org"
}

// NewS3Client builds an S3 client from static credentials.
// Without keys the SDK's anonymous access is used, which suits public buckets.
func NewS3Client(cfg S3Config) *s3.Client {
	awsCfg := aws.Config{Region: cfg.Region}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
}

// S3Source lists image objects under a bucket prefix as gallery items.
type S3Source struct {
	client    s3.ListObjectsV2APIClient
	bucket    string
	prefix    string
	publicURL string
	maxItems  int
}

// NewS3Source creates an S3Source.
// PRE: cfg.Bucket and cfg.PublicURL are set
func NewS3Source(client s3.ListObjectsV2APIClient, cfg S3Config) *S3Source {
	return &S3Source{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxItems:  DefaultMaxItems,
	}
}

// List returns image objects in key order. Non-image objects are skipped.
// POST: At most maxItems items; SortOrder follows key order
func (s *S3Source) List(ctx context.Context) ([]domain.Item, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	var items []domain.Item
	for paginator.HasMorePages() && len(items) < s.maxItems {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list gallery bucket %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !domain.IsImageKey(key) {
				continue
			}
			items = append(items, domain.Item{
				ID:        key,
				Title:     domain.TitleFromKey(key),
				ImageURL:  s.publicURL + "/" + escapeKey(key),
				SortOrder: len(items) + 1,
			})
			if len(items) == s.maxItems {
				break
			}
		}
	}
	return items, nil
}

// escapeKey escapes each path segment of an object key for use in a URL.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ Source = (*S3Source)(nil)
