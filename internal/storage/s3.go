package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/caseload-importer/internal/pkg/logger"
)

// S3API is the part of *s3.Client used here.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options locate the extract bucket.
type S3Options struct {
	Bucket     string
	Prefix     string
	Region     string
	Profile    string
	StagingDir string
}

// NewS3Client loads the default AWS credential chain, optionally pinned to
// a shared-config profile.
func NewS3Client(ctx context.Context, region, profile string) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// S3Source discovers daily extracts under a bucket prefix and downloads
// them into a staging directory.
type S3Source struct {
	client S3API
	opts   S3Options
}

func NewS3Source(client S3API, opts S3Options) *S3Source {
	return &S3Source{client: client, opts: opts}
}

// Discover lists non-empty CSV objects under the prefix, oldest first.
// Objects under processed/ are skipped.
func (s *S3Source) Discover(ctx context.Context) ([]Extract, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(s.opts.Prefix),
	})

	var out []Extract
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.opts.Bucket, s.opts.Prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size == nil || *obj.Size == 0 || !isCSV(key) {
				continue
			}
			if strings.HasPrefix(strings.TrimPrefix(key, s.opts.Prefix), "processed/") {
				continue
			}
			e := Extract{Key: key, Size: *obj.Size}
			if obj.LastModified != nil {
				e.LastModified = *obj.LastModified
			}
			out = append(out, e)
		}
	}
	sortExtracts(out)
	logger.Info("[S3Source] extracts discovered", "bucket", s.opts.Bucket, "prefix", s.opts.Prefix, "count", len(out))
	return out, nil
}

// StagedName is the staging file name for e: the full key with separators
// escaped, prefixed by the object's modification time. Extracts that share a
// base name under different prefixes, or a key re-uploaded later, never
// overwrite each other's staged copy.
func StagedName(e Extract) string {
	name := strings.ReplaceAll(strings.TrimPrefix(e.Key, "/"), "/", "__")
	if e.LastModified.IsZero() {
		return name
	}
	return e.LastModified.UTC().Format("20060102T150405Z") + "-" + name
}

// Fetch downloads e into the staging dir. A partially written file never
// appears under the final name.
func (s *S3Source) Fetch(ctx context.Context, e Extract) (string, error) {
	if err := os.MkdirAll(s.opts.StagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(e.Key),
	})
	if err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", s.opts.Bucket, e.Key, err)
	}
	defer out.Body.Close()

	dest := filepath.Join(s.opts.StagingDir, StagedName(e))
	tmp, err := os.CreateTemp(s.opts.StagingDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, out.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("download %s: %w", e.Key, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("stage %s: %w", e.Key, err)
	}
	logger.Info("[S3Source] extract downloaded", "key", e.Key, "bytes", n, "path", dest)
	return dest, nil
}
