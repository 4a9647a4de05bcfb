package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/caseload-importer/internal/importer"
)

func encodeReport(r *importer.Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}
	return data, nil
}

// S3ReportSink archives reports as <prefix><batchID>.json.
type S3ReportSink struct {
	client S3API
	bucket string
	prefix string
}

func NewS3ReportSink(client S3API, bucket, prefix string) *S3ReportSink {
	return &S3ReportSink{client: client, bucket: bucket, prefix: prefix}
}

// ReportKey is the object key of a batch's report.
func (s *S3ReportSink) ReportKey(batchID string) string { return s.prefix + batchID + ".json" }

func (s *S3ReportSink) WriteReport(ctx context.Context, r *importer.Report) error {
	data, err := encodeReport(r)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.ReportKey(r.BatchID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting report to S3: %w", err)
	}
	return nil
}

// FileReportSink writes reports into a local directory.
type FileReportSink struct {
	dir string
}

func NewFileReportSink(dir string) *FileReportSink { return &FileReportSink{dir: dir} }

func (s *FileReportSink) WriteReport(_ context.Context, r *importer.Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := encodeReport(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, r.BatchID+".json"), data, 0o644)
}
