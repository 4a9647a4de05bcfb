package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importer"
)

type fakeObject struct {
	body     string
	modified time.Time
}

// fakeS3 serves objects from memory, two keys per page.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	puts    map[string][]byte
	listErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject), puts: make(map[string][]byte)}
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sortStrings(keys)

	out := &s3.ListObjectsV2Output{}
	for i, k := range keys {
		if i == 2 {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(keys[1])
			break
		}
		o := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(o.body))),
			LastModified: aws.Time(o.modified),
		})
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(o.body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, in.Body); err != nil {
		return nil, err
	}
	f.puts[aws.ToString(in.Key)] = buf.Bytes()
	return &s3.PutObjectOutput{}, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func TestS3Source_Discover(t *testing.T) {
	f := newFakeS3()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f.objects["extracts/2025-03-02.csv"] = fakeObject{"court\nx\n", day.Add(24 * time.Hour)}
	f.objects["extracts/2025-03-01.CSV"] = fakeObject{"court\nx\n", day}
	f.objects["extracts/empty.csv"] = fakeObject{"", day}
	f.objects["extracts/notes.txt"] = fakeObject{"hello", day}
	f.objects["extracts/processed/2025-02-28.csv"] = fakeObject{"court\nx\n", day}
	f.objects["other/2025-03-01.csv"] = fakeObject{"court\nx\n", day}

	src := NewS3Source(f, S3Options{Bucket: "courts", Prefix: "extracts/"})
	got, err := src.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "extracts/2025-03-01.CSV", got[0].Key)
	assert.Equal(t, "extracts/2025-03-02.csv", got[1].Key)
	assert.Equal(t, int64(8), got[0].Size)
}

func TestS3Source_DiscoverError(t *testing.T) {
	f := newFakeS3()
	f.listErr = errors.New("AccessDenied")
	_, err := NewS3Source(f, S3Options{Bucket: "courts"}).Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestS3Source_Fetch(t *testing.T) {
	f := newFakeS3()
	f.objects["extracts/2025-03-01.csv"] = fakeObject{body: "court,caseid_type\nMilimani,HCCC\n"}
	staging := filepath.Join(t.TempDir(), "staging")

	src := NewS3Source(f, S3Options{Bucket: "courts", Prefix: "extracts/", StagingDir: staging})
	path, err := src.Fetch(context.Background(), Extract{Key: "extracts/2025-03-01.csv"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(staging, "extracts__2025-03-01.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "court,caseid_type\nMilimani,HCCC\n", string(data))

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = src.Fetch(context.Background(), Extract{Key: "extracts/missing.csv"})
	assert.Error(t, err)
}

func TestS3Source_FetchKeepsSameNamedExtractsApart(t *testing.T) {
	f := newFakeS3()
	f.objects["courts/nairobi/daily.csv"] = fakeObject{body: "court\nMilimani\n"}
	f.objects["courts/mombasa/daily.csv"] = fakeObject{body: "court\nMombasa\n"}
	staging := t.TempDir()
	src := NewS3Source(f, S3Options{Bucket: "courts", StagingDir: staging})

	monday := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	first, err := src.Fetch(context.Background(), Extract{Key: "courts/nairobi/daily.csv", LastModified: monday})
	require.NoError(t, err)
	second, err := src.Fetch(context.Background(), Extract{Key: "courts/mombasa/daily.csv", LastModified: monday})
	require.NoError(t, err)
	// The same key uploaded again the next day.
	third, err := src.Fetch(context.Background(), Extract{Key: "courts/nairobi/daily.csv", LastModified: monday.AddDate(0, 0, 1)})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(staging, "20250303T060000Z-courts__nairobi__daily.csv"), first)
	assert.NotEqual(t, first, second)
	assert.NotEqual(t, first, third)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "court\nMilimani\n", string(data), "earlier staged file is untouched")
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("court\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("court\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.csv"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "b.csv"), old, old))

	src := NewLocalSource(dir)
	got, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.csv", got[0].Key, "oldest first")
	assert.Equal(t, "a.csv", got[1].Key)

	path, err := src.Fetch(context.Background(), got[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.csv"), path)
}

func sampleReport() *importer.Report {
	return &importer.Report{
		BatchID:  "b1",
		Filename: "daily.csv",
		Result: &importer.ProcessResult{
			BatchID:           "b1",
			Status:            domain.BatchCompleted,
			TotalRecords:      3,
			SuccessfulRecords: 3,
		},
		GeneratedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestS3ReportSink(t *testing.T) {
	f := newFakeS3()
	sink := NewS3ReportSink(f, "courts", "reports/")
	require.NoError(t, sink.WriteReport(context.Background(), sampleReport()))

	raw, ok := f.puts["reports/b1.json"]
	require.True(t, ok)
	var got importer.Report
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "daily.csv", got.Filename)
	assert.Equal(t, domain.BatchCompleted, got.Result.Status)
}

func TestFileReportSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, NewFileReportSink(dir).WriteReport(context.Background(), sampleReport()))

	raw, err := os.ReadFile(filepath.Join(dir, "b1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"successfulRecords": 3`)
}
