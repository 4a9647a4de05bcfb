package csvstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParser_Checksum(t *testing.T) {
	content := "court,caseid_type\nMilimani,HCCC\n"
	path := writeCSV(t, content)

	sum, err := NewParser().Checksum(path)
	require.NoError(t, err)

	want := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(want[:]), sum)
}

func TestParser_ChecksumMissingFile(t *testing.T) {
	_, err := NewParser().Checksum(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestParser_ParseWithFiltering(t *testing.T) {
	content := "\ufeffCourt , CaseID_Type,caseid_no,outcome\n" +
		"Milimani,HCCC,1,Adjourned\n" +
		",,,\n" +
		"N/A,-,NULL,n/a\n" +
		",,,Heard\n" +
		"\n" +
		"\"Kibera, Law Courts\",CMCC,2,\"Ruling \"\"final\"\"\"\n"
	path := writeCSV(t, content)

	res, err := NewParser().ParseWithFiltering(context.Background(), path, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"court", "caseid_type", "caseid_no", "outcome"}, res.Headers)
	assert.Equal(t, 6, res.TotalRowsParsed)
	require.Len(t, res.ValidRows, 2)
	assert.Equal(t, 1, res.ValidRows[0].Number)
	assert.Equal(t, "HCCC", res.ValidRows[0].Fields["caseid_type"])
	assert.Equal(t, 6, res.ValidRows[1].Number)
	assert.Equal(t, "Kibera, Law Courts", res.ValidRows[1].Fields["court"])
	assert.Equal(t, `Ruling "final"`, res.ValidRows[1].Fields["outcome"])

	assert.Equal(t, []int{2, 3, 4, 5}, res.EmptyRowStats.EmptyRowNumbers)
	assert.Equal(t, []int{4}, res.EmptyRowStats.MissingCriticalRowNumbers)
	assert.Equal(t, res.TotalRowsParsed, len(res.ValidRows)+res.EmptyRowStats.TotalEmptyRows)
	assert.False(t, res.Truncated)
}

func TestParser_SparseRow(t *testing.T) {
	path := writeCSV(t, "court,caseid_type,caseid_no,judge_1\nMilimani,HCCC,1,\n")

	res, err := NewParser().ParseWithFiltering(context.Background(), path, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.ValidRows, 1)

	_, ok := res.ValidRows[0].Fields["judge_1"]
	assert.False(t, ok, "empty cells are not stored")
}

func TestParser_MultilineQuotedField(t *testing.T) {
	path := writeCSV(t, "court,caseid_no,other_details\r\nMilimani,1,\"first\r\nsecond\"\r\nKibera,2,x\r\n")

	res, err := NewParser().ParseWithFiltering(context.Background(), path, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.ValidRows, 2)
	assert.Equal(t, "first\nsecond", res.ValidRows[0].Fields["other_details"])
	assert.Equal(t, 1, res.ValidRows[0].Number)
	assert.Equal(t, 3, res.ValidRows[1].Number, "numbered by the line the record starts on")
}

func TestParser_RowNumbersFollowPhysicalLines(t *testing.T) {
	path := writeCSV(t, "court,caseid_no,other_details\n"+
		"Milimani,1,\"spans\nthree\nlines\"\n"+
		",,\n"+
		"Kibera,2,x\n")

	res, err := NewParser().ParseWithFiltering(context.Background(), path, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.ValidRows, 2)
	assert.Equal(t, 1, res.ValidRows[0].Number)
	assert.Equal(t, 5, res.ValidRows[1].Number)
	assert.Equal(t, []int{4}, res.EmptyRowStats.EmptyRowNumbers)
}

func TestParser_DropsSentinelCells(t *testing.T) {
	path := writeCSV(t, "court,caseid_type,caseid_no,judge_1,judge_2,custody,outcome\n"+
		"Milimani,HCCC,1,\"Kendagor, Caroline J\",N/A,-, NULL \n")

	res, err := NewParser().ParseWithFiltering(context.Background(), path, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.ValidRows, 1)

	fields := res.ValidRows[0].Fields
	assert.Equal(t, Row{"court": "Milimani", "caseid_type": "HCCC", "caseid_no": "1", "judge_1": "Kendagor, Caroline J"}, fields)
}

func TestParser_Errors(t *testing.T) {
	ctx := context.Background()
	p := NewParser()

	_, err := p.ParseWithFiltering(ctx, writeCSV(t, ""), DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = p.ParseWithFiltering(ctx, writeCSV(t, "\n  \n"), DefaultConfig())
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = p.ParseWithFiltering(ctx, filepath.Join(t.TempDir(), "missing.csv"), DefaultConfig())
	assert.Error(t, err)
}

func TestParser_HeaderOnly(t *testing.T) {
	res, err := NewParser().ParseWithFiltering(context.Background(), writeCSV(t, "court,caseid_no\n"), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalRowsParsed)
	assert.Empty(t, res.ValidRows)
}

func TestParser_Truncation(t *testing.T) {
	var b strings.Builder
	b.WriteString("court,caseid_type,caseid_no\n")
	for i := 1; i <= MaxPhysicalLines+5; i++ {
		fmt.Fprintf(&b, "Milimani,HCCC,%d\n", i)
	}

	res, err := NewParser().ParseWithFiltering(context.Background(), writeCSV(t, b.String()), DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, MaxPhysicalLines, res.TotalRowsParsed)
	assert.Len(t, res.ValidRows, MaxPhysicalLines)
}

func TestParser_ExactlyAtCeilingIsNotTruncated(t *testing.T) {
	var b strings.Builder
	b.WriteString("court,caseid_type,caseid_no\n")
	for i := 1; i <= MaxPhysicalLines; i++ {
		fmt.Fprintf(&b, "Milimani,HCCC,%d\n", i)
	}

	res, err := NewParser().ParseWithFiltering(context.Background(), writeCSV(t, b.String()), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Equal(t, MaxPhysicalLines, res.TotalRowsParsed)
}

func TestParser_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().ParseWithFiltering(ctx, writeCSV(t, "court\nMilimani\n"), DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader_Next(t *testing.T) {
	r, err := NewReader(strings.NewReader("a,b\n1,2\n3,4"), ',')
	require.NoError(t, err)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Record{Number: 1, Fields: Row{"a": "1", "b": "2"}}, rec)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Number)
	assert.Equal(t, "4", rec.Fields["b"])

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Close())
}
