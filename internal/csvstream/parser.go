package csvstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ignite/caseload-importer/internal/pkg/logger"
)

// CriticalFields identify a case. A row with none of them cannot be imported.
var CriticalFields = []string{"caseid_type", "caseid_no", "court"}

// Config tunes a parse pass.
type Config struct {
	EmptyRows EmptyRowConfig
	// CheckCritical filters rows that are missing every critical field.
	CheckCritical bool
}

// DefaultConfig is the configuration used by the importer.
func DefaultConfig() Config {
	return Config{EmptyRows: DefaultEmptyRowConfig(), CheckCritical: true}
}

// ParseResult is the outcome of one filtered parse pass.
type ParseResult struct {
	ValidRows       []Record
	EmptyRowStats   EmptyRowStats
	TotalRowsParsed int
	Headers         []string
	Truncated       bool
}

// Parser reads extract files from disk.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser { return &Parser{} }

// Checksum returns the lower-case hex SHA-256 of the file contents.
func (p *Parser) Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ParseWithFiltering reads every data row of path, dropping empty rows and
// rows without any critical field. Sentinel cells are removed from the rows
// that are kept. The context is checked between rows.
func (p *Parser) ParseWithFiltering(ctx context.Context, path string, cfg Config) (*ParseResult, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return p.parse(ctx, r, cfg)
}

// ParseReader is ParseWithFiltering over an already opened Reader.
func (p *Parser) ParseReader(ctx context.Context, r *Reader, cfg Config) (*ParseResult, error) {
	return p.parse(ctx, r, cfg)
}

func (p *Parser) parse(ctx context.Context, r *Reader, cfg Config) (*ParseResult, error) {
	detector := NewEmptyRowDetector(cfg.EmptyRows)
	res := &ParseResult{Headers: r.Header()}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", res.TotalRowsParsed+1, err)
		}
		res.TotalRowsParsed++

		if detector.IsEmptyRow(rec.Fields, rec.Number) {
			continue
		}
		if cfg.CheckCritical && detector.MissingCritical(rec.Fields, rec.Number, CriticalFields) {
			continue
		}
		rec.Fields = detector.Compact(rec.Fields)
		res.ValidRows = append(res.ValidRows, rec)
	}

	res.EmptyRowStats = detector.Stats()
	res.Truncated = r.Truncated()
	if res.Truncated {
		logger.Warn("[CSVParser] row ceiling reached, remaining lines ignored",
			"max_lines", MaxPhysicalLines, "rows_parsed", res.TotalRowsParsed)
	}
	return res, nil
}
