package csvstream

import "strings"

// EmptyRowConfig controls what counts as "no data".
type EmptyRowConfig struct {
	TrimWhitespace  bool
	TreatNilAsEmpty bool
	Sentinels       []string
}

// DefaultSentinels are cell values treated as empty.
var DefaultSentinels = []string{"", "N/A", "NULL", "null", "-", "n/a"}

// DefaultEmptyRowConfig returns the detector configuration used for extracts.
func DefaultEmptyRowConfig() EmptyRowConfig {
	return EmptyRowConfig{
		TrimWhitespace:  true,
		TreatNilAsEmpty: true,
		Sentinels:       append([]string(nil), DefaultSentinels...),
	}
}

// EmptyRowStats accumulates over one parse pass.
type EmptyRowStats struct {
	TotalEmptyRows            int   `json:"total_empty_rows"`
	EmptyRowNumbers           []int `json:"empty_row_numbers,omitempty"`
	MissingCriticalRows       int   `json:"missing_critical_rows"`
	MissingCriticalRowNumbers []int `json:"missing_critical_row_numbers,omitempty"`
}

// EmptyRowDetector classifies cells and rows as empty and keeps running
// statistics. It holds per-file state: use a fresh detector (or Reset) for
// every file. Not safe for concurrent use.
type EmptyRowDetector struct {
	cfg       EmptyRowConfig
	sentinels map[string]struct{}
	stats     EmptyRowStats
}

// NewEmptyRowDetector builds a detector from cfg.
func NewEmptyRowDetector(cfg EmptyRowConfig) *EmptyRowDetector {
	d := &EmptyRowDetector{cfg: cfg, sentinels: make(map[string]struct{}, len(cfg.Sentinels))}
	for _, s := range cfg.Sentinels {
		if cfg.TrimWhitespace {
			s = strings.TrimSpace(s)
		}
		d.sentinels[s] = struct{}{}
	}
	return d
}

// IsEmptyField applies the configured rules to one cell. A nil value stands
// for a missing cell.
func (d *EmptyRowDetector) IsEmptyField(value *string) bool {
	if value == nil {
		return d.cfg.TreatNilAsEmpty
	}
	return d.IsEmptyValue(*value)
}

// IsEmptyValue is IsEmptyField for a present cell.
func (d *EmptyRowDetector) IsEmptyValue(v string) bool {
	if d.cfg.TrimWhitespace {
		v = strings.TrimSpace(v)
	}
	if v == "" {
		return true
	}
	_, ok := d.sentinels[v]
	return ok
}

// IsEmptyRow reports whether every cell of row is empty (or the row has no
// cells). Empty rows are recorded under rowNumber in the statistics.
func (d *EmptyRowDetector) IsEmptyRow(row Row, rowNumber int) bool {
	for _, v := range row {
		if !d.IsEmptyValue(v) {
			return false
		}
	}
	d.stats.TotalEmptyRows++
	d.stats.EmptyRowNumbers = append(d.stats.EmptyRowNumbers, rowNumber)
	return true
}

// MissingCritical reports whether row lacks every one of the critical
// identifying fields. Such rows are recorded and counted as empty.
func (d *EmptyRowDetector) MissingCritical(row Row, rowNumber int, critical []string) bool {
	for _, name := range critical {
		if v, ok := row[name]; ok && !d.IsEmptyValue(v) {
			return false
		}
	}
	d.stats.MissingCriticalRows++
	d.stats.MissingCriticalRowNumbers = append(d.stats.MissingCriticalRowNumbers, rowNumber)
	d.stats.TotalEmptyRows++
	d.stats.EmptyRowNumbers = append(d.stats.EmptyRowNumbers, rowNumber)
	return true
}

// Compact removes the cells of row that are empty under the current rules,
// so sentinel values such as N/A never reach validation.
func (d *EmptyRowDetector) Compact(row Row) Row {
	for k, v := range row {
		if d.IsEmptyValue(v) {
			delete(row, k)
		}
	}
	return row
}

// Stats returns a copy of the running statistics.
func (d *EmptyRowDetector) Stats() EmptyRowStats {
	s := d.stats
	s.EmptyRowNumbers = append([]int(nil), d.stats.EmptyRowNumbers...)
	s.MissingCriticalRowNumbers = append([]int(nil), d.stats.MissingCriticalRowNumbers...)
	return s
}

// Reset clears the statistics.
func (d *EmptyRowDetector) Reset() {
	d.stats = EmptyRowStats{}
}
