package masterdata

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/ignite/caseload-importer/internal/domain"
)

type entityKind string

const (
	kindCourt    entityKind = "court"
	kindJudge    entityKind = "judge"
	kindCaseType entityKind = "case_type"
)

type journalEntry struct {
	cacheKey string
	activity uint64
}

// Mark is a point a Tracker can be reverted to.
type Mark struct {
	stats   domain.MasterDataStats
	journal int
}

// Tracker is the per-run state of master-data resolution: statistics, a cache
// of resolved entities and the set of activity keys already written in this
// run. Cache entries are only valid while the writes that produced them are;
// callers Mark before a unit of work and Revert when they roll it back.
// A Tracker belongs to one import run and is not safe for concurrent use.
type Tracker struct {
	stats    domain.MasterDataStats
	resolved map[string]Result
	seen     map[uint64]struct{}
	journal  []journalEntry
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		resolved: make(map[string]Result),
		seen:     make(map[uint64]struct{}),
	}
}

// Stats returns the counters accumulated so far.
func (t *Tracker) Stats() domain.MasterDataStats { return t.stats }

// Mark records the current state.
func (t *Tracker) Mark() Mark {
	return Mark{stats: t.stats, journal: len(t.journal)}
}

// Revert forgets everything recorded after m.
func (t *Tracker) Revert(m Mark) {
	for i := len(t.journal) - 1; i >= m.journal; i-- {
		e := t.journal[i]
		if e.cacheKey != "" {
			delete(t.resolved, e.cacheKey)
		} else {
			delete(t.seen, e.activity)
		}
	}
	t.journal = t.journal[:m.journal]
	t.stats = m.stats
}

// Commit makes everything recorded so far permanent. Marks taken before
// Commit must not be reverted to afterwards.
func (t *Tracker) Commit() {
	t.journal = t.journal[:0]
}

func cacheKey(kind entityKind, key string) string {
	return string(kind) + ":" + key
}

func (t *Tracker) lookup(kind entityKind, key string) (Result, bool) {
	r, ok := t.resolved[cacheKey(kind, key)]
	return r, ok
}

func (t *Tracker) remember(kind entityKind, key string, r Result) {
	k := cacheKey(kind, key)
	if _, ok := t.resolved[k]; ok {
		return
	}
	t.resolved[k] = r
	t.journal = append(t.journal, journalEntry{cacheKey: k})

	switch kind {
	case kindCourt:
		if r.IsNew {
			t.stats.CourtsCreated++
		} else {
			t.stats.CourtsExisting++
		}
	case kindJudge:
		if r.IsNew {
			t.stats.JudgesCreated++
		} else {
			t.stats.JudgesExisting++
		}
	case kindCaseType:
		if r.IsNew {
			t.stats.CaseTypesCreated++
		} else {
			t.stats.CaseTypesExisting++
		}
	}
}

func activityHash(k domain.ActivityKey) uint64 {
	return xxh3.HashString(fmt.Sprintf("%s|%s|%s|%s",
		k.CaseID, k.ActivityDate.Format("2006-01-02"), k.ActivityType, k.PrimaryJudgeID))
}

// SeenActivity reports whether k was recorded in this run.
func (t *Tracker) SeenActivity(k domain.ActivityKey) bool {
	_, ok := t.seen[activityHash(k)]
	return ok
}

// RecordActivity adds k to the run's activity set.
func (t *Tracker) RecordActivity(k domain.ActivityKey) {
	h := activityHash(k)
	if _, ok := t.seen[h]; ok {
		return
	}
	t.seen[h] = struct{}{}
	t.journal = append(t.journal, journalEntry{activity: h})
}
