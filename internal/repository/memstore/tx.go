package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/caseload-importer/internal/domain"
)

// Tx writes straight into the store and keeps an undo log; rolling back
// replays the log backwards.
type Tx struct {
	s          *Store
	undo       []func()
	savepoints map[string]int
	done       bool
}

func (t *Tx) record(f func()) { t.undo = append(t.undo, f) }

func (t *Tx) unwind(to int) {
	for i := len(t.undo) - 1; i >= to; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:to]
}

func (t *Tx) check() error {
	if t.done {
		return ErrTxDone
	}
	return nil
}

func (t *Tx) Savepoint(_ context.Context, name string) error {
	if err := t.check(); err != nil {
		return err
	}
	t.savepoints[name] = len(t.undo)
	return nil
}

func (t *Tx) RollbackTo(_ context.Context, name string) error {
	if err := t.check(); err != nil {
		return err
	}
	at, ok := t.savepoints[name]
	if !ok {
		return fmt.Errorf("memstore: savepoint %q does not exist", name)
	}
	t.unwind(at)
	return nil
}

func (t *Tx) Release(_ context.Context, name string) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.savepoints[name]; !ok {
		return fmt.Errorf("memstore: savepoint %q does not exist", name)
	}
	delete(t.savepoints, name)
	return nil
}

func (t *Tx) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	t.undo = nil
	t.s.unlockCases()
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.unwind(0)
	t.done = true
	t.s.unlockCases()
	return nil
}

func (t *Tx) FindCourt(_ context.Context, normalizedName, code string) (*domain.Court, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	var byCode *domain.Court
	for _, c := range t.s.courts {
		if c.NormalizedName == normalizedName {
			cp := *c
			return &cp, nil
		}
		if code != "" && c.CourtCode == code {
			byCode = c
		}
	}
	if byCode != nil {
		cp := *byCode
		return &cp, nil
	}
	return nil, nil
}

func (t *Tx) ListCourts(_ context.Context) ([]domain.Court, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	out := make([]domain.Court, 0, len(t.s.courts))
	for _, c := range t.s.courts {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedName < out[j].NormalizedName })
	return out, nil
}

func (t *Tx) InsertCourt(_ context.Context, c *domain.Court) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	for _, e := range t.s.courts {
		if e.NormalizedName == c.NormalizedName || e.CourtCode == c.CourtCode {
			return false, nil
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t.s.now().UTC()
	}
	cp := *c
	t.s.courts[c.ID] = &cp
	t.record(func() { delete(t.s.courts, cp.ID) })
	return true, nil
}

func (t *Tx) FindJudge(_ context.Context, normalizedName, firstName, lastName string) (*domain.Judge, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	var byPair *domain.Judge
	for _, j := range t.s.judges {
		if j.NormalizedName == normalizedName {
			cp := *j
			return &cp, nil
		}
		if firstName != "" && lastName != "" && j.FirstName == firstName && j.LastName == lastName {
			byPair = j
		}
	}
	if byPair != nil {
		cp := *byPair
		return &cp, nil
	}
	return nil, nil
}

func (t *Tx) InsertJudge(_ context.Context, j *domain.Judge) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	for _, e := range t.s.judges {
		if e.NormalizedName == j.NormalizedName {
			return false, nil
		}
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = t.s.now().UTC()
	}
	cp := *j
	t.s.judges[j.ID] = &cp
	t.record(func() { delete(t.s.judges, cp.ID) })
	return true, nil
}

func (t *Tx) FindCaseType(_ context.Context, normalizedName, code string) (*domain.CaseType, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	var byCode *domain.CaseType
	for _, ct := range t.s.caseTypes {
		if ct.NormalizedName == normalizedName {
			cp := *ct
			return &cp, nil
		}
		if code != "" && ct.CaseTypeCode == code {
			byCode = ct
		}
	}
	if byCode != nil {
		cp := *byCode
		return &cp, nil
	}
	return nil, nil
}

func (t *Tx) InsertCaseType(_ context.Context, ct *domain.CaseType) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	for _, e := range t.s.caseTypes {
		if e.NormalizedName == ct.NormalizedName || e.CaseTypeCode == ct.CaseTypeCode {
			return false, nil
		}
	}
	if ct.CreatedAt.IsZero() {
		ct.CreatedAt = t.s.now().UTC()
	}
	cp := *ct
	t.s.caseTypes[ct.ID] = &cp
	t.record(func() { delete(t.s.caseTypes, cp.ID) })
	return true, nil
}

func (t *Tx) FindCase(_ context.Context, caseNumber, courtName string) (*domain.Case, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	id, ok := t.s.caseIndex[caseKey(caseNumber, courtName)]
	if !ok {
		return nil, nil
	}
	cp := *t.s.cases[id]
	return &cp, nil
}

func (t *Tx) InsertCase(_ context.Context, c *domain.Case) error {
	if err := t.check(); err != nil {
		return err
	}
	k := caseKey(c.CaseNumber, c.CourtName)
	if _, ok := t.s.caseIndex[k]; ok {
		return fmt.Errorf("insert case: duplicate key value violates unique constraint (case_number, court_name)=(%s, %s)", c.CaseNumber, c.CourtName)
	}
	cp := *c
	t.s.cases[c.ID] = &cp
	t.s.caseIndex[k] = c.ID
	t.record(func() {
		delete(t.s.cases, cp.ID)
		delete(t.s.caseIndex, k)
	})
	return nil
}

func (t *Tx) TouchCase(_ context.Context, caseID string, hasLegalRep bool, lastActivity time.Time) error {
	if err := t.check(); err != nil {
		return err
	}
	c, ok := t.s.cases[caseID]
	if !ok {
		return fmt.Errorf("update case %s: no rows affected", caseID)
	}
	prev := *c
	c.TotalActivities++
	c.HasLegalRepresentation = hasLegalRep
	c.LastActivityDate = lastActivity
	c.UpdatedAt = t.s.now().UTC()
	t.record(func() { *t.s.cases[caseID] = prev })
	return nil
}

func (t *Tx) AssignJudge(_ context.Context, a domain.CaseJudgeAssignment) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.s.cases[a.CaseID]; !ok {
		return fmt.Errorf("assign judge: insert violates foreign key constraint on case_id %s", a.CaseID)
	}
	if _, ok := t.s.judges[a.JudgeID]; !ok {
		return fmt.Errorf("assign judge: insert violates foreign key constraint on judge_id %s", a.JudgeID)
	}
	k := a.CaseID + "|" + a.JudgeID
	if _, ok := t.s.assignments[k]; ok {
		return nil
	}
	t.s.assignments[k] = a
	t.record(func() { delete(t.s.assignments, k) })
	return nil
}

func (t *Tx) ActivityExists(_ context.Context, key domain.ActivityKey) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	_, ok := t.s.activityIdx[activityKey(key)]
	return ok, nil
}

func (t *Tx) InsertActivity(_ context.Context, a *domain.CaseActivity) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	if _, ok := t.s.cases[a.CaseID]; !ok {
		return false, fmt.Errorf("insert activity: violates foreign key constraint on case_id %s", a.CaseID)
	}
	k := activityKey(a.Key())
	if _, ok := t.s.activityIdx[k]; ok {
		return false, nil
	}
	cp := *a
	t.s.activities[a.ID] = &cp
	t.s.activityIdx[k] = a.ID
	t.record(func() {
		delete(t.s.activities, cp.ID)
		delete(t.s.activityIdx, k)
	})
	return true, nil
}
