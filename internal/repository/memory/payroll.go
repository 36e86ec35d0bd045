package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

type payrollRepository struct {
	s *Store
}

func NewPayrollRepository(s *Store) payroll.PayrollRepository {
	return &payrollRepository{s: s}
}

// AddComponent seeds a recurring component.
func (s *Store) AddComponent(c payroll.Component) payroll.Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = newID()
	}
	s.components[c.EmployeeID] = append(s.components[c.EmployeeID], c)
	return c
}

// AddItem seeds a one-off item.
func (s *Store) AddItem(it payroll.Item) payroll.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == "" {
		it.ID = newID()
	}
	s.items = append(s.items, it)
	return it
}

// ========== PERIODS ==========

func (r *payrollRepository) CreatePeriod(ctx context.Context, p payroll.Period) (payroll.Period, error) {
	p.ID = newID()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	err := r.s.write(ctx, op{
		check: func() error {
			for _, existing := range r.s.periods {
				if existing.ReferenceMonth == p.ReferenceMonth && existing.ReferenceYear == p.ReferenceYear {
					return payroll.ErrPeriodAlreadyExists
				}
			}
			return nil
		},
		apply: func() { r.s.periods[p.ID] = p },
	})
	if err != nil {
		return payroll.Period{}, err
	}
	return p, nil
}

func (r *payrollRepository) GetPeriodByID(ctx context.Context, id string) (payroll.Period, error) {
	if err := r.s.fault("GetPeriodByID"); err != nil {
		return payroll.Period{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.periods[id]
	if !ok {
		return payroll.Period{}, payroll.ErrPeriodNotFound
	}
	return p, nil
}

func (r *payrollRepository) GetPeriodByMonthYear(ctx context.Context, month, year int) (payroll.Period, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.periods {
		if p.ReferenceMonth == month && p.ReferenceYear == year {
			return p, nil
		}
	}
	return payroll.Period{}, payroll.ErrPeriodNotFound
}

func (r *payrollRepository) ListPeriodsByStatus(ctx context.Context, status payroll.PeriodStatus) ([]payroll.Period, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []payroll.Period
	for _, p := range r.s.periods {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start().Before(out[j].Start()) })
	return out, nil
}

func (r *payrollRepository) TransitionPeriod(ctx context.Context, id string, from, to payroll.PeriodStatus, closedBy *string, closedAt *time.Time) (payroll.Period, error) {
	current, err := r.GetPeriodByID(ctx, id)
	if err != nil {
		return payroll.Period{}, err
	}
	if current.Status != from {
		return payroll.Period{}, payroll.ErrPeriodStateConflict
	}

	next := current
	next.Status = to
	next.ClosedBy = closedBy
	next.ClosedAt = closedAt
	next.UpdatedAt = r.s.now()

	err = r.s.write(ctx, op{
		check: func() error {
			if r.s.periods[id].Status != from {
				return payroll.ErrPeriodStateConflict
			}
			return nil
		},
		apply: func() { r.s.periods[id] = next },
	})
	if err != nil {
		return payroll.Period{}, err
	}
	return next, nil
}

func (r *payrollRepository) IsMonthClosed(ctx context.Context, month, year int) (bool, error) {
	p, err := r.GetPeriodByMonthYear(ctx, month, year)
	if errors.Is(err, payroll.ErrPeriodNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Status == payroll.PeriodStatusClosed, nil
}

// ========== COMPONENTS & ITEMS ==========

func (r *payrollRepository) ListEffectiveComponents(ctx context.Context, employeeID string, start, end time.Time) ([]payroll.Component, error) {
	if err := r.s.fault("ListEffectiveComponents"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []payroll.Component
	for _, c := range r.s.components[employeeID] {
		if c.EffectiveBetween(start, end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *payrollRepository) ListItems(ctx context.Context, periodID, employeeID string) ([]payroll.Item, error) {
	if err := r.s.fault("ListItems"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []payroll.Item
	for _, it := range r.s.items {
		if it.PeriodID == periodID && it.EmployeeID == employeeID {
			out = append(out, it)
		}
	}
	return out, nil
}

// ========== ENTRIES ==========

func (r *payrollRepository) CreateEntries(ctx context.Context, entries []payroll.Entry) error {
	if err := r.s.fault("CreateEntries"); err != nil {
		return err
	}
	now := r.s.now()
	batch := make([]payroll.Entry, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			e.ID = newID()
		}
		e.CreatedAt = now
		batch[i] = e
	}
	return r.s.write(ctx, op{apply: func() {
		r.s.entries = append(r.s.entries, batch...)
	}})
}

func (r *payrollRepository) ListEntries(ctx context.Context, filter payroll.EntryFilter) ([]payroll.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []payroll.Entry
	for _, e := range r.s.entries {
		if e.PeriodID != filter.PeriodID {
			continue
		}
		if filter.EmployeeID != nil && e.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Code != nil && e.Code != *filter.Code {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

func (r *payrollRepository) CountEntries(ctx context.Context, periodID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, e := range r.s.entries {
		if e.PeriodID == periodID {
			n++
		}
	}
	return n, nil
}

// ========== SLIPS ==========

func (r *payrollRepository) CreateSlip(ctx context.Context, slip payroll.Slip) (payroll.Slip, error) {
	if err := r.s.fault("CreateSlip"); err != nil {
		return payroll.Slip{}, err
	}
	slip.ID = newID()
	slip.CreatedAt = r.s.now()
	key := slipKey{slip.PeriodID, slip.EmployeeID}
	err := r.s.write(ctx, op{
		check: func() error {
			if _, exists := r.s.slips[key]; exists {
				return payroll.ErrDuplicateCalculation
			}
			return nil
		},
		apply: func() { r.s.slips[key] = slip },
	})
	if err != nil {
		return payroll.Slip{}, err
	}
	return slip, nil
}

func (r *payrollRepository) GetSlip(ctx context.Context, periodID, employeeID string) (payroll.Slip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	slip, ok := r.s.slips[slipKey{periodID, employeeID}]
	if !ok {
		return payroll.Slip{}, payroll.ErrSlipNotFound
	}
	return slip, nil
}

func (r *payrollRepository) ListSlips(ctx context.Context, periodID string) ([]payroll.Slip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []payroll.Slip
	for k, slip := range r.s.slips {
		if k.periodID == periodID {
			out = append(out, slip)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (r *payrollRepository) FinalizeSlips(ctx context.Context, periodID string, finalizedAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, slip := range r.s.slips {
		if k.periodID != periodID || slip.Status != payroll.SlipStatusDraft {
			continue
		}
		at := finalizedAt
		slip.Status = payroll.SlipStatusFinal
		slip.FinalizedAt = &at
		r.s.slips[k] = slip
		n++
	}
	return n, nil
}

// ========== RUNS ==========

func (r *payrollRepository) UpsertRun(ctx context.Context, run payroll.Run) error {
	run.UpdatedAt = r.s.now()
	key := slipKey{run.PeriodID, run.EmployeeID}
	return r.s.write(ctx, op{apply: func() {
		if prev, ok := r.s.runs[key]; ok && run.Attempts == 0 {
			run.Attempts = prev.Attempts
		}
		r.s.runs[key] = run
	}})
}

func (r *payrollRepository) ListRuns(ctx context.Context, periodID string) ([]payroll.Run, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []payroll.Run
	for k, run := range r.s.runs {
		if k.periodID == periodID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// PurgePeriod implements payroll.PayrollRepository.
func (r *payrollRepository) PurgePeriod(ctx context.Context, periodID string) error {
	return r.s.write(ctx, op{apply: func() {
		kept := r.s.entries[:0]
		for _, e := range r.s.entries {
			if e.PeriodID != periodID {
				kept = append(kept, e)
			}
		}
		r.s.entries = kept
		for k := range r.s.slips {
			if k.periodID == periodID {
				delete(r.s.slips, k)
			}
		}
		for k := range r.s.runs {
			if k.periodID == periodID {
				delete(r.s.runs, k)
			}
		}
	}})
}
