package memory

import (
	"context"
	"sort"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
)

type hoursBankRepository struct {
	s *Store
}

func NewHoursBankRepository(s *Store) hoursbank.HoursBankRepository {
	return &hoursBankRepository{s: s}
}

// LockEmployee implements hoursbank.HoursBankRepository. Outside a
// transaction the lock is taken and released immediately.
func (r *hoursBankRepository) LockEmployee(ctx context.Context, employeeID string) error {
	m := r.s.employeeLock(employeeID)
	tx, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		m.Lock()
		m.Unlock()
		return nil
	}

	tx.mu.Lock()
	held := tx.held[employeeID]
	tx.mu.Unlock()
	if held {
		return nil
	}

	m.Lock()
	tx.mu.Lock()
	tx.held[employeeID] = true
	tx.release = append(tx.release, m.Unlock)
	tx.mu.Unlock()
	return nil
}

// Get implements hoursbank.HoursBankRepository.
func (r *hoursBankRepository) Get(ctx context.Context, employeeID string, month, year int) (hoursbank.HoursBank, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.banks[bankKey{employeeID, month, year}]
	if !ok {
		return hoursbank.HoursBank{}, hoursbank.ErrHoursBankNotFound
	}
	return row, nil
}

// ListFrom implements hoursbank.HoursBankRepository.
func (r *hoursBankRepository) ListFrom(ctx context.Context, employeeID string, month, year int) ([]hoursbank.HoursBank, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	from := hoursbank.Index(month, year)
	var out []hoursbank.HoursBank
	for k, row := range r.s.banks {
		if k.employeeID == employeeID && hoursbank.Index(k.month, k.year) >= from {
			out = append(out, row)
		}
	}
	sortBanks(out)
	return out, nil
}

// ListByYear implements hoursbank.HoursBankRepository.
func (r *hoursBankRepository) ListByYear(ctx context.Context, employeeID string, year int) ([]hoursbank.HoursBank, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []hoursbank.HoursBank
	for k, row := range r.s.banks {
		if k.employeeID == employeeID && k.year == year {
			out = append(out, row)
		}
	}
	sortBanks(out)
	return out, nil
}

// Upsert implements hoursbank.HoursBankRepository.
func (r *hoursBankRepository) Upsert(ctx context.Context, row hoursbank.HoursBank) (hoursbank.HoursBank, error) {
	if err := r.s.fault("UpsertHoursBank"); err != nil {
		return hoursbank.HoursBank{}, err
	}
	key := bankKey{row.EmployeeID, row.Month, row.Year}

	r.s.mu.RLock()
	existing, ok := r.s.banks[key]
	r.s.mu.RUnlock()

	now := r.s.now()
	if ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		row.ID = newID()
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	err := r.s.write(ctx, op{apply: func() {
		r.s.banks[key] = row
	}})
	return row, err
}

func sortBanks(rows []hoursbank.HoursBank) {
	sort.Slice(rows, func(i, j int) bool {
		return hoursbank.Index(rows[i].Month, rows[i].Year) < hoursbank.Index(rows[j].Month, rows[j].Year)
	})
}
