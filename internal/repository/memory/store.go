// Package memory is an in-process implementation of the repository
// interfaces. Writes made inside WithinTx are staged and applied together
// on commit, after every staged uniqueness check has passed.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/benefit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
)

type bankKey struct {
	employeeID string
	month      int
	year       int
}

type slipKey struct {
	periodID   string
	employeeID string
}

type Store struct {
	mu sync.RWMutex

	employees   map[string]employee.Employee
	schedules   map[string]schedule.WorkSchedule
	timeEntries map[string][]attendance.TimeEntry
	leaveDays   map[string][]leave.LeaveDay
	enrollments map[string][]benefit.Enrollment
	brackets    []taxtable.Bracket
	banks       map[bankKey]hoursbank.HoursBank

	periods    map[string]payroll.Period
	components map[string][]payroll.Component
	items      []payroll.Item
	entries    []payroll.Entry
	slips      map[slipKey]payroll.Slip
	runs       map[slipKey]payroll.Run

	faults map[string][]error
	now    func() time.Time

	lockMu        sync.Mutex
	employeeLocks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		employees:   make(map[string]employee.Employee),
		schedules:   make(map[string]schedule.WorkSchedule),
		timeEntries: make(map[string][]attendance.TimeEntry),
		leaveDays:   make(map[string][]leave.LeaveDay),
		enrollments: make(map[string][]benefit.Enrollment),
		banks:       make(map[bankKey]hoursbank.HoursBank),
		periods:     make(map[string]payroll.Period),
		components:  make(map[string][]payroll.Component),
		slips:       make(map[slipKey]payroll.Slip),
		runs:        make(map[slipKey]payroll.Run),
		faults:      make(map[string][]error),
		now:         func() time.Time { return time.Now().UTC() },

		employeeLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) employeeLock(employeeID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.employeeLocks[employeeID]
	if !ok {
		m = &sync.Mutex{}
		s.employeeLocks[employeeID] = m
	}
	return m
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FailNext makes the next len(errs) calls of op return errs in order.
// Operation names are the repository method names, e.g. "ListByEmployee".
func (s *Store) FailNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

func (s *Store) fault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.faults[op] = queue[1:]
	return err
}

type txKey struct{}

type op struct {
	check func() error
	apply func()
}

type txState struct {
	mu  sync.Mutex
	ops []op

	// held and release track row locks taken inside the transaction.
	// They are released after commit or rollback.
	held    map[string]bool
	release []func()
}

func (tx *txState) end() {
	tx.mu.Lock()
	release := tx.release
	tx.release = nil
	tx.mu.Unlock()
	for _, fn := range release {
		fn()
	}
}

type txManager struct {
	s *Store
}

func NewTxManager(s *Store) database.TxManager {
	return &txManager{s: s}
}

// WithinTx implements database.TxManager.
func (m *txManager) WithinTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	tx := &txState{held: make(map[string]bool)}
	defer tx.end()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range tx.ops {
		if o.check == nil {
			continue
		}
		if err := o.check(); err != nil {
			return err
		}
	}
	for _, o := range tx.ops {
		o.apply()
	}
	return nil
}

// write applies o immediately, or stages it when ctx carries a transaction.
func (s *Store) write(ctx context.Context, o op) error {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		tx.mu.Lock()
		tx.ops = append(tx.ops, o)
		tx.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if o.check != nil {
		if err := o.check(); err != nil {
			return err
		}
	}
	o.apply()
	return nil
}
