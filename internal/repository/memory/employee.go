package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/schedule"
)

type employeeRepository struct {
	s *Store
}

func NewEmployeeRepository(s *Store) employee.EmployeeRepository {
	return &employeeRepository{s: s}
}

// AddEmployee seeds an employee, assigning an ID when empty.
func (s *Store) AddEmployee(e employee.Employee) employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.EmploymentStatus == "" {
		e.EmploymentStatus = employee.EmploymentStatusActive
	}
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt
	s.employees[e.ID] = e
	return e
}

// GetByID implements employee.EmployeeRepository.
func (r *employeeRepository) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	if err := r.s.fault("GetByID"); err != nil {
		return employee.Employee{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

// ListActiveBetween implements employee.EmployeeRepository.
func (r *employeeRepository) ListActiveBetween(ctx context.Context, start, end time.Time) ([]employee.Employee, error) {
	if err := r.s.fault("ListActiveBetween"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []employee.Employee
	for _, e := range r.s.employees {
		if e.ActiveBetween(start, end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeCode != out[j].EmployeeCode {
			return out[i].EmployeeCode < out[j].EmployeeCode
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type workScheduleRepository struct {
	s *Store
}

func NewWorkScheduleRepository(s *Store) schedule.WorkScheduleRepository {
	return &workScheduleRepository{s: s}
}

func (s *Store) AddWorkSchedule(ws schedule.WorkSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[ws.EmployeeID] = ws
}

// GetByEmployeeID implements schedule.WorkScheduleRepository.
func (r *workScheduleRepository) GetByEmployeeID(ctx context.Context, employeeID string) (schedule.WorkSchedule, error) {
	if err := r.s.fault("GetByEmployeeID"); err != nil {
		return schedule.WorkSchedule{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws, ok := r.s.schedules[employeeID]
	if !ok {
		return schedule.WorkSchedule{}, schedule.ErrWorkScheduleNotFound
	}
	return ws, nil
}
