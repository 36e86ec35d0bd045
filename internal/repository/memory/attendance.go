package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/benefit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
)

func inRange(day, start, end time.Time) bool {
	return !day.Before(start) && !day.After(end)
}

type timeEntryRepository struct {
	s *Store
}

func NewTimeEntryRepository(s *Store) attendance.TimeEntryRepository {
	return &timeEntryRepository{s: s}
}

func (s *Store) AddTimeEntries(entries ...attendance.TimeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = newID()
		}
		s.timeEntries[e.EmployeeID] = append(s.timeEntries[e.EmployeeID], e)
	}
}

// ListByEmployee implements attendance.TimeEntryRepository.
func (r *timeEntryRepository) ListByEmployee(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.TimeEntry, error) {
	if err := r.s.fault("ListByEmployee"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []attendance.TimeEntry
	for _, e := range r.s.timeEntries[employeeID] {
		if inRange(e.Date, start, end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type leaveRepository struct {
	s *Store
}

func NewLeaveRepository(s *Store) leave.LeaveRepository {
	return &leaveRepository{s: s}
}

func (s *Store) AddLeaveDays(days ...leave.LeaveDay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range days {
		s.leaveDays[d.EmployeeID] = append(s.leaveDays[d.EmployeeID], d)
	}
}

// ListApprovedDays implements leave.LeaveRepository.
func (r *leaveRepository) ListApprovedDays(ctx context.Context, employeeID string, start, end time.Time) ([]leave.LeaveDay, error) {
	if err := r.s.fault("ListApprovedDays"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []leave.LeaveDay
	for _, d := range r.s.leaveDays[employeeID] {
		if inRange(d.Date, start, end) {
			out = append(out, d)
		}
	}
	return out, nil
}

type enrollmentRepository struct {
	s *Store
}

func NewEnrollmentRepository(s *Store) benefit.EnrollmentRepository {
	return &enrollmentRepository{s: s}
}

func (s *Store) AddEnrollment(e benefit.Enrollment) benefit.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	s.enrollments[e.EmployeeID] = append(s.enrollments[e.EmployeeID], e)
	return e
}

// ListEffective implements benefit.EnrollmentRepository.
func (r *enrollmentRepository) ListEffective(ctx context.Context, employeeID string, start, end time.Time) ([]benefit.Enrollment, error) {
	if err := r.s.fault("ListEffectiveEnrollments"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []benefit.Enrollment
	for _, e := range r.s.enrollments[employeeID] {
		if e.EffectiveBetween(start, end) {
			out = append(out, e)
		}
	}
	return out, nil
}
