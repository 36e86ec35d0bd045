package hoursbank

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closedMonths map[int]bool

func (c closedMonths) IsMonthClosed(ctx context.Context, month, year int) (bool, error) {
	return c[hoursbank.Index(month, year)], nil
}

const empID = "0192a3b4-0000-7000-8000-000000000001"

func newLedger(closed closedMonths) (hoursbank.Ledger, *memory.Store) {
	store := memory.NewStore()
	return NewLedger(memory.NewTxManager(store), memory.NewHoursBankRepository(store), closed), store
}

func accumulated(t *testing.T, l hoursbank.Ledger, year int) map[int]int {
	t.Helper()
	rows, err := l.ListByYear(context.Background(), empID, year)
	require.NoError(t, err)
	out := make(map[int]int, len(rows))
	for _, r := range rows {
		out[r.Month] = r.AccumulatedBalanceMinutes
	}
	return out
}

func TestRollForward_CarriesPreviousMonth(t *testing.T) {
	l, _ := newLedger(closedMonths{})
	ctx := context.Background()

	jan, err := l.RollForward(ctx, empID, 1, 2024, 9600, 9720)
	require.NoError(t, err)
	assert.Equal(t, 120, jan.BalanceMinutes)
	assert.Equal(t, 120, jan.AccumulatedBalanceMinutes)
	assert.NotEmpty(t, jan.ID)

	feb, err := l.RollForward(ctx, empID, 2, 2024, 9600, 9540)
	require.NoError(t, err)
	assert.Equal(t, -60, feb.BalanceMinutes)
	assert.Equal(t, 60, feb.AccumulatedBalanceMinutes)
}

func TestRollForward_CarriesAcrossYearBoundary(t *testing.T) {
	l, _ := newLedger(closedMonths{})
	ctx := context.Background()

	_, err := l.RollForward(ctx, empID, 12, 2023, 100, 130)
	require.NoError(t, err)
	jan, err := l.RollForward(ctx, empID, 1, 2024, 100, 110)
	require.NoError(t, err)
	assert.Equal(t, 40, jan.AccumulatedBalanceMinutes)
}

func TestRollForward_CascadesToLaterMonths(t *testing.T) {
	l, _ := newLedger(closedMonths{})
	ctx := context.Background()

	for month, worked := range map[int]int{1: 110, 2: 90, 3: 120} {
		_, err := l.RollForward(ctx, empID, month, 2024, 100, worked)
		require.NoError(t, err)
	}
	// rows written out of order still chain once recomputed
	_, err := l.RollForward(ctx, empID, 1, 2024, 100, 110)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 10, 2: 0, 3: 20}, accumulated(t, l, 2024))

	_, err = l.RollForward(ctx, empID, 1, 2024, 100, 160)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 60, 2: 50, 3: 70}, accumulated(t, l, 2024))
}

func TestRollForward_GapResetsCarry(t *testing.T) {
	l, _ := newLedger(closedMonths{})
	ctx := context.Background()

	_, err := l.RollForward(ctx, empID, 1, 2024, 100, 150)
	require.NoError(t, err)
	mar, err := l.RollForward(ctx, empID, 3, 2024, 100, 120)
	require.NoError(t, err)
	assert.Equal(t, 20, mar.AccumulatedBalanceMinutes)

	_, err = l.RollForward(ctx, empID, 1, 2024, 100, 300)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 200, 3: 20}, accumulated(t, l, 2024))
}

func TestRollForward_RejectsClosedMonth(t *testing.T) {
	l, _ := newLedger(closedMonths{hoursbank.Index(2, 2024): true})

	_, err := l.RollForward(context.Background(), empID, 2, 2024, 100, 100)
	assert.ErrorIs(t, err, hoursbank.ErrPeriodLocked)
}

func TestRollForward_RejectsCascadeIntoClosedMonth(t *testing.T) {
	closed := closedMonths{}
	l, _ := newLedger(closed)
	ctx := context.Background()

	_, err := l.RollForward(ctx, empID, 1, 2024, 100, 110)
	require.NoError(t, err)
	_, err = l.RollForward(ctx, empID, 2, 2024, 100, 100)
	require.NoError(t, err)

	closed[hoursbank.Index(2, 2024)] = true

	_, err = l.RollForward(ctx, empID, 1, 2024, 100, 200)
	assert.ErrorIs(t, err, hoursbank.ErrPeriodLocked)
	assert.Equal(t, map[int]int{1: 10, 2: 10}, accumulated(t, l, 2024), "nothing is written")

	// an unchanged balance does not rewrite the closed month
	_, err = l.RollForward(ctx, empID, 1, 2024, 100, 110)
	assert.NoError(t, err)
}

func TestRollForward_RollsBackOnWriteFailure(t *testing.T) {
	l, store := newLedger(closedMonths{})
	ctx := context.Background()

	_, err := l.RollForward(ctx, empID, 1, 2024, 100, 110)
	require.NoError(t, err)
	_, err = l.RollForward(ctx, empID, 2, 2024, 100, 100)
	require.NoError(t, err)

	boom := errors.New("boom")
	// first upsert succeeds, the cascade write fails
	store.FailNext("UpsertHoursBank", nil, boom)

	_, err = l.RollForward(ctx, empID, 1, 2024, 100, 200)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, map[int]int{1: 10, 2: 10}, accumulated(t, l, 2024))
}

func TestRollForward_Validation(t *testing.T) {
	l, _ := newLedger(closedMonths{})
	ctx := context.Background()

	_, err := l.RollForward(ctx, empID, 13, 2024, 0, 0)
	assert.ErrorIs(t, err, hoursbank.ErrInvalidMonth)

	_, err = l.RollForward(ctx, empID, 1, 2024, -1, 0)
	assert.ErrorIs(t, err, hoursbank.ErrNegativeMinutes)
}

func TestRollForward_ConcurrentMonthsConverge(t *testing.T) {
	l, _ := newLedger(closedMonths{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for month := 1; month <= 6; month++ {
		wg.Add(1)
		go func(month int) {
			defer wg.Done()
			_, err := l.RollForward(ctx, empID, month, 2024, 100, 100+month)
			assert.NoError(t, err)
		}(month)
	}
	wg.Wait()

	// whatever the order, each month ends up carrying every earlier one
	assert.Equal(t, map[int]int{1: 1, 2: 3, 3: 6, 4: 10, 5: 15, 6: 21}, accumulated(t, l, 2024))
}

func TestRollForward_LaterMonthWaitsForOuterCommit(t *testing.T) {
	l, store := newLedger(closedMonths{})
	tx := memory.NewTxManager(store)
	ctx := context.Background()

	rolled := make(chan struct{})
	commit := make(chan struct{})
	janDone := make(chan error, 1)
	go func() {
		janDone <- tx.WithinTx(ctx, func(txCtx context.Context) error {
			if _, err := l.RollForward(txCtx, empID, 1, 2024, 100, 160); err != nil {
				return err
			}
			close(rolled)
			<-commit
			return nil
		})
	}()
	<-rolled

	febDone := make(chan error, 1)
	go func() {
		_, err := l.RollForward(ctx, empID, 2, 2024, 100, 110)
		febDone <- err
	}()

	select {
	case err := <-febDone:
		t.Fatalf("february rolled forward before january committed: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(commit)
	require.NoError(t, <-janDone)
	require.NoError(t, <-febDone)
	assert.Equal(t, map[int]int{1: 60, 2: 70}, accumulated(t, l, 2024))
}

func TestRollForward_OuterRollbackReleasesEmployee(t *testing.T) {
	l, store := newLedger(closedMonths{})
	tx := memory.NewTxManager(store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(txCtx context.Context) error {
		if _, err := l.RollForward(txCtx, empID, 1, 2024, 100, 160); err != nil {
			return err
		}
		// a second roll-forward in the same transaction does not block
		if _, err := l.RollForward(txCtx, empID, 2, 2024, 100, 110); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, accumulated(t, l, 2024))

	feb, err := l.RollForward(ctx, empID, 2, 2024, 100, 110)
	require.NoError(t, err)
	assert.Equal(t, 10, feb.AccumulatedBalanceMinutes)
}
