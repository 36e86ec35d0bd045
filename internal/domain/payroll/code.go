package payroll

import (
	"fmt"
	"sort"
)

// EntryKind enum
type EntryKind string

const (
	EntryKindEarning        EntryKind = "earning"
	EntryKindDeduction      EntryKind = "deduction"
	EntryKindEmployerCharge EntryKind = "employer_charge"
)

var kindOrder = map[EntryKind]int{
	EntryKindEarning:        0,
	EntryKindDeduction:      1,
	EntryKindEmployerCharge: 2,
}

// EntryCode enum
type EntryCode string

const (
	CodeBaseSalary      EntryCode = "base_salary"
	CodeOvertime50      EntryCode = "overtime_50"
	CodeOvertime100     EntryCode = "overtime_100"
	CodeNightShift      EntryCode = "night_shift"
	CodeBonus           EntryCode = "bonus"
	CodeCommission      EntryCode = "commission"
	CodeFixedBonus      EntryCode = "fixed_bonus"
	CodeHazardPay       EntryCode = "hazard_pay"
	CodeUnhealthyPay    EntryCode = "unhealthy_pay"
	CodeINSS            EntryCode = "inss"
	CodeIRRF            EntryCode = "irrf"
	CodeFGTS            EntryCode = "fgts"
	CodeVTDiscount      EntryCode = "vt_discount"
	CodeBenefitDiscount EntryCode = "benefit_discount"
	CodeAbsence         EntryCode = "absence"
	CodeAdvance         EntryCode = "advance"
	CodeOther           EntryCode = "other"
)

// EntryCodes lists every code in canonical order. Entries of one kind
// are always emitted in this order.
var EntryCodes = []EntryCode{
	CodeBaseSalary,
	CodeOvertime50,
	CodeOvertime100,
	CodeNightShift,
	CodeBonus,
	CodeCommission,
	CodeFixedBonus,
	CodeHazardPay,
	CodeUnhealthyPay,
	CodeINSS,
	CodeIRRF,
	CodeFGTS,
	CodeVTDiscount,
	CodeBenefitDiscount,
	CodeAbsence,
	CodeAdvance,
	CodeOther,
}

var codeOrder = func() map[EntryCode]int {
	m := make(map[EntryCode]int, len(EntryCodes))
	for i, c := range EntryCodes {
		m[c] = i
	}
	return m
}()

// ParseEntryCode validates a raw code.
func ParseEntryCode(raw string) (EntryCode, error) {
	code := EntryCode(raw)
	if _, ok := codeOrder[code]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryCode, raw)
	}
	return code, nil
}

// DefaultKind is the kind a code carries unless an item says otherwise.
// Only CodeOther and CodeBenefitDiscount may appear under another kind.
func (c EntryCode) DefaultKind() (EntryKind, error) {
	switch c {
	case CodeBaseSalary, CodeOvertime50, CodeOvertime100, CodeNightShift,
		CodeBonus, CodeCommission, CodeFixedBonus, CodeHazardPay, CodeUnhealthyPay:
		return EntryKindEarning, nil
	case CodeINSS, CodeIRRF, CodeVTDiscount, CodeBenefitDiscount, CodeAbsence, CodeAdvance:
		return EntryKindDeduction, nil
	case CodeFGTS:
		return EntryKindEmployerCharge, nil
	case CodeOther:
		return EntryKindEarning, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryCode, string(c))
	}
}

// CodeForComponent maps a recurring component onto its entry code.
func CodeForComponent(t ComponentType) (EntryCode, error) {
	switch t {
	case ComponentTypeBaseSalary:
		return CodeBaseSalary, nil
	case ComponentTypeFixedBonus:
		return CodeFixedBonus, nil
	case ComponentTypeHazardPay:
		return CodeHazardPay, nil
	case ComponentTypeUnhealthyPay:
		return CodeUnhealthyPay, nil
	case ComponentTypeOther:
		return CodeOther, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidComponentType, string(t))
	}
}

// SortEntries orders entries by kind, then canonical code, keeping the
// relative order of lines that share both. Sequence is renumbered.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ki, kj := kindOrder[entries[i].Kind], kindOrder[entries[j].Kind]
		if ki != kj {
			return ki < kj
		}
		return codeOrder[entries[i].Code] < codeOrder[entries[j].Code]
	})
	for i := range entries {
		entries[i].Sequence = i + 1
	}
}
