package taxtable

import "errors"

var (
	ErrNoBracketsFound     = errors.New("no tax brackets found for date")
	ErrInvalidBracketTable = errors.New("tax bracket table is not contiguous and ascending")
	ErrInvalidTaxType      = errors.New("invalid tax type")
)
