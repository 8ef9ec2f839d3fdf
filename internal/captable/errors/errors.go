package errors

import (
	"fmt"
)

var (
	ErrInvalidInput            = fmt.Errorf("invalid input")
	ErrInvalidEquityAllocation = fmt.Errorf("invalid equity allocation")
	ErrInvalidValuation        = fmt.Errorf("invalid valuation")
	ErrNoSharesOutstanding     = fmt.Errorf("no shares outstanding")
)
