package harness

import (
	"fmt"
	"strings"

	"github.com/erpc/tck/common"
)

// Mismatch is one field on which the read replica disagrees with the expectation.
type Mismatch struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %v, got %v", m.Field, m.Expected, m.Actual)
}

const ErrCodeOracleDisagreement common.ErrorCode = "ErrOracleDisagreement"

type ErrOracleDisagreement struct {
	common.BaseError
	Ref        common.EntityRef
	Mismatches []Mismatch
}

var NewErrOracleDisagreement = func(ref common.EntityRef, oracleName string, mismatches []Mismatch) error {
	parts := make([]string, 0, len(mismatches))
	for _, m := range mismatches {
		parts = append(parts, m.String())
	}
	return &ErrOracleDisagreement{
		BaseError: common.BaseError{
			Code:    ErrCodeOracleDisagreement,
			Message: fmt.Sprintf("%s disagrees with expectation for %s: %s", oracleName, ref, strings.Join(parts, "; ")),
			Details: map[string]interface{}{
				"oracle":     oracleName,
				"kind":       string(ref.Kind),
				"id":         ref.Id.String(),
				"mismatches": mismatches,
			},
		},
		Ref:        ref,
		Mismatches: mismatches,
	}
}

const ErrCodeStillPresent common.ErrorCode = "ErrStillPresent"

type ErrStillPresent struct{ common.BaseError }

var NewErrStillPresent = func(ref common.EntityRef, oracleName string) error {
	return &ErrStillPresent{
		common.BaseError{
			Code:    ErrCodeStillPresent,
			Message: fmt.Sprintf("%s still reports %s as present", oracleName, ref),
			Details: map[string]interface{}{
				"oracle": oracleName,
				"kind":   string(ref.Kind),
				"id":     ref.Id.String(),
			},
		},
	}
}
