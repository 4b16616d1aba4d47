package trips

import (
	"github.com/shared-wheels/carpool-ledger-api/internal/app/apperr"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/rules"
)

func errProjectNotFound() *apperr.Error {
	return &apperr.Error{Status: 404, Code: "PROJECT_NOT_FOUND", Message: "project not found"}
}

func errNotMember() *apperr.Error {
	return &apperr.Error{Status: 403, Code: "NOT_A_MEMBER", Message: "caller is not a member of this project"}
}

func errInvalidRange() *apperr.Error {
	return &apperr.Error{Status: 422, Code: "INVALID_RANGE", Message: "endKm must be greater than startKm"}
}

func errInvalidValue() *apperr.Error {
	return &apperr.Error{Status: 422, Code: "INVALID_VALUE", Message: "value must be greater than zero"}
}

// errValidation reports every failing field with its error kind, never just
// the first one.
func errValidation(v rules.Violations) *apperr.Error {
	details := make(map[string]any, len(v))
	for field, kind := range v {
		details[string(field)] = string(kind)
	}
	return &apperr.Error{Status: 422, Code: "VALIDATION_ERROR", Message: "submission rejected", Details: details}
}

// errAggregateCorruption marks an internal invariant violation. It is never
// expected in normal operation and must not be retried.
func errAggregateCorruption(detail string) *apperr.Error {
	return &apperr.Error{Status: 500, Code: "AGGREGATE_CORRUPTION", Message: detail}
}
