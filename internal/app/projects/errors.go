package projects

import "github.com/shared-wheels/carpool-ledger-api/internal/app/apperr"

func errProjectNotFound() *apperr.Error {
	return &apperr.Error{Status: 404, Code: "PROJECT_NOT_FOUND", Message: "project not found"}
}

func errProjectFull() *apperr.Error {
	return &apperr.Error{Status: 409, Code: "PROJECT_FULL", Message: "project has reached the maximum number of members"}
}

func errInvalidPassword() *apperr.Error {
	return &apperr.Error{Status: 403, Code: "INVALID_PROJECT_PASSWORD", Message: "invalid project password"}
}

func errAlreadyInProject() *apperr.Error {
	return &apperr.Error{Status: 409, Code: "ALREADY_IN_PROJECT", Message: "member already belongs to a project"}
}

func errNotProjectAdmin() *apperr.Error {
	return &apperr.Error{Status: 403, Code: "NOT_PROJECT_ADMIN", Message: "only the project admin can do that"}
}

func errValidation(message string, details map[string]any) *apperr.Error {
	return &apperr.Error{Status: 422, Code: "VALIDATION_ERROR", Message: message, Details: details}
}
