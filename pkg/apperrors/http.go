package apperrors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an engine error to the response code handlers return for it.
func HTTPStatus(err error) int {
	var (
		notFound         *NotFoundError
		insufficient     *InsufficientStockError
		invalidState     *InvalidStateError
		alreadyProcessed *AlreadyProcessedError
		validation       *ValidationError
		unique           *UniqueViolationError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &insufficient):
		return http.StatusConflict
	case errors.As(err, &invalidState):
		return http.StatusConflict
	case errors.As(err, &alreadyProcessed):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unique):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

func IsAlreadyProcessed(err error) bool {
	var alreadyProcessed *AlreadyProcessedError
	return errors.As(err, &alreadyProcessed)
}
