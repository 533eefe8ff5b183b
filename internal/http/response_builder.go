package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"smartfin/internal/archive"
	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

// JSONResponseBuilder collects status, headers and payload before writing.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the response. A nil payload writes only the status line.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	body, err := json.Marshal(b.data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse builds the `{"error": "..."}` body used by every failure.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func PayloadTooLargeError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusRequestEntityTooLarge, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrEmptyCategory,
	core.ErrMissingDate,
	core.ErrNotesTooLong,
	core.ErrInvalidCurrency,
	core.ErrNegativeGoal,
	core.ErrEmptyClient,
	core.ErrNoInvoiceItems,
	core.ErrMissingDueDate,
	core.ErrInvalidStatus,
	core.ErrDueBeforeIssuance,
}

// FromError maps a service error to its response. Store failures are
// reported without their detail.
func FromError(err error) *JSONResponseBuilder {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return PayloadTooLargeError(fmt.Sprintf("request body larger than %d bytes", tooLarge.Limit))
	case errors.Is(err, ledger.ErrNotFound):
		return NotFoundError(ledger.ErrNotFound.Error())
	case errors.Is(err, archive.ErrInvalidDocument):
		return UnprocessableEntityError(err.Error())
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return UnprocessableEntityError(v.Error())
		}
	}
	return InternalServerError("internal server error")
}
