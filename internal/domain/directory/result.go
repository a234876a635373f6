package directory

import (
	"encoding/json"
	"fmt"
)

const (
	CodeServerError        = "server_error"
	CodeNetworkUnavailable = "network_unavailable"
	CodeRequestError       = "request_error"
	CodeUnexpectedError    = "unexpected_error"
)

const unknownError = "Unknown error"

// Failure is one of ServerError, NetworkUnavailable, RequestConstructionError
// or UnexpectedError. The unexported marker keeps the set closed.
type Failure interface {
	error
	Code() string
	failure()
}

type ServerError struct {
	Status  int
	Message string
}

func (e ServerError) Error() string {
	message := e.Message
	if message == "" {
		message = unknownError
	}
	return fmt.Sprintf("Server error: %d - %s", e.Status, message)
}

func (ServerError) Code() string { return CodeServerError }
func (ServerError) failure()     {}

type NetworkUnavailable struct{}

func (NetworkUnavailable) Error() string { return "Network error: Unable to connect to server" }
func (NetworkUnavailable) Code() string  { return CodeNetworkUnavailable }
func (NetworkUnavailable) failure()      {}

type RequestConstructionError struct {
	Message string
}

func (e RequestConstructionError) Error() string { return "Request error: " + e.Message }
func (RequestConstructionError) Code() string    { return CodeRequestError }
func (RequestConstructionError) failure()        {}

type UnexpectedError struct {
	Message string
}

func (e UnexpectedError) Error() string {
	message := e.Message
	if message == "" {
		message = unknownError
	}
	return "Unexpected error: " + message
}

func (UnexpectedError) Code() string { return CodeUnexpectedError }
func (UnexpectedError) failure()     {}

// Result is the outcome of one page fetch. Exactly one of the success fields
// or Failure is meaningful: a failed result always has empty Data and zero Total.
type Result struct {
	Data    []Employee
	Total   int
	Failure Failure
}

func Succeeded(data []Employee, total int) Result {
	if data == nil {
		data = []Employee{}
	}
	if total < 0 {
		total = 0
	}
	return Result{Data: data, Total: total}
}

func Failed(f Failure) Result {
	return Result{Data: []Employee{}, Total: 0, Failure: f}
}

func (r Result) OK() bool {
	return r.Failure == nil
}

// ErrorMessage is the text shown to the user, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Error()
}

func (r Result) Outcome() string {
	if r.Failure == nil {
		return "ok"
	}
	return r.Failure.Code()
}

func (r Result) MarshalJSON() ([]byte, error) {
	data := r.Data
	if data == nil {
		data = []Employee{}
	}
	return json.Marshal(struct {
		Data  []Employee `json:"data"`
		Total int        `json:"total"`
		Error string     `json:"error,omitempty"`
	}{Data: data, Total: r.Total, Error: r.ErrorMessage()})
}
