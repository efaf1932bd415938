package api

import (
	"errors"
	"fmt"
)

// ActionResult is the envelope every action endpoint answers with.
type ActionResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Count     int    `json:"count"`
	Generated int    `json:"generated"`
}

// OK reports whether the backend accepted the action.
func (r ActionResult) OK() bool { return r.Status == statusOK }

type promoteRequest struct {
	UserID     int      `json:"user_id" validate:"min=1"`
	RegNumbers []string `json:"reg_numbers" validate:"min=1,dive,required"`
}

type ingestRequest struct {
	Limit int `json:"limit" validate:"min=1"`
}

type overrideRequest struct {
	UserID    int    `json:"user_id" validate:"min=1"`
	RegNumber string `json:"reg_number" validate:"required"`
	FieldName string `json:"field_name" validate:"required"`
	Value     string `json:"value"`
}

type decisionRequest struct {
	UserID    int     `json:"user_id" validate:"min=1"`
	RegNumber string  `json:"reg_number" validate:"required"`
	Stage     int     `json:"stage" validate:"min=1"`
	Decision  string  `json:"decision" validate:"oneof=approved rejected"`
	Comment   *string `json:"comment"`
}

type stage3Request struct {
	UserID int `json:"user_id" validate:"min=1"`
}

// TransportError means the backend could not be reached or answered with
// something other than a 2xx JSON body.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError means the request was rejected before it was sent.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("api: %s: invalid request: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
