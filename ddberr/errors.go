// Package ddberr defines the error taxonomy shared by the store and the
// HTTP adapter. Where the AWS SDK defines a modeled exception type we reuse
// it directly so errors.As works the same against the emulator as against
// the real service; the rest are smithy API errors carrying the wire code.
package ddberr

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

func ptr(s string) *string { return &s }

// Validation returns a ValidationException with the given message.
func Validation(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
	}
}

// TableNotFound returns the ResourceNotFoundException DynamoDB raises for a
// missing table.
func TableNotFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: ptr(fmt.Sprintf("Requested resource not found: Table: %s not found", name)),
	}
}

// TableExists returns the ResourceInUseException DynamoDB raises when a table
// name is already taken.
func TableExists(name string) error {
	return &types.ResourceInUseException{
		Message: ptr(fmt.Sprintf("Table already exists: %s", name)),
	}
}

// ConditionFailed is the error for a condition expression evaluating false.
func ConditionFailed() error {
	return &types.ConditionalCheckFailedException{
		Message: ptr("The conditional request failed"),
	}
}

// Serialization returns the error for an undecodable request body.
func Serialization(err error) error {
	return &smithy.GenericAPIError{
		Code:    "SerializationException",
		Message: err.Error(),
	}
}

// Code extracts the wire error code, or "" for untyped errors.
func Code(err error) string {
	var api smithy.APIError
	if errors.As(err, &api) {
		return api.ErrorCode()
	}
	return ""
}

// IsConditionFailed reports whether err is a failed conditional check.
func IsConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// IsNotFound reports whether err is a ResourceNotFoundException.
func IsNotFound(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf)
}
