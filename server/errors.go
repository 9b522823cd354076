package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// errorTypePrefix namespaces wire error codes the way the live service does.
const errorTypePrefix = "com.amazonaws.dynamodb.v20120810#"

type errorResponse struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func errUnknownOperation(target string) error {
	return &smithy.GenericAPIError{
		Code:    "UnknownOperationException",
		Message: "unknown operation: " + target,
	}
}

// writeError renders the `__type` error envelope and returns the wire code
// for metrics. Typed API errors become HTTP 400; anything untyped is an
// internal fault.
func (s *Server) writeError(w http.ResponseWriter, action string, err error) string {
	code := ddberr.Code(err)
	status := http.StatusBadRequest
	message := err.Error()
	if code == "" {
		code = "InternalFailure"
		status = http.StatusInternalServerError
		s.log.Error("internal fault", zap.String("action", action), zap.Error(err))
	} else {
		var api smithy.APIError
		if errors.As(err, &api) {
			message = api.ErrorMessage()
		}
	}

	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		Type:    errorTypePrefix + code,
		Message: message,
	})
	return code
}
