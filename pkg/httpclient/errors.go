package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/shopcatalog/pkg/errors"
)

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes a non-2xx response and returns an error that
// keeps the upstream's status semantics. The body is closed.
func ParseResponseError(resp *http.Response, service string) error {
	defer drain(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned %d: read body: %w", service, resp.StatusCode, err)
	}

	code, msg := "", string(body)
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		code, msg = env.Error.Code, env.Error.Message
	}

	switch status := resp.StatusCode; {
	case status == http.StatusNotFound:
		return apperrors.NotFound(service+" resource", msg)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(service + ": " + msg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(service + ": " + msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", service, apperrors.ErrRateLimited)
	case status >= 500:
		return apperrors.ServiceUnavailable(service, fmt.Errorf("status %d %s: %s", status, code, msg))
	default:
		return fmt.Errorf("%s returned unexpected status %d: %s", service, status, msg)
	}
}
