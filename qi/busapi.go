package qi

import (
	"context"
	"fmt"

	"github.com/edwinhayes/naox/xmlrpc"
	"github.com/pkg/errors"
)

const (
	//APIStatusError is a call the bus rejected
	APIStatusError = -1
	//APIStatusFailure is a call the bus could not complete
	APIStatusFailure = 0
	//APIStatusSuccess is a successful call
	APIStatusSuccess = 1
)

// APIError is returned when the bus answers with a non-success status.
type APIError struct {
	Method  string
	Code    int32
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bus API %s failed with code %d: %s", e.Method, e.Code, e.Message)
}

// callBusAPI performs an XML-RPC call and unpacks the [code, message, value]
// triplet every bus method answers with.
func callBusAPI(ctx context.Context, uri string, method string, args ...interface{}) (interface{}, error) {
	result, err := xmlrpc.NewClient(uri).CallContext(ctx, method, args...)
	if err != nil {
		return nil, err
	}

	triplet, ok := result.([]interface{})
	if !ok {
		return nil, errors.Errorf("malformed bus API result for %s", method)
	}
	if len(triplet) != 3 {
		return nil, errors.Errorf("malformed bus API result for %s: length must be 3 but %d", method, len(triplet))
	}
	code, ok := triplet[0].(int32)
	if !ok {
		return nil, errors.Errorf("bus API status code of %s is not int", method)
	}
	message, ok := triplet[1].(string)
	if !ok {
		return nil, errors.Errorf("bus API message of %s is not string", method)
	}
	if code != APIStatusSuccess {
		return nil, &APIError{Method: method, Code: code, Message: message}
	}
	return triplet[2], nil
}

// BuildAPIResult packs a [code, message, value] triplet for a bus or
// callback API answer.
func BuildAPIResult(code int32, message string, value interface{}) []interface{} {
	return []interface{}{code, message, value}
}
