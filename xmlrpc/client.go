package xmlrpc

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Fault codes used by Handler, following the interoperability proposal
// most XML-RPC servers agree on.
const (
	FaultParseError     = -32700
	FaultMethodNotFound = -32601
	FaultInvalidParams  = -32602
	FaultApplication    = -32500
)

// Fault is an XML-RPC fault response.
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.Message)
}

// Client calls methods on a single XML-RPC endpoint.
type Client struct {
	URL  string
	HTTP *http.Client
}

// NewClient returns a client for url using http.DefaultClient.
func NewClient(url string) *Client {
	return &Client{URL: url, HTTP: http.DefaultClient}
}

// Call invokes method with args and returns the decoded result.
func (c *Client) Call(method string, args ...interface{}) (interface{}, error) {
	return c.CallContext(context.Background(), method, args...)
}

// CallContext is Call bound to ctx.
func (c *Client) CallContext(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	var body bytes.Buffer
	if err := encodeRequest(&body, method, args...); err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "text/xml")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", method)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("calling %s: http status %s", method, res.Status)
	}

	result, err := decodeResponse(xml.NewDecoder(res.Body))
	if err != nil {
		if _, ok := err.(*Fault); ok {
			return nil, err
		}
		return nil, errors.Wrapf(err, "parsing response of %s", method)
	}
	return result, nil
}

// Call performs a single call against url.
func Call(url string, method string, args ...interface{}) (interface{}, error) {
	return NewClient(url).Call(method, args...)
}
