package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	rpctypes "github.com/energymarket/marketclient/rpc/jsonrpc/types"
)

const (
	protoHTTP  = "http"
	protoHTTPS = "https"
)

// Caller implementers can facilitate calling the JSON-RPC endpoint.
type Caller interface {
	Call(ctx context.Context, method string, params interface{}, result interface{}) (interface{}, error)
}

// HTTPError is returned when the server answers with a non-2xx status and a
// body that is not a JSON-RPC response.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string { return "server returned " + e.Status }

//-------------------------------------------------------------

// Parsed URL structure
type parsedURL struct {
	url.URL
}

// Parse URL and set defaults
func newParsedURL(remoteAddr string) (*parsedURL, error) {
	u, err := url.Parse(remoteAddr)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case protoHTTP, protoHTTPS:
	case "":
		return nil, fmt.Errorf("missing scheme in %q", remoteAddr)
	default:
		return nil, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, remoteAddr)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", remoteAddr)
	}

	return &parsedURL{*u}, nil
}

// GetTrimmedURL returns the address without user info or fragment.
func (u parsedURL) GetTrimmedURL() string {
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// DefaultHTTPClient is used to create an http client with some default
// parameters. A zero timeout leaves request deadlines to the caller context.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			// Set to true to prevent GZIP-bomb DoS attacks
			DisableCompression: true,
			IdleConnTimeout:    90 * time.Second,
		},
	}
}

//-------------------------------------------------------------

// Client is a JSON-RPC 2.0 client over HTTP POST. Params may be any value
// that marshals to a JSON object or array.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	address  string
	username string
	password string

	client *http.Client
}

var _ Caller = (*Client)(nil)

// New returns a Client pointed at the given address using a default HTTP
// client. An error is returned on invalid remote.
func New(remote string, timeout time.Duration) (*Client, error) {
	return NewWithHTTPClient(remote, DefaultHTTPClient(timeout))
}

// NewWithHTTPClient returns a Client pointed at the given address using a
// custom http client. An error is returned on invalid remote. The function
// panics when remote is nil.
func NewWithHTTPClient(remote string, c *http.Client) (*Client, error) {
	if c == nil {
		panic("nil http.Client provided")
	}

	parsedURL, err := newParsedURL(remote)
	if err != nil {
		return nil, fmt.Errorf("invalid remote %s: %s", remote, err)
	}

	address := parsedURL.GetTrimmedURL()
	username := parsedURL.User.Username()
	password, _ := parsedURL.User.Password()

	return &Client{
		address:  address,
		username: username,
		password: password,
		client:   c,
	}, nil
}

// Address returns the endpoint without credentials.
func (c *Client) Address() string { return c.address }

// Call issues a POST HTTP request. Requests are JSON encoded. Response
// results are decoded into result, which is also returned.
//
// A JSON-RPC level failure is returned as *rpctypes.RPCError. Any other
// error comes from the transport or from decoding.
func (c *Client) Call(
	ctx context.Context,
	method string,
	params interface{},
	result interface{},
) (interface{}, error) {
	id := rpctypes.ID(uuid.NewString())

	request, err := rpctypes.NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	requestBuf := bytes.NewBuffer(requestBytes)
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address, requestBuf)
	if err != nil {
		return nil, fmt.Errorf("request setup failed: %w", err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")

	if c.username != "" || c.password != "" {
		httpRequest.SetBasicAuth(c.username, c.password)
	}

	httpResponse, err := c.client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	responseBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("%s. Failed to read response body: %w", getHTTPRespErrPrefix(httpResponse), err)
	}

	res, err := decodeResponse(responseBytes, id, result)
	if err != nil {
		var rpcErr *rpctypes.RPCError
		if httpResponse.StatusCode/100 != 2 && !errors.As(err, &rpcErr) {
			return nil, &HTTPError{StatusCode: httpResponse.StatusCode, Status: httpResponse.Status}
		}
		return nil, err
	}
	return res, nil
}


func getHTTPRespErrPrefix(resp *http.Response) string {
	return fmt.Sprintf("error in json rpc client, with http response metadata: (Status: %s, Protocol %s)", resp.Status, resp.Proto)
}
