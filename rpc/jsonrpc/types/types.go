package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the only protocol version spoken.
const Version = "2.0"

// Error codes reserved by JSON-RPC 2.0.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ID identifies a request and its response. Requests from this module
// always carry string ids. Servers may answer with numeric ids, which are
// kept in their decimal form so they still compare equal to what was sent.
// The empty ID encodes as null.
type ID string

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	// Fractional ids are not allowed, so only integers are accepted.
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("json-rpc id must be a string or an integer, got %s", data)
	}
	*id = ID(strconv.FormatInt(n, 10))
	return nil
}

//----------------------------------------
// REQUEST

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"` // object or array
}

// NewRequest constructs a request for method. A nil params value omits the
// params member.
func NewRequest(id ID, method string, params interface{}) (RPCRequest, error) {
	req := RPCRequest{JSONRPC: Version, ID: id, Method: method}
	if params == nil {
		return req, nil
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return RPCRequest{}, err
	}
	req.Params = payload
	return req, nil
}

func (req RPCRequest) String() string {
	return fmt.Sprintf("RPCRequest{%s %s/%s}", req.ID, req.Method, req.Params)
}

//----------------------------------------
// RESPONSE

// RPCError is the error member of a response. Ledger and wallet servers
// report application failures with their own codes.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (err *RPCError) Error() string {
	if err.Data != "" {
		return fmt.Sprintf("RPC error %d - %s: %s", err.Code, err.Message, err.Data)
	}
	return fmt.Sprintf("RPC error %d - %s", err.Code, err.Message)
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (resp RPCResponse) String() string {
	if resp.Error == nil {
		return fmt.Sprintf("RPCResponse{%s %s}", resp.ID, resp.Result)
	}
	return fmt.Sprintf("RPCResponse{%s %v}", resp.ID, resp.Error)
}

// NewResponse answers id with result. A result that cannot be marshaled
// becomes an internal error.
func NewResponse(id ID, result interface{}) RPCResponse {
	bz, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, CodeInternalError, "Internal error", err.Error())
	}
	return RPCResponse{JSONRPC: Version, ID: id, Result: bz}
}

// NewErrorResponse answers id with an error. Use an empty id when the
// request id could not be read.
func NewErrorResponse(id ID, code int, msg, data string) RPCResponse {
	return RPCResponse{
		JSONRPC: Version,
		ID:      id,
		Error:   &RPCError{Code: code, Message: msg, Data: data},
	}
}
