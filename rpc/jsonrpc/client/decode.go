package client

import (
	"encoding/json"
	"fmt"

	rpctypes "github.com/energymarket/marketclient/rpc/jsonrpc/types"
)

// decodeResponse parses a response to the request with id expected and
// decodes its result into result. An error member is returned as is.
func decodeResponse(bz []byte, expected rpctypes.ID, result interface{}) (interface{}, error) {
	var response rpctypes.RPCResponse
	if err := json.Unmarshal(bz, &response); err != nil {
		return nil, fmt.Errorf("error unmarshaling: %w", err)
	}

	if response.Error != nil {
		return nil, response.Error
	}

	// The id must match the request; only error responses may carry null.
	if response.ID != expected {
		return nil, fmt.Errorf("wrong ID: response ID %q does not match request ID %q", response.ID, expected)
	}

	if result == nil {
		return nil, nil
	}
	if err := json.Unmarshal(response.Result, result); err != nil {
		return nil, fmt.Errorf("error unmarshaling result: %w", err)
	}
	return result, nil
}
