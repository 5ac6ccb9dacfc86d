package mcpgateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603

	// Gateway specific codes.
	codeUnauthorized       = -32001
	codeIntegrationFailure = -32002
	codeRateLimited        = -32003
)

const maxBodyBytes = 1 << 20

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// parseRequest validates the envelope. On failure it returns a nil request
// with the protocol error code and message to emit.
func parseRequest(body []byte) (*rpcRequest, int, string) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, codeInvalidRequest, "batch requests are not supported"
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, codeParseError, fmt.Sprintf("parse error: %v", err)
	}
	if req.JSONRPC != "2.0" {
		return nil, codeInvalidRequest, `jsonrpc must be "2.0"`
	}
	if req.Method == "" {
		return nil, codeInvalidRequest, "method is required"
	}
	if !validID(req.ID) {
		return nil, codeInvalidRequest, "request id is required"
	}
	return &req, 0, ""
}

// validID accepts string or number ids. Notifications (absent or null ids)
// are rejected: every call to the gateway gets a response.
func validID(id json.RawMessage) bool {
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return false
	}
	switch id[0] {
	case '"', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

func (g *Gateway) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	g.writeResponse(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (g *Gateway) writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data any) {
	g.writeResponse(w, status, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}

func (g *Gateway) writeResponse(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.logError("write response", err)
	}
}
