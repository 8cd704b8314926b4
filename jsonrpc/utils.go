package jsonrpc

import (
	"github.com/creachadair/jrpc2"
)

// JSON-RPC Method name constants
const (
	MethodChainGetBlock          = "chain.getBlock"
	MethodChainGetBlockByHash    = "chain.getBlockByHash"
	MethodChainGetBlockCount     = "chain.getBlockCount"
	MethodChainValidate          = "chain.validate"
	MethodChainGetStarsByAddress = "chain.getStarsByAddress"

	MethodHealthCheck = "health.check"
)

// Implementation-defined server error codes.
const (
	codeBlockNotFound jrpc2.Code = -32004
	codeChainClosed   jrpc2.Code = -32005
)
