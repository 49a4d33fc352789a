package aspike

import (
	"fmt"

	"github.com/synnergy-kv/aspike/internal/codec"
)

// Kind is the top-level error taxonomy.
type Kind int

const (
	KindOK Kind = iota
	KindClient
	KindNetwork
	KindTimeout
	KindPool
	KindServer
	KindCluster
	KindAuth
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "OK"
	case KindClient:
		return "Client"
	case KindNetwork:
		return "Network"
	case KindTimeout:
		return "Timeout"
	case KindPool:
		return "Pool"
	case KindServer:
		return "Server"
	case KindCluster:
		return "Cluster"
	case KindAuth:
		return "Auth"
	case KindAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Server result codes.
const (
	ResultOK                 = 0
	ResultServerError        = 1
	ResultNotFound           = 2
	ResultGenerationMismatch = 3
	ResultParameter          = 4
	ResultRecordExists       = 5
	ResultBinExists          = 6
	ResultClusterMismatch    = 7
	ResultPartitionUnavail   = 8
	ResultTimeout            = 9
	ResultForbidden          = 11
	ResultScanAbort          = 12
	ResultUDFError           = 13
	ResultQueryInProgress    = 14
	ResultIndexFound         = 15
)

// Error is the client-wide error type: a kind, an optional server result
// code, a message, and the wrapped cause.
type Error struct {
	Kind       Kind
	ResultCode int
	Msg        string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("aspike: %s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("aspike: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func newClientErr(msg string) *Error {
	return &Error{Kind: KindClient, Msg: msg}
}

func newClusterErr(msg string, cause error) *Error {
	return &Error{Kind: KindCluster, Msg: msg, Cause: cause}
}

func newServerErr(code int) *Error {
	return &Error{Kind: KindServer, ResultCode: code, Msg: resultCodeText(code)}
}

func newTimeoutErr(cause error) *Error {
	return &Error{Kind: KindTimeout, Msg: "operation timed out", Cause: cause}
}

func newNetworkErr(cause error) *Error {
	return &Error{Kind: KindNetwork, Msg: "network failure", Cause: cause}
}

func resultCodeText(code int) string {
	switch code {
	case ResultNotFound:
		return "not found"
	case ResultGenerationMismatch:
		return "generation mismatch"
	case ResultParameter:
		return "bad parameter"
	case ResultRecordExists:
		return "record exists"
	case ResultBinExists:
		return "bin exists"
	case ResultClusterMismatch:
		return "cluster key mismatch"
	case ResultPartitionUnavail:
		return "partition unavailable"
	case ResultTimeout:
		return "server timeout"
	case ResultForbidden:
		return "forbidden"
	case ResultScanAbort:
		return "scan aborted"
	case ResultUDFError:
		return "udf error"
	case ResultQueryInProgress:
		return "query in progress"
	case ResultIndexFound:
		return "index already exists"
	default:
		return fmt.Sprintf("server error %d", code)
	}
}

// retriableResultCode reports whether a server result code should be
// retried by the router: GENERATION_ERR, KEY_EXISTS,
// NOT_FOUND, PARAMETER, BIN_EXISTS are never retried. Delegates to
// internal/codec.RetriableResultCode, the single source of truth the
// router itself also consults (internal/router/router.go), so the two
// layers can't drift apart.
func retriableResultCode(code int) bool {
	return codec.RetriableResultCode(byte(code))
}
