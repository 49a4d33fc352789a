package codec

// Server result codes. Numeric values are ABI-fixed by the
// server, same as field and operator ids.
const (
	ResultOK                 byte = 0
	ResultServerError        byte = 1
	ResultNotFound           byte = 2
	ResultGenerationMismatch byte = 3
	ResultParameter          byte = 4
	ResultRecordExists       byte = 5
	ResultBinExists          byte = 6
	ResultClusterMismatch    byte = 7
	ResultPartitionUnavail   byte = 8
	ResultTimeout            byte = 9
	ResultForbidden          byte = 11
	ResultScanAbort          byte = 12
	ResultUDFError           byte = 13
	ResultQueryInProgress    byte = 14
	ResultIndexFound         byte = 15
)

// RetriableResultCode reports whether a nonzero server result code should
// be retried by the Router after a tend cycle: cluster-key mismatch,
// partition-unavailable and server timeout/busy are retried;
// GENERATION_ERR, KEY_EXISTS, NOT_FOUND, PARAMETER, BIN_EXISTS are never
// retried. This is the single source of truth the router and the root
// package's error taxonomy both consult, so the two can't drift apart.
func RetriableResultCode(code byte) bool {
	switch code {
	case ResultClusterMismatch, ResultPartitionUnavail, ResultTimeout:
		return true
	default:
		return false
	}
}
