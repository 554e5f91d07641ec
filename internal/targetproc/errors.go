package targetproc

import "errors"

// Host-internal target-process error taxonomy (spec.md §7). These never
// cross the guest boundary directly; the host ABI layer maps them onto
// the swallow-and-return-zero contract of scan_signature/read_into_buf,
// or onto the "tick failed, go Idle" path of update_values.
var (
	ErrProcessNotFound = errors.New("process does not exist")
	ErrListProcesses   = errors.New("failed to list processes")
	ErrListModules     = errors.New("failed to list modules")
	ErrOpenProcess     = errors.New("failed to open process")
	ErrModuleNotFound  = errors.New("module does not exist")
	ErrReadMemory      = errors.New("failed to read memory")
	ErrUnsupportedOS   = errors.New("target-process access is not supported on this platform")
)
