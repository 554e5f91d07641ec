//go:build !linux

package targetproc

import "fmt"

// openPlatform on non-Linux platforms fails fast rather than silently
// degrading, the same posture the teacher's sandbox backend takes when a
// platform cannot enforce a requested isolation level.
func openPlatform(name string) (*Process, error) {
	return nil, fmt.Errorf("%w (process %q)", ErrUnsupportedOS, name)
}
