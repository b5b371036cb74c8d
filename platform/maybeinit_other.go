//go:build !linux

package platform

// MaybeSandboxInit is a no-op on platforms that do not use the re-exec
// sandbox helper. It always returns false.
func MaybeSandboxInit() bool {
	return false
}
