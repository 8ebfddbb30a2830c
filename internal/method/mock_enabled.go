//go:build !production

package method

// mockCompiledIn is true only in development builds; production builds
// exclude the mock method entirely.
const mockCompiledIn = true
