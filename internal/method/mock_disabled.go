//go:build production

package method

const mockCompiledIn = false
