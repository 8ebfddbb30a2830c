//go:build !production

package app

import "github.com/ndisuite/voicepipe/internal/engine"

// appendMockAdapter registers the canned development adapter. Production
// builds compile this out entirely.
func appendMockAdapter(adapters []engine.Adapter) []engine.Adapter {
	return append(adapters, engine.MockAdapter{})
}
