//go:build production

package app

import "github.com/ndisuite/voicepipe/internal/engine"

func appendMockAdapter(adapters []engine.Adapter) []engine.Adapter {
	return adapters
}
