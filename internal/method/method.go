// Package method names the transcription methods and ranks them into a
// fallback chain based on detected runtime capabilities.
package method

// Method identifies one transcription strategy in the fallback chain.
type Method string

const (
	// Streaming sends audio over a duplex socket for live transcription.
	Streaming Method = "streaming"
	// HostedAPI uploads the finished segment to a hosted transcription API.
	HostedAPI Method = "hosted-api"
	// OnDevice replays the segment through a local speech recognizer.
	OnDevice Method = "on-device"
	// Local emits low-confidence heuristic filler text. Never touches the
	// network; exists so the pipeline always terminates with some text.
	Local Method = "local"
	// Mock returns canned text. Compiled out of production builds.
	Mock Method = "mock"
)

// Confidence is the relative trust ranking assigned to results produced by
// each method. These are rankings, not probabilities.
func Confidence(m Method) float64 {
	switch m {
	case Streaming:
		return 0.8
	case HostedAPI:
		return 0.9
	case OnDevice:
		return 0.7
	case Local:
		return 0.3
	case Mock:
		return 0.95
	default:
		return 0
	}
}

// Known reports whether m names a defined method.
func Known(m Method) bool {
	switch m {
	case Streaming, HostedAPI, OnDevice, Local, Mock:
		return true
	default:
		return false
	}
}
