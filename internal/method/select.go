package method

// Availability mirrors the capability snapshot booleans each method depends on.
type Availability struct {
	Streaming bool
	Speech    bool
	Recorder  bool
}

// defaultOrder prefers lowest end-to-end latency and highest accuracy first.
// Local is the last resort before a visibly degraded result; Mock never masks
// a real method.
var defaultOrder = []Method{Streaming, HostedAPI, OnDevice, Local, Mock}

// Select returns the ordered fallback chain for one capability snapshot.
// Methods whose runtime dependency is absent are excluded. Mock is included
// only outside production. A supplied preferred method moves to the front;
// the rest keep their relative order.
func Select(avail Availability, preferred Method, production bool) []Method {
	chain := make([]Method, 0, len(defaultOrder))
	for _, m := range defaultOrder {
		if !viable(m, avail, production) {
			continue
		}
		chain = append(chain, m)
	}

	if preferred == "" {
		return chain
	}

	reordered := make([]Method, 0, len(chain))
	found := false
	for _, m := range chain {
		if m == preferred {
			found = true
			continue
		}
		reordered = append(reordered, m)
	}
	if !found {
		return chain
	}
	return append([]Method{preferred}, reordered...)
}

// viable reports whether a method's dependency is present in the snapshot.
func viable(m Method, avail Availability, production bool) bool {
	switch m {
	case Streaming:
		return avail.Streaming
	case HostedAPI:
		// Hosted upload needs only a finished blob, which needs a recorder.
		return avail.Recorder
	case OnDevice:
		return avail.Speech
	case Local:
		return true
	case Mock:
		return !production && mockCompiledIn
	default:
		return false
	}
}
