// Package ipc carries control commands to a live recording session over a
// unix socket.
package ipc

// Request is one control command for the active session owner.
// Commands: status, pause, resume, stop, cancel, drain.
type Request struct {
	Command string `json:"command"`
}

// Response reports command outcome plus a session snapshot.
type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	ElapsedMS int64  `json:"elapsedMs,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}
