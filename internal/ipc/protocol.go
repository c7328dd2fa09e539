package ipc

// Commands understood by the session owner.
const (
	CommandStatus = "status"
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandMute   = "mute"
	CommandReset  = "reset"
	CommandCopy   = "copy"
)

// Request is one newline-delimited JSON command.
type Request struct {
	Command string `json:"command"`
}

// Response reports the owner's session state after handling a Request.
type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Lines     int    `json:"lines,omitempty"`
	Interim   string `json:"interim,omitempty"`
	LastError string `json:"last_error,omitempty"`
}
