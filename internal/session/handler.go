package session

import (
	"context"
	"fmt"

	"github.com/rbright/livescribe/internal/ipc"
)

// Handle serves remote-control commands for the owning process.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	var (
		view    View
		err     error
		message string
	)

	switch req.Command {
	case ipc.CommandStatus:
		view, err = c.Status(ctx)
		message = "status"
	case ipc.CommandStart:
		view, err = c.Start(ctx)
		message = "listening"
	case ipc.CommandStop:
		view, err = c.Stop(ctx)
		message = "stopped"
	case ipc.CommandMute:
		view, err = c.ToggleMute(ctx)
		message = "muted"
		if !view.Muted {
			message = "unmuted"
		}
	case ipc.CommandReset:
		view, err = c.Reset(ctx)
		message = "transcript cleared"
	default:
		view := c.View()
		return ipc.Response{OK: false, State: view.State().Label(), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}

	resp := ResponseFor(view)
	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.Message = message
	return resp
}

// ResponseFor renders v as an IPC response body without OK or Message set.
func ResponseFor(v View) ipc.Response {
	return ipc.Response{
		State:     v.State().Label(),
		Lines:     len(v.Lines),
		Interim:   v.Interim,
		LastError: v.LastError,
	}
}
