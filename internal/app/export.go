package app

import (
	"context"

	"github.com/rbright/livescribe/internal/ipc"
	"github.com/rbright/livescribe/internal/output"
	"github.com/rbright/livescribe/internal/session"
	"github.com/rbright/livescribe/internal/transcript"
	"github.com/rbright/livescribe/internal/ui"
)

// exporter copies the assembled transcript of a running session to the clipboard.
type exporter struct {
	controller *session.Controller
	committer  *output.Committer
	options    transcript.Options
}

// Copy commits the current transcript and returns the number of lines copied.
func (e *exporter) Copy(ctx context.Context) (int, error) {
	view, err := e.controller.Status(ctx)
	if err != nil {
		return 0, err
	}
	text := transcript.Assemble(view.Lines, e.options)
	if text == "" {
		return 0, nil
	}
	if err := e.committer.Commit(ctx, text); err != nil {
		return 0, err
	}
	return len(view.Lines), nil
}

// handler serves the controller commands plus copy over the socket.
func (e *exporter) handler() ipc.Handler {
	return ipc.HandlerFunc(func(ctx context.Context, req ipc.Request) ipc.Response {
		if req.Command != ipc.CommandCopy {
			return e.controller.Handle(ctx, req)
		}

		n, err := e.Copy(ctx)
		resp := session.ResponseFor(e.controller.View())
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
		resp.Message = ui.CopyNote(n)
		return resp
	})
}
