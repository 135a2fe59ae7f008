package handlers

import (
	"log/slog"

	"github.com/cfilipov/copilot-lexical/internal/tools"
	"github.com/cfilipov/copilot-lexical/internal/ws"
)

func RegisterToolHandlers(app *App) {
	app.WS.Handle("listTools", app.handleListTools)
	app.WS.Handle("executeTool", app.handleExecuteTool)
}

// executeTool runs a tool and broadcasts the change when it wrote the document.
func (app *App) executeTool(docID, name string, args []byte, origin string) (*tools.Result, error) {
	res, err := app.Tools.Execute(app.Documents, documentID(docID), name, args)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		app.documentChanged(DocumentChange{ID: res.Document.ID, Revision: res.Document.Revision, Origin: origin})
	}
	return res, nil
}

func (app *App) handleListTools(c *ws.Conn, msg *ws.ClientMessage) {
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, struct {
			OK    bool         `json:"ok"`
			Tools []tools.Tool `json:"tools"`
		}{
			OK:    true,
			Tools: app.Tools.List(),
		})
	}
}

// handleExecuteTool runs [name, args, documentID]. Calls are rate limited
// per connection.
func (app *App) handleExecuteTool(c *ws.Conn, msg *ws.ClientMessage) {
	args := parseArgs(msg)
	name := argString(args, 0)
	if name == "" {
		sendError(c, msg, errMissingArg("tool name"))
		return
	}
	if !c.Allow() {
		slog.Warn("tool rate limited", "conn", c.ID(), "tool", name)
		sendError(c, msg, errRateLimited)
		return
	}

	res, err := app.executeTool(argString(args, 2), name, argRaw(args, 1), c.ID())
	if err != nil {
		slog.Warn("execute tool", "tool", name, "err", err)
		sendError(c, msg, err)
		return
	}
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, struct {
			OK     bool          `json:"ok"`
			Result *tools.Result `json:"result"`
		}{
			OK:     true,
			Result: res,
		})
	}
}
