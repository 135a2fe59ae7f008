package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cfilipov/copilot-lexical/internal/editorstate"
	"github.com/cfilipov/copilot-lexical/internal/models"
	"github.com/cfilipov/copilot-lexical/internal/tools"
	"github.com/cfilipov/copilot-lexical/internal/ws"
)

// DocumentChange is broadcast whenever a stored document is written or
// deleted. Origin is the connection that caused it, empty for HTTP clients.
type DocumentChange struct {
	ID       string `json:"id"`
	Revision string `json:"revision,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

func RegisterDocumentHandlers(app *App) {
	app.WS.Handle("getDocument", app.handleGetDocument)
	app.WS.Handle("saveDocument", app.handleSaveDocument)
	app.WS.Handle("deleteDocument", app.handleDeleteDocument)
}

func documentID(id string) string {
	if id == "" {
		return tools.DefaultDocumentID
	}
	return id
}

// saveDocument validates content strictly and stores it. Editors only ever
// send states they produced, so a state that does not parse is rejected
// rather than coerced.
func (app *App) saveDocument(id string, content []byte, ifRevision, origin string) (*models.Document, error) {
	state, err := editorstate.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidState, err)
	}
	doc, err := app.Documents.Put(documentID(id), state, ifRevision)
	if err != nil {
		return nil, err
	}
	app.documentChanged(DocumentChange{ID: doc.ID, Revision: doc.Revision, Origin: origin})
	return doc, nil
}

func (app *App) deleteDocument(id, origin string) error {
	if err := app.Documents.Delete(id); err != nil {
		return err
	}
	app.documentChanged(DocumentChange{ID: id, Deleted: true, Origin: origin})
	return nil
}

func (app *App) documentChanged(change DocumentChange) {
	slog.Debug("document changed", "id", change.ID, "revision", change.Revision, "deleted", change.Deleted)
	ws.Broadcast(app.WS, eventDocumentChanged, change)
}

// handleGetDocument returns the stored document, or an unsaved one holding
// a single empty paragraph.
func (app *App) handleGetDocument(c *ws.Conn, msg *ws.ClientMessage) {
	args := parseArgs(msg)
	doc, err := app.Documents.GetOrEmpty(documentID(argString(args, 0)))
	if err != nil {
		sendError(c, msg, err)
		return
	}
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, struct {
			OK       bool             `json:"ok"`
			Document *models.Document `json:"document"`
		}{
			OK:       true,
			Document: doc,
		})
	}
}

// handleSaveDocument stores [id, state, ifRevision]. The state is the
// editor's serialized JSON, either as an object or as a string.
func (app *App) handleSaveDocument(c *ws.Conn, msg *ws.ClientMessage) {
	args := parseArgs(msg)
	raw := argRaw(args, 1)
	if raw == nil {
		sendError(c, msg, errMissingArg("state"))
		return
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		raw = json.RawMessage(s)
	}

	doc, err := app.saveDocument(argString(args, 0), raw, argString(args, 2), c.ID())
	if err != nil {
		slog.Warn("save document", "err", err, "conn", c.ID())
		sendError(c, msg, err)
		return
	}
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, struct {
			OK       bool   `json:"ok"`
			ID       string `json:"id"`
			Revision string `json:"revision"`
		}{
			OK:       true,
			ID:       doc.ID,
			Revision: doc.Revision,
		})
	}
}

func (app *App) handleDeleteDocument(c *ws.Conn, msg *ws.ClientMessage) {
	args := parseArgs(msg)
	if err := app.deleteDocument(documentID(argString(args, 0)), c.ID()); err != nil {
		sendError(c, msg, err)
		return
	}
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, ws.OkResponse{OK: true})
	}
}
