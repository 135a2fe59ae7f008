package handlers

import (
	"log/slog"

	"github.com/cfilipov/copilot-lexical/internal/editorstate"
	"github.com/cfilipov/copilot-lexical/internal/models"
	"github.com/cfilipov/copilot-lexical/internal/tools"
	"github.com/cfilipov/copilot-lexical/internal/ws"
)

const (
	appTitle = "Jupyter UI ❤️ Lexical + CopilotKit"

	copilotTitle   = "Lexical AI Copilot"
	copilotInitial = "Hi! I can help you edit the Lexical document.\n\nTry asking:\n" +
		"• What tools do you have?\n" +
		"• Insert an example YouTube video\n" +
		"• Insert a table with three letter words\n" +
		"• Add a heading and some sample text"
	copilotInstructions = "You are an AI assistant helping users edit a Lexical document. " +
		"You can insert various types of content including text, code blocks, tables, images, YouTube videos, and Jupyter cells."
	missingKeyWarning = "CopilotKit API key not found. Create a .env file with VITE_COPILOT_KIT_API_KEY to enable AI features."
)

// Push and broadcast event names.
const (
	eventInfo            = "info"
	eventKernelChanged   = "kernelChanged"
	eventDocumentChanged = "documentChanged"
	EventDistChanged     = "distChanged"
)

// CopilotInfo tells the page whether to mount the AI sidebar and how.
type CopilotInfo struct {
	Enabled             bool   `json:"enabled"`
	PublicAPIKey        string `json:"publicApiKey,omitempty"`
	Title               string `json:"title"`
	Initial             string `json:"initial"`
	Instructions        string `json:"instructions"`
	DefaultOpen         bool   `json:"defaultOpen"`
	ClickOutsideToClose bool   `json:"clickOutsideToClose"`
}

// AppInfo is the screen composition: which mode the page runs in and what it
// mounts.
type AppInfo struct {
	Title      string                   `json:"title"`
	Version    string                   `json:"version"`
	HasKernel  bool                     `json:"hasKernel"`
	JupyterURL string                   `json:"jupyterUrl,omitempty"`
	Warning    string                   `json:"warning,omitempty"`
	Copilot    CopilotInfo              `json:"copilot"`
	Editor     editorstate.EditorConfig `json:"editor"`
	DocumentID string                   `json:"documentId"`
	Tools      []tools.Tool             `json:"tools,omitempty"`
}

type kernelChange struct {
	HasKernel bool `json:"hasKernel"`
}

func RegisterAppHandlers(app *App) {
	app.WS.HandleConnect(app.handleConnect)
	app.WS.Handle("getApp", app.handleGetApp)
	app.WS.Handle("setKernel", app.handleSetKernel)
}

// resolveKernel picks the runtime mode. An explicit kernel parameter wins and
// only the string "true" selects the runtime; otherwise the persisted toggle
// applies, defaulting to false.
func (app *App) resolveKernel(param *string) bool {
	if param != nil {
		return *param == "true"
	}
	on, err := app.Settings.GetBool(models.SettingKernel)
	if err != nil {
		slog.Warn("read kernel setting", "err", err)
		return false
	}
	return on
}

func (app *App) appInfo(kernelParam *string) AppInfo {
	cfg := app.Config
	key := cfg.CopilotKey

	info := AppInfo{
		Title:      appTitle,
		Version:    app.Version,
		HasKernel:  app.resolveKernel(kernelParam),
		JupyterURL: cfg.JupyterURL,
		Copilot: CopilotInfo{
			Enabled:      key != "",
			PublicAPIKey: key,
			Title:        copilotTitle,
			Initial:      copilotInitial,
			Instructions: copilotInstructions,
			DefaultOpen:  true,
		},
		Editor:     editorstate.Config(),
		DocumentID: tools.DefaultDocumentID,
	}
	if key == "" {
		info.Warning = missingKeyWarning
	} else {
		info.Tools = app.Tools.List()
	}
	return info
}

// setKernel persists the runtime toggle and tells every page about it.
func (app *App) setKernel(on bool) error {
	if err := app.Settings.SetBool(models.SettingKernel, on); err != nil {
		return err
	}
	slog.Info("runtime mode changed", "hasKernel", on)
	ws.Broadcast(app.WS, eventKernelChanged, kernelChange{HasKernel: on})
	return nil
}

func (app *App) handleConnect(c *ws.Conn) {
	ws.SendEvent(c, eventInfo, struct {
		Version string `json:"version"`
		ConnID  string `json:"connId"`
	}{
		Version: app.Version,
		ConnID:  c.ID(),
	})
}

// handleGetApp returns the screen composition. The optional first argument
// is the page's kernel query parameter.
func (app *App) handleGetApp(c *ws.Conn, msg *ws.ClientMessage) {
	args := parseArgs(msg)
	var param *string
	if raw := argRaw(args, 0); raw != nil && string(raw) != "null" {
		v := argString(args, 0)
		if v == "" {
			v = string(raw) // bare true/false
		}
		param = &v
	}

	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, struct {
			OK  bool    `json:"ok"`
			App AppInfo `json:"app"`
		}{
			OK:  true,
			App: app.appInfo(param),
		})
	}
}

func (app *App) handleSetKernel(c *ws.Conn, msg *ws.ClientMessage) {
	on, ok := argBool(parseArgs(msg), 0)
	if !ok {
		sendError(c, msg, errMissingArg("hasKernel"))
		return
	}
	if err := app.setKernel(on); err != nil {
		slog.Error("set kernel", "err", err)
		sendError(c, msg, err)
		return
	}
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, struct {
			OK        bool `json:"ok"`
			HasKernel bool `json:"hasKernel"`
		}{
			OK:        true,
			HasKernel: on,
		})
	}
}
