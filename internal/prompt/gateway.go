package prompt

import (
	"appupdate-go/internal/ota"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Action is a user interaction with the dialog.
type Action int

const (
	ActionConfirm Action = iota
	ActionCancel
	ActionBackdrop
	ActionBack
)

func (a Action) String() string {
	switch a {
	case ActionConfirm:
		return "confirm"
	case ActionCancel:
		return "cancel"
	case ActionBackdrop:
		return "backdrop"
	case ActionBack:
		return "back"
	}
	return "unknown"
}

// Renderer draws the two surfaces. RenderDialog may call respond at most once,
// from any goroutine; responses to a dialog that is no longer showing are dropped.
type Renderer interface {
	RenderLoader(opts ota.LoaderOptions)
	ClearLoader()
	RenderDialog(opts ota.DialogOptions, respond func(Action))
	ClearDialog()
}

type dialogSlot struct {
	generation uint64
	opts       ota.DialogOptions
	once       *sync.Once
}

// Gateway owns the process-wide loader and dialog. Each surface is a single slot:
// showing again replaces it.
type Gateway struct {
	renderer Renderer

	mu            sync.Mutex
	loaderVisible bool
	loader        ota.LoaderOptions
	dialog        *dialogSlot
	generation    uint64
}

var _ ota.PromptGateway = (*Gateway)(nil)

func NewGateway(r Renderer) *Gateway {
	return &Gateway{renderer: r}
}

func (g *Gateway) ShowLoader(opts ota.LoaderOptions) {
	g.mu.Lock()
	g.loaderVisible = true
	g.loader = opts
	g.mu.Unlock()
	g.renderer.RenderLoader(opts)
}

func (g *Gateway) HideLoader() {
	g.mu.Lock()
	visible := g.loaderVisible
	g.loaderVisible = false
	g.mu.Unlock()
	if visible {
		g.renderer.ClearLoader()
	}
}

// ShowDialog displays opts. A dialog that is still showing is replaced and
// resolved as cancelled, so every ShowDialog gets exactly one callback.
func (g *Gateway) ShowDialog(opts ota.DialogOptions) {
	g.mu.Lock()
	previous := g.dialog
	g.generation++
	slot := &dialogSlot{generation: g.generation, opts: opts, once: &sync.Once{}}
	g.dialog = slot
	g.mu.Unlock()

	if previous != nil {
		log.Debug("Replacing visible update dialog")
		resolve(previous, ActionCancel)
	}
	g.renderer.RenderDialog(opts, func(a Action) { g.respond(slot.generation, a) })
}

// HideDialog dismisses a showing dialog as cancelled. It is a no-op when nothing is showing.
func (g *Gateway) HideDialog() {
	g.mu.Lock()
	slot := g.dialog
	g.dialog = nil
	g.mu.Unlock()
	if slot == nil {
		return
	}
	g.renderer.ClearDialog()
	resolve(slot, ActionCancel)
}

// Confirm presses the confirm button of the showing dialog.
func (g *Gateway) Confirm() bool { return g.trigger(ActionConfirm) }

// Cancel presses the cancel button of the showing dialog.
func (g *Gateway) Cancel() bool { return g.trigger(ActionCancel) }

// TapBackdrop dismisses the showing dialog.
func (g *Gateway) TapBackdrop() bool { return g.trigger(ActionBackdrop) }

// Back handles the platform back gesture. It reports whether a dialog consumed it.
func (g *Gateway) Back() bool { return g.trigger(ActionBack) }

// LoaderVisible reports whether the loader is showing and with which options.
func (g *Gateway) LoaderVisible() (ota.LoaderOptions, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loader, g.loaderVisible
}

// DialogVisible reports whether a dialog is showing and with which options.
func (g *Gateway) DialogVisible() (ota.DialogOptions, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dialog == nil {
		return ota.DialogOptions{}, false
	}
	return g.dialog.opts, true
}

func (g *Gateway) trigger(a Action) bool {
	g.mu.Lock()
	slot := g.dialog
	g.mu.Unlock()
	if slot == nil {
		return false
	}
	return g.respond(slot.generation, a)
}

func (g *Gateway) respond(generation uint64, a Action) bool {
	g.mu.Lock()
	slot := g.dialog
	if slot == nil || slot.generation != generation {
		g.mu.Unlock()
		return false
	}
	g.dialog = nil
	g.mu.Unlock()

	g.renderer.ClearDialog()
	resolve(slot, a)
	return true
}

func resolve(slot *dialogSlot, a Action) {
	slot.once.Do(func() {
		cb := slot.opts.OnCancel
		if a == ActionConfirm {
			cb = slot.opts.OnConfirm
		}
		if cb != nil {
			cb()
		}
	})
}
