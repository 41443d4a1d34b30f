package prompt

import (
	"appupdate-go/internal/ota"

	log "github.com/sirupsen/logrus"
)

// HeadlessRenderer logs both surfaces and answers every dialog with a fixed action.
// It is meant for unattended devices with no one to ask.
type HeadlessRenderer struct {
	answer Action
}

func NewHeadlessRenderer(autoConfirm bool) *HeadlessRenderer {
	if autoConfirm {
		return &HeadlessRenderer{answer: ActionConfirm}
	}
	return &HeadlessRenderer{answer: ActionCancel}
}

func (r *HeadlessRenderer) RenderLoader(opts ota.LoaderOptions) {
	log.Infof("Loader: %s", loaderText(opts))
}

func (r *HeadlessRenderer) ClearLoader() {
	log.Debug("Loader hidden")
}

func (r *HeadlessRenderer) RenderDialog(opts ota.DialogOptions, respond func(Action)) {
	log.Infof("Dialog %q answered automatically: %s", opts.Title, r.answer)
	respond(r.answer)
}

func (r *HeadlessRenderer) ClearDialog() {}
