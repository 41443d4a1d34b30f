package prompt

import (
	"appupdate-go/internal/ota"
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const defaultSpinnerInterval = 120 * time.Millisecond

// spinner redraws one status line until stopped.
type spinner struct {
	writer   io.Writer
	interval time.Duration
	frames   []rune

	text   chan string
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func newSpinner(w io.Writer, interval time.Duration, text string) *spinner {
	sp := &spinner{
		writer:   w,
		interval: interval,
		frames:   []rune{'|', '/', '-', '\\'},
		text:     make(chan string, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go sp.loop(text)
	return sp
}

func (s *spinner) setText(text string) {
	select {
	case <-s.text:
	default:
	}
	select {
	case s.text <- text:
	default:
	}
}

func (s *spinner) stop() {
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *spinner) loop(text string) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	frame := 0
	render := func() {
		_, _ = fmt.Fprintf(s.writer, "\r\033[2K%c %s", s.frames[frame%len(s.frames)], text)
		frame++
	}
	render()
	for {
		select {
		case <-s.stopCh:
			_, _ = fmt.Fprint(s.writer, "\r\033[2K")
			return
		case text = <-s.text:
			render()
		case <-ticker.C:
			render()
		}
	}
}

// TerminalRenderer draws the loader as a spinner line and the dialog as a
// y/n question answered on in.
type TerminalRenderer struct {
	out      io.Writer
	in       *bufio.Reader
	interval time.Duration

	mu      sync.Mutex
	spinner *spinner

	// One goroutine owns in; each line goes to the dialog showing at the time.
	readOnce sync.Once
	pending  func(Action)
	confirm  string
	eof      bool
}

func NewTerminalRenderer(in io.Reader, out io.Writer) *TerminalRenderer {
	if out == nil {
		out = io.Discard
	}
	return &TerminalRenderer{out: out, in: bufio.NewReader(in), interval: defaultSpinnerInterval}
}

func loaderText(opts ota.LoaderOptions) string {
	if strings.TrimSpace(opts.Text) == "" {
		return "Updating..."
	}
	return opts.Text
}

func (r *TerminalRenderer) RenderLoader(opts ota.LoaderOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spinner != nil {
		r.spinner.setText(loaderText(opts))
		return
	}
	r.spinner = newSpinner(r.out, r.interval, loaderText(opts))
}

func (r *TerminalRenderer) ClearLoader() {
	r.mu.Lock()
	sp := r.spinner
	r.spinner = nil
	r.mu.Unlock()
	if sp != nil {
		sp.stop()
	}
}

// RenderDialog prints the question and hands the next answer line to respond.
// An empty line or EOF cancels; "b" or "back" is the back gesture.
func (r *TerminalRenderer) RenderDialog(opts ota.DialogOptions, respond func(Action)) {
	_, _ = fmt.Fprintf(r.out, "\n%s\n%s\n[y] %s  [n] %s: ", opts.Title, opts.Message, opts.ConfirmText, opts.CancelText)
	r.mu.Lock()
	if r.eof {
		r.mu.Unlock()
		respond(ActionCancel)
		return
	}
	r.pending = respond
	r.confirm = opts.ConfirmText
	r.mu.Unlock()
	r.readOnce.Do(func() { go r.readAnswers() })
}

// ClearDialog detaches the showing dialog; a line typed afterwards is dropped.
func (r *TerminalRenderer) ClearDialog() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out)
}

func (r *TerminalRenderer) readAnswers() {
	for {
		line, err := r.in.ReadString('\n')
		r.mu.Lock()
		respond, confirm := r.pending, r.confirm
		r.pending = nil
		if err != nil {
			r.eof = true
		}
		r.mu.Unlock()

		if respond != nil {
			if err != nil && line == "" {
				respond(ActionCancel)
			} else {
				respond(parseAnswer(line, confirm))
			}
		}
		if err != nil {
			return
		}
	}
}

func parseAnswer(line, confirmText string) Action {
	answer := strings.ToLower(strings.TrimSpace(line))
	switch {
	case answer == "y" || answer == "yes":
		return ActionConfirm
	case confirmText != "" && answer == strings.ToLower(confirmText):
		return ActionConfirm
	case answer == "b" || answer == "back":
		return ActionBack
	}
	return ActionCancel
}
