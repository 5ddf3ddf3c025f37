// Package ui provides the terminal interface for walking the maze.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/game"
	"github.com/mazeofme/maze/internal/music"
	"github.com/mazeofme/maze/internal/narrative"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	ellipsis             = "…"

	headerHeight    = 2
	inputHeight     = 1
	statusBarHeight = 1
)

// Game is the part of the engine the interface drives. *game.Engine
// satisfies it.
type Game interface {
	Advance(ctx context.Context, choice string) game.Scene
	Talk(ctx context.Context, utterance string) (narrative.DialogueLine, error)
	Inspect(ctx context.Context, query string) (narrative.DialogueLine, error)
	Take(query string) (string, error)
	Feedback(liked bool) (string, error)
	Items() []string
	Inventory() []string
	RecentTalk(n int) []string
	MusicStats() (music.Stats, bool)
}

// NewProgram returns a new Tea program. ctx is passed to every game call.
func NewProgram(ctx context.Context, cfg Config, g Game) *tea.Program {
	log.Debug(
		"Starting maze",
		"glamour",
		cfg.GlamourEnabled,
		"session",
		cfg.Session,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(ctx, cfg, g), opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	sceneMsg                game.Scene
	lineMsg                 narrative.DialogueLine
	takenMsg                string
	helpRenderedMsg         string
	statusMessageTimeoutMsg struct{}
)

// state is the top-level application state.
type state int

const (
	stateBrowse state = iota
	stateThinking
	stateInput
)

func (s state) String() string {
	return map[state]string{
		stateBrowse:   "browsing",
		stateThinking: "waiting for the maze",
		stateInput:    "typing",
	}[s]
}

type inputMode int

const (
	inputTalk inputMode = iota
	inputInspect
	inputTake
)

var inputPrompts = map[inputMode]string{
	inputTalk:    "Say: ",
	inputInspect: "Inspect: ",
	inputTake:    "Take: ",
}

// Common stuff we'll need to access in all views.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	ctx    context.Context
	common *commonModel
	game   Game
	state  state

	scene    game.Scene
	hasScene bool
	line     narrative.DialogueLine
	items    []string
	thinking string

	showLog     bool
	showHelp    bool
	helpContent string

	mode     inputMode
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer
}

func newModel(ctx context.Context, cfg Config, g Game) model {
	if cfg.GlamourStyle == "" {
		cfg.GlamourStyle = styles.AutoStyle
	}
	if cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	vp := viewport.New(0, 0)
	// The arrow keys walk, so scrolling stays on the vim keys and paging.
	vp.KeyMap.Up = key.NewBinding(key.WithKeys("k"))
	vp.KeyMap.Down = key.NewBinding(key.WithKeys("j"))
	vp.KeyMap.Left = key.NewBinding(key.WithDisabled())
	vp.KeyMap.Right = key.NewBinding(key.WithDisabled())

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = subtleStyle

	ti := textinput.New()
	ti.CharLimit = 200

	return model{
		ctx:      ctx,
		common:   &commonModel{cfg: cfg},
		game:     g,
		state:    stateThinking,
		thinking: "Entering the maze",
		input:    ti,
		spinner:  sp,
		viewport: vp,
	}
}

func (m model) Init() tea.Cmd {
	log.Debug("Init() called", "state", m.state)
	return tea.Batch(m.spinner.Tick, advance(m.ctx, m.game, "start"))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Ctrl+C always quits no matter where in the application you are.
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case stateInput:
			return m.updateInput(msg)
		case stateThinking:
			if msg.String() == "q" {
				return m, tea.Quit
			}
			return m, nil
		case stateBrowse:
			if cmd, handled := m.handleKey(msg); handled {
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		cmds = append(cmds, m.setSize())
		m.setContent()
		if m.showHelp {
			cmds = append(cmds, renderHelp(m.common.cfg, m.common.width))
		}

	case spinner.TickMsg:
		if m.state != stateThinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sceneMsg:
		m.scene = game.Scene(msg)
		m.hasScene = true
		m.line = m.scene.Line
		m.items = m.game.Items()
		m.state = stateBrowse
		m.showLog = false
		m.setContent()
		m.viewport.GotoTop()
		log.Debug("entered room", "number", m.scene.Number, "theme", m.scene.Room.Theme)
		if m.scene.HasTrack && !m.scene.Playing {
			cmds = append(cmds, m.showStatusMessage("Music is still on its way", false))
		}

	case lineMsg:
		m.line = narrative.DialogueLine(msg)
		m.state = stateBrowse
		m.setContent()
		if m.showLog {
			m.viewport.GotoBottom()
		}

	case takenMsg:
		m.items = m.game.Items()
		m.state = stateBrowse
		m.setContent()
		cmds = append(cmds, m.showStatusMessage("Took the "+string(msg), false))

	case helpRenderedMsg:
		if !m.showHelp {
			return m, nil
		}
		m.helpContent = string(msg)
		cmds = append(cmds, m.setSize())

	case errMsg:
		log.Debug("action failed", "error", msg.err)
		m.state = stateBrowse
		cmds = append(cmds, m.showStatusMessage(msg.Error(), true))

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes a key while browsing. It reports whether the key was
// consumed.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		return tea.Quit, true

	case "left", "1":
		return m.walk("1"), true
	case "right", "2":
		return m.walk("2"), true
	case "up", "3":
		return m.walk("3"), true

	case "t":
		return m.startInput(inputTalk), true
	case "i":
		return m.startInput(inputInspect), true
	case "g":
		if len(m.items) == 0 {
			return m.showStatusMessage("Nothing here to take", true), true
		}
		return m.startInput(inputTake), true

	case "+", "=":
		return m.feedback(true), true
	case "-":
		return m.feedback(false), true

	case "l":
		m.showLog = !m.showLog
		m.setContent()
		if m.showLog {
			m.viewport.GotoBottom()
		} else {
			m.viewport.GotoTop()
		}
		return nil, true

	case "y":
		text := m.plainScene()
		// Copy using OSC 52
		te.Copy(text)
		// Copy using native system clipboard
		_ = copyToClipboard(text)
		return m.showStatusMessage("Copied the scene", false), true

	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			return renderHelp(m.common.cfg, m.common.width), true
		}
		m.helpContent = ""
		return m.setSize(), true

	case "ctrl+z":
		return tea.Suspend, true
	}
	return nil, false
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.input.Reset()
		m.state = stateBrowse
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.input.Reset()

		switch m.mode {
		case inputTalk:
			m.state = stateThinking
			m.thinking = "The figure is thinking"
			return m, tea.Batch(m.spinner.Tick, talk(m.ctx, m.game, text))
		case inputInspect:
			m.state = stateThinking
			m.thinking = "The figure looks closer"
			return m, tea.Batch(m.spinner.Tick, inspect(m.ctx, m.game, text))
		case inputTake:
			m.state = stateThinking
			m.thinking = "You reach for it"
			return m, tea.Batch(m.spinner.Tick, take(m.game, text))
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) walk(choice string) tea.Cmd {
	m.state = stateThinking
	m.thinking = "You walk on"
	return tea.Batch(m.spinner.Tick, advance(m.ctx, m.game, choice))
}

func (m *model) startInput(mode inputMode) tea.Cmd {
	m.mode = mode
	m.state = stateInput
	m.input.Prompt = inputPrompts[mode]
	m.input.Placeholder = ""
	switch mode {
	case inputInspect:
		if m.hasScene {
			m.input.Placeholder = strings.Join(m.scene.Room.Things(), ", ")
		}
	case inputTake:
		m.input.Placeholder = strings.Join(m.items, ", ")
	}
	return m.input.Focus()
}

func (m *model) feedback(liked bool) tea.Cmd {
	mood, err := m.game.Feedback(liked)
	if err != nil {
		return m.showStatusMessage(err.Error(), true)
	}
	verb := "Noted, more"
	if !liked {
		verb = "Noted, steering toward"
	}
	return m.showStatusMessage(fmt.Sprintf("%s %s rooms", verb, mood), false)
}

func (m *model) setSize() tea.Cmd {
	helpHeight := 0
	if m.helpContent != "" {
		helpHeight = strings.Count(m.helpContent, "\n") + 1
	}
	m.viewport.Width = m.common.width
	m.viewport.Height = max(0, m.common.height-headerHeight-inputHeight-statusBarHeight-helpHeight)
	return nil
}

func (m *model) setContent() {
	if m.showLog {
		m.viewport.SetContent(m.logContent())
		return
	}
	m.viewport.SetContent(m.sceneContent())
}

func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)

	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

// COMMANDS

func advance(ctx context.Context, g Game, choice string) tea.Cmd {
	return func() tea.Msg {
		return sceneMsg(g.Advance(ctx, choice))
	}
}

func talk(ctx context.Context, g Game, utterance string) tea.Cmd {
	return func() tea.Msg {
		line, err := g.Talk(ctx, utterance)
		if err != nil {
			return errMsg{err}
		}
		return lineMsg(line)
	}
}

func inspect(ctx context.Context, g Game, query string) tea.Cmd {
	return func() tea.Msg {
		line, err := g.Inspect(ctx, query)
		if err != nil {
			return errMsg{err}
		}
		return lineMsg(line)
	}
}

func take(g Game, query string) tea.Cmd {
	return func() tea.Msg {
		item, err := g.Take(query)
		if err != nil {
			return errMsg{err}
		}
		return takenMsg(item)
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
