package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const helpMarkdown = `| Key | Action |
|---|---|
| ← or 1 | take the left path |
| → or 2 | take the right path |
| ↑ or 3 | go forward |
| t | talk to the figure |
| i | inspect something in the room |
| g | take an item |
| + / - | like or dislike this mood |
| l | toggle the conversation log |
| y | copy the scene |
| j/k, pgup/pgdn | scroll |
| ? | close help |
| q | quit |
`

var (
	copyToClipboard = clipboard.WriteAll
	titleCase       = cases.Title(language.English)
)

func (m model) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.headerView()+"\n\n")
	fmt.Fprint(&b, m.viewport.View()+"\n")
	fmt.Fprint(&b, m.inputView()+"\n")
	m.statusBarView(&b)

	if m.helpContent != "" {
		fmt.Fprint(&b, "\n"+m.helpContent)
	}
	return b.String()
}

func (m model) contentWidth() int {
	w := m.common.width - 4
	if mw := int(m.common.cfg.GlamourMaxWidth); mw > 0 && mw < w { //nolint:gosec
		w = mw
	}
	return max(w, 20)
}

func (m model) headerView() string {
	if !m.hasScene {
		return " " + subtleStyle.Render("The maze")
	}

	room := m.scene.Room
	left := fmt.Sprintf(" %s  %s",
		roomTitleStyle.Render(fmt.Sprintf("Room %d", m.scene.Number)),
		moodStyle(room.Theme).Render(titleCase.String(room.Theme)),
	)

	var right string
	if m.scene.HasTrack {
		right = "♪ " + m.scene.Track.String() + " "
	}
	avail := m.common.width - ansi.PrintableRuneWidth(left) - 1
	if avail <= 0 || right == "" {
		return left
	}
	right = runewidth.Truncate(right, avail, ellipsis)
	padding := max(1, m.common.width-ansi.PrintableRuneWidth(left)-runewidth.StringWidth(right))
	return left + strings.Repeat(" ", padding) + subtleStyle.Render(right)
}

func (m model) sceneContent() string {
	if !m.hasScene {
		return ""
	}
	w := m.contentWidth()
	room := m.scene.Room

	var b strings.Builder
	b.WriteString(wordwrap.String(room.Description, w))
	b.WriteString("\n\n")
	if len(m.items) > 0 {
		b.WriteString("You notice: " + itemStyle.Render(strings.Join(m.items, ", ")))
		b.WriteString("\n\n")
	}
	if m.line.Text != "" {
		b.WriteString(npcStyle.Render(wordwrap.String("“"+m.line.Text+"”", w)))
		b.WriteString("\n\n")
	}
	if inv := m.game.Inventory(); len(inv) > 0 {
		b.WriteString(subtleStyle.Render(wordwrap.String("Carrying: "+strings.Join(inv, ", "), w)))
		b.WriteString("\n")
	}
	return indent(b.String(), 2)
}

func (m model) logContent() string {
	lines := m.game.RecentTalk(m.common.cfg.LogLines)
	if len(lines) == 0 {
		return indent(subtleStyle.Render("Nothing said yet."), 2)
	}

	w := m.contentWidth()
	var b strings.Builder
	for _, l := range lines {
		s := wordwrap.String(l, w)
		if strings.HasPrefix(l, "You:") {
			s = playerStyle.Render(s)
		} else {
			s = npcStyle.Render(s)
		}
		b.WriteString(s + "\n")
	}
	return indent(b.String(), 2)
}

// plainScene is the scene as unstyled text.
func (m model) plainScene() string {
	if !m.hasScene {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Room %d (%s)\n\n", m.scene.Number, m.scene.Room.Theme)
	b.WriteString(m.scene.Room.Description + "\n")
	if m.line.Text != "" {
		b.WriteString("\n“" + m.line.Text + "”\n")
	}
	return b.String()
}

func (m model) inputView() string {
	switch m.state {
	case stateInput:
		return " " + m.input.View()
	case stateThinking:
		return " " + m.spinner.View() + " " + subtleStyle.Render(m.thinking+ellipsis)
	default:
		return " " + subtleStyle.Render("←/1 left  →/2 right  ↑/3 forward  t talk  i inspect")
	}
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	var inventory string
	if n := len(m.game.Inventory()); n > 0 {
		inventory = statusBarHelpStyle(fmt.Sprintf(" %d %s ", n, plural(n, "item", "items")))
	}
	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
	case m.showLog:
		note = "Conversation log"
	default:
		note = m.musicNote()
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(inventory)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	style := statusBarNoteStyle
	if m.statusMessage != "" {
		style = statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
	}
	note = style(note)

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(inventory)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		inventory,
		helpNote,
	)
}

func (m model) musicNote() string {
	st, ok := m.game.MusicStats()
	if !ok {
		return "No music"
	}
	if st.Catalog == 0 {
		return "No tracks to play"
	}
	s := fmt.Sprintf("%d buffered, %d played of %d", st.Buffered, st.Done, st.Catalog)
	if st.InFlight > 0 {
		s += fmt.Sprintf(", %d downloading", st.InFlight)
	}
	s += ", cache " + humanize.Bytes(uint64(max(0, st.Cache.Size))) //nolint:gosec
	if m.common.cfg.ShowStats {
		s += fmt.Sprintf(", hit rate %.0f%%", st.Cache.HitRate*100)
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// COMMANDS

func renderHelp(cfg Config, width int) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(cfg, helpMarkdown, width)
		if err != nil {
			log.Error("error rendering help", "error", err)
			s = helpMarkdown
		}
		return helpRenderedMsg(fillWidth(s, width))
	}
}

func glamourRender(cfg Config, markdown string, width int) (string, error) {
	if !cfg.GlamourEnabled {
		return indent(markdown, 2), nil
	}

	wrap := width
	if mw := int(cfg.GlamourMaxWidth); mw > 0 && (wrap == 0 || mw < wrap) { //nolint:gosec
		wrap = mw
	}

	style := glamour.WithStylePath(cfg.GlamourStyle)
	if cfg.GlamourStyle == styles.AutoStyle || cfg.GlamourStyle == "" {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}

// fillWidth pads every line so the help background spans the terminal.
func fillWidth(s string, width int) string {
	if width <= 0 {
		return helpViewStyle(s)
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		n := max(width-ansi.PrintableRuneWidth(lines[i]), 0)
		lines[i] += strings.Repeat(" ", n)
	}
	return helpViewStyle(strings.Join(lines, "\n"))
}
