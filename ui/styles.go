package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mazeofme/maze/internal/narrative"
)

var (
	normalDim = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	green     = lipgloss.Color("#04B575")
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	fuchsia   = lipgloss.Color("#EE6FF8")

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	moodColors = map[string]lipgloss.TerminalColor{
		narrative.Happy:   lipgloss.Color("#F6C453"),
		narrative.Sad:     lipgloss.Color("#6C8EBF"),
		narrative.Angry:   red,
		narrative.Neutral: gray,
		narrative.Dream:   fuchsia,
	}
)

var (
	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(green).
			Bold(true)

	roomTitleStyle = lipgloss.NewStyle().Bold(true)

	npcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#3C3C3C", Dark: "#DDDADA"}).
			Italic(true)

	playerStyle = lipgloss.NewStyle().Foreground(normalDim)

	itemStyle = lipgloss.NewStyle().Foreground(green)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render
)

func moodStyle(mood string) lipgloss.Style {
	c, ok := moodColors[mood]
	if !ok {
		c = gray
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func logoView() string {
	return logoStyle.Render(" Maze ")
}
