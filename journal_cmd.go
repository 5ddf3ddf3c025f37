package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mazeofme/maze/internal/journal"
	"github.com/spf13/cobra"
)

var journalKindStyles = map[string]lipgloss.Style{
	journal.KindRoom:     lipgloss.NewStyle().Bold(true),
	journal.KindNPC:      lipgloss.NewStyle().Italic(true),
	journal.KindPlayer:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	journal.KindItem:     lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
	journal.KindTrack:    lipgloss.NewStyle().Foreground(lipgloss.Color("#EE6FF8")),
	journal.KindFeedback: lipgloss.NewStyle().Foreground(lipgloss.Color("204")),
}

var journalCmd = &cobra.Command{
	Use:   "journal [SESSION]",
	Short: "List past sessions or print one",
	Long: paragraph(fmt.Sprintf("\n%s past sessions, newest first. Given a session id or a prefix of one, print that session's journal.",
		keyword("List"))),
	Example: paragraph("maze journal\nmaze journal 3f2a"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := journalDir()
		if len(args) == 0 {
			return listJournals(cmd.OutOrStdout(), dir)
		}

		s, err := journal.Find(dir, args[0])
		if err != nil {
			return err
		}
		entries, err := journal.Read(s.Path)
		if err != nil {
			return err
		}
		return printJournal(cmd.OutOrStdout(), entries)
	},
}

func listJournals(w io.Writer, dir string) error {
	sessions, err := journal.List(dir)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions yet.")
		return err
	}
	for _, s := range sessions {
		if _, err := fmt.Fprintf(w, "%s  %-14s  %s\n",
			s.ID, humanize.Time(s.ModTime), humanize.Bytes(uint64(max(0, s.Size)))); err != nil { //nolint:gosec
			return fmt.Errorf("unable to write to writer: %w", err)
		}
	}
	return nil
}

func printJournal(w io.Writer, entries []journal.Entry) error {
	styled := isTerminalWriter(w)
	for _, e := range entries {
		kind := fmt.Sprintf("%-8s", e.Kind)
		text := e.Text
		if st, ok := journalKindStyles[e.Kind]; ok && styled {
			text = st.Render(text)
		}
		line := strings.Join([]string{e.Time.Local().Format("15:04:05"), kind, text}, "  ")
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("unable to write to writer: %w", err)
		}
	}
	return nil
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}
