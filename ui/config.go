package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Session is shown in the help view so a journal can be found later.
	Session string

	// Lines of conversation kept in the log view.
	LogLines int `env:"MAZE_LOG_LINES" envDefault:"200"`

	// For debugging the UI
	GlamourEnabled bool `env:"MAZE_ENABLE_GLAMOUR" envDefault:"true"`
	ShowStats      bool `env:"MAZE_SHOW_STATS"`
}
