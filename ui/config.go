package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Start reading as soon as the document is shown
	Autoplay bool

	// Document title shown in the header
	Title string

	EnableMouse bool `env:"VOICEVERSE_ENABLE_MOUSE"`
	AltScreen   bool `env:"VOICEVERSE_ALT_SCREEN" envDefault:"true"`

	// Maximum width for wrapping the current sentence, 0 uses the window
	MaxWidth int `env:"VOICEVERSE_MAX_WIDTH" envDefault:"100"`
}
