package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color identifies one of the report palette's colors.
type Color string

const (
	ColorDefault Color = "default"
	ColorRed     Color = "red"
	ColorGreen   Color = "green"
	ColorYellow  Color = "yellow"
	ColorCyan    Color = "cyan"
	ColorMagenta Color = "magenta"
	ColorGray    Color = "gray"
)

// ColorSystem handles color application and terminal detection
type ColorSystem interface {
	Sprint(color Color, text string) string
	Sprintf(color Color, format string, args ...interface{}) string
	IsColorSupported() bool
}

// colorSystem implements ColorSystem interface
type colorSystem struct {
	colorSupported bool
	profile        termenv.Profile
	colorMap       map[Color]*color.Color
}

// NewColorSystem creates a new color system with terminal detection. Passing
// enabled=false forces plain output regardless of the terminal.
func NewColorSystem(enabled bool) ColorSystem {
	cs := &colorSystem{
		colorSupported: enabled && detectColorSupport(),
		profile:        termenv.ColorProfile(),
	}

	cs.colorMap = map[Color]*color.Color{
		ColorRed:     color.New(color.FgRed),
		ColorGreen:   color.New(color.FgGreen),
		ColorYellow:  color.New(color.FgYellow),
		ColorCyan:    color.New(color.FgCyan),
		ColorMagenta: color.New(color.FgMagenta),
		ColorGray:    color.New(color.FgHiBlack),
	}

	return cs
}

// detectColorSupport checks if the terminal supports colors
func detectColorSupport() bool {
	// Check if output is a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}

	// Check environment variables that disable color
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	return true
}

// Sprint returns the text wrapped in the color's escape codes when supported.
func (cs *colorSystem) Sprint(c Color, text string) string {
	if !cs.colorSupported || cs.profile == termenv.Ascii {
		return text
	}
	col, ok := cs.colorMap[c]
	if !ok {
		return text
	}
	return col.Sprint(text)
}

// Sprintf formats and colorizes in one step.
func (cs *colorSystem) Sprintf(c Color, format string, args ...interface{}) string {
	return cs.Sprint(c, fmt.Sprintf(format, args...))
}

// IsColorSupported reports whether color output is active.
func (cs *colorSystem) IsColorSupported() bool {
	return cs.colorSupported
}
