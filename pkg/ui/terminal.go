package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Banner is printed at the start of long running commands
const Banner = `
  ╔═╗╦  ╦╦╔╦╗╔═╗  ╦ ╦╔═╗╦═╗╦  ╦╔═╗╔═╗╔╦╗
   ║║╚╗╔╝║ ║║╚═╗  ╠═╣╠═╣╠╦╝╚╗╔╝║╣ ╚═╗ ║
  ═╩╝ ╚╝ ╩═╩╝╚═╝  ╩ ╩╩ ╩╩╚═ ╚╝ ╚═╝╚═╝ ╩
`

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF3131")

	bannerStyle    = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(yellow)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stdout
	quiet   bool
	noColor bool
)

// SetOutput redirects terminal output
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetNoColor disables styling
func SetNoColor(nc bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = nc
}

func render(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}

func emit(always bool, s string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintln(out, s)
}

// PrintBanner prints the application banner
func PrintBanner() {
	emit(false, render(bannerStyle, Banner))
}

// PrintError prints an error message with an optional detail
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	emit(true, render(errorStyle, msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	emit(false, render(successStyle, msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label, value string) {
	emit(false, fmt.Sprintf("%s: %s", render(labelStyle, label), render(valueStyle, value)))
}

// PrintWarning prints a warning with an optional detail
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	emit(false, render(warningStyle, msg))
}

// PrintHighlight prints a highlighted message
func PrintHighlight(msg string) {
	emit(false, render(highlightStyle, msg))
}
