// Package color formats terminal output for the mops CLI.
// It respects the NO_COLOR environment variable (https://no-color.org/)
// and turns itself off when stdout is not a terminal.
package color

import (
	"os"
	"sync"

	fcolor "github.com/fatih/color"
)

var initOnce sync.Once

// Init applies the environment and the --no-color flag. Later calls only
// honor the flag.
func Init(noColorFlag bool) {
	initOnce.Do(func() {
		if _, exists := os.LookupEnv("NO_COLOR"); exists {
			fcolor.NoColor = true
		}
		if os.Getenv("TERM") == "dumb" {
			fcolor.NoColor = true
		}
	})
	if noColorFlag {
		fcolor.NoColor = true
	}
}

// Enabled reports whether output is colored.
func Enabled() bool {
	return !fcolor.NoColor
}

// Disable turns off color output.
func Disable() { fcolor.NoColor = true }

// Enable turns on color output, even when stdout is not a terminal.
func Enable() { fcolor.NoColor = false }

var (
	green   = fcolor.New(fcolor.FgGreen)
	red     = fcolor.New(fcolor.FgRed)
	yellow  = fcolor.New(fcolor.FgYellow)
	cyan    = fcolor.New(fcolor.FgCyan)
	blue    = fcolor.New(fcolor.FgBlue)
	bold    = fcolor.New(fcolor.Bold)
	faint   = fcolor.New(fcolor.Faint)
	boldDim = fcolor.New(fcolor.Bold, fcolor.Faint)
)

// Success formats a success message in green.
func Success(s string) string { return green.Sprint(s) }

// Successf formats a success message with printf-style arguments.
func Successf(format string, args ...any) string { return green.Sprintf(format, args...) }

// Error formats an error message in red.
func Error(s string) string { return red.Sprint(s) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string { return red.Sprintf(format, args...) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return yellow.Sprint(s) }

// Warningf formats a warning message with printf-style arguments.
func Warningf(format string, args ...any) string { return yellow.Sprintf(format, args...) }

// Info formats an informational message in cyan.
func Info(s string) string { return cyan.Sprint(s) }

// ClientID formats a client ID in cyan.
func ClientID(s string) string { return cyan.Sprint(s) }

// Timestamp formats a snapshot timestamp in blue.
func Timestamp(s string) string { return blue.Sprint(s) }

// Header formats a header in bold.
func Header(s string) string { return bold.Sprint(s) }

// Dim formats secondary information.
func Dim(s string) string { return faint.Sprint(s) }

// Highlight highlights important text in yellow.
func Highlight(s string) string { return yellow.Sprint(s) }

// Code formats command strings.
func Code(s string) string { return boldDim.Sprint(s) }
