package common

// Terminal colors for debug dumps.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[1;32m"
	ColorBlue   = "\033[1;34m"
	ColorYellow = "\033[1;33m"
	ColorGray   = "\033[90m"
)

// Colorize wraps s in color unless color is empty.
func Colorize(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + ColorReset
}
