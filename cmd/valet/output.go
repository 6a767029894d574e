package main

import "fmt"

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func colorize(color, s string) string {
	if noColor {
		return s
	}
	return color + s + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Println(colorize(colorGreen, "✓ ") + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(colorize(colorYellow, "! ") + fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Println(colorize(colorCyan, "→ ") + fmt.Sprintf(format, args...))
}
