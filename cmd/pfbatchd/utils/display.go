// Package utils contains startup helpers for the pfbatch daemon.
package utils

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var logoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#42E7FF"))

// DisplayLogo prints the pfbatch ASCII logo with version information
func DisplayLogo(version string) {
	fmt.Println()
	fmt.Println(logoStyle.Render(` ░░░░░░░░░░░░░░░░░░░░░░░░░░░░░
 ░█▀█░█▀▀░█▀▄░█▀█░▀█▀░█▀▀░█░█░
 ░█▀▀░█▀▀░█▀▄░█▀█░░█░░█░░░█▀█░
 ░▀░░░▀░░░▀▀░░▀░▀░░▀░░▀▀▀░▀░▀░
 ░░░░░░░░░░░░░░░░░░░░░░░░░░░░░`))
	fmt.Printf("\n pfbatch v%s - Pending-work batching dispatcher\n", version)
	fmt.Println(" Threshold and timer driven flushes, fleet-wide config over gossip")
	fmt.Println()
}
