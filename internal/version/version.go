// ABOUTME: Build and product identity constants
// ABOUTME: Reported in logs and the TUI header
package version

const (
	Version      = "0.1.0"
	Product      = "Airwave"
	Manufacturer = "Airwave Project"
)
