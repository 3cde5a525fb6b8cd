// ABOUTME: Version information for bustap
// ABOUTME: Identifies the product in logs, the CLI and mDNS records
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "bustap"

	// Manufacturer identifies who ships the build
	Manufacturer = "Resonate"
)
