// Package version holds the release versions of the pfbatch binaries. The
// daemon and the CLI are versioned independently using semver.
package version

// PfbatchdVersion is the pfbatchd daemon version.
const PfbatchdVersion = "0.1.0-dev"

// PfbatchctlVersion is the pfbatchctl CLI version.
const PfbatchctlVersion = "0.1.0-dev"
