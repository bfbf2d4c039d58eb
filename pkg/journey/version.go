// Package journey holds module-wide constants.
package journey

// Version is the release version of the journey CLI.
const Version = "0.1.0"
