// Package harness runs exercise files through an external interpreter and
// classifies each run as a success, a compile error or a test failure.
package harness

// Version is the harness release version.
const Version = "v0.3.0"
