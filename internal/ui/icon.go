package ui

import "encoding/base64"

// Placeholder tray icon, a single dark pixel. Platform-specific icon
// assets ship with the installer and replace this at build time.
var iconBytes, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")
