// Package scripts embeds the Risor scripts that ship with moss.
package scripts

import "embed"

// FS holds the built-in scripts, addressed by file name.
//
//go:embed *.risor
var FS embed.FS
