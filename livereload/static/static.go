// Package static holds the browser side of the reload protocol.
package static

import (
	_ "embed"
)

//go:embed livereload.js
var Script []byte

const ScriptContentType = "application/javascript; charset=utf-8"
