package assets

import _ "embed"

// Demo page and the browser-side analyzer, compiled into the binary.

//go:embed index.html
var IndexHTML []byte

//go:embed analyzer.js
var AnalyzerJS []byte
