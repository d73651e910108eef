// Package fingerprint captures a one-shot device snapshot and checks it for
// internal consistency.
package fingerprint

// WebGLInfo identifies the rendering stack.
type WebGLInfo struct {
	Vendor     string   `json:"vendor"`
	Renderer   string   `json:"renderer"`
	Version    string   `json:"version"`
	Extensions []string `json:"extensions"`
}

// AudioInfo identifies the audio stack.
type AudioInfo struct {
	Digest     string  `json:"digest"`
	SampleRate float64 `json:"sampleRate"`
}

// ScreenInfo holds display metrics.
type ScreenInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AvailWidth  int     `json:"availWidth"`
	AvailHeight int     `json:"availHeight"`
	ColorDepth  int     `json:"colorDepth"`
	PixelRatio  float64 `json:"pixelRatio"`
}

// Plugin is one installed browser plugin.
type Plugin struct {
	Name      string   `json:"name"`
	MimeTypes []string `json:"mimeTypes"`
}

// SystemInfo holds resource hints. CPUSpeed is the duration in milliseconds
// of a fixed synthetic workload run in the browser.
type SystemInfo struct {
	Cores        *int     `json:"cores"`
	DeviceMemory *float64 `json:"deviceMemory"`
	CPUSpeed     *float64 `json:"cpuSpeed"`
}

// Snapshot is captured once per session and never mutated. A nil pointer or
// empty list means the capability was unavailable.
type Snapshot struct {
	WebGL     *WebGLInfo  `json:"webgl"`
	Canvas    *string     `json:"canvas"`
	Audio     *AudioInfo  `json:"audio"`
	Screen    *ScreenInfo `json:"screen"`
	Fonts     []string    `json:"fonts"`
	Plugins   []Plugin    `json:"plugins"`
	Languages []string    `json:"languages"`
	System    SystemInfo  `json:"system"`
}

// HasRenderer reports whether a non-empty renderer string was captured.
func (s Snapshot) HasRenderer() bool {
	return s.WebGL != nil && s.WebGL.Renderer != ""
}
