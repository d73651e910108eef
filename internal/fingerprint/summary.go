package fingerprint

// summaryListLimit caps the font and plugin names exposed in a Summary.
const summaryListLimit = 5

// Summary is the redacted view of a snapshot safe to return to clients.
// Canvas and audio digests are never included.
type Summary struct {
	WebGLVendor     string      `json:"webglVendor,omitempty"`
	WebGLRenderer   string      `json:"webglRenderer,omitempty"`
	AudioSampleRate *float64    `json:"audioSampleRate,omitempty"`
	CPUClass        string      `json:"cpuClass"`
	Cores           *int        `json:"cores,omitempty"`
	DeviceMemory    *float64    `json:"deviceMemory,omitempty"`
	Screen          *ScreenInfo `json:"screen,omitempty"`
	FontCount       int         `json:"fontCount"`
	Fonts           []string    `json:"fonts"`
	PluginCount     int         `json:"pluginCount"`
	Plugins         []string    `json:"plugins"`
	Languages       []string    `json:"languages"`
}

func Summarize(s Snapshot) Summary {
	sum := Summary{
		CPUClass:     CPUClass(s.System.CPUSpeed),
		Cores:        s.System.Cores,
		DeviceMemory: s.System.DeviceMemory,
		Screen:       s.Screen,
		FontCount:    len(s.Fonts),
		Fonts:        head(s.Fonts, summaryListLimit),
		PluginCount:  len(s.Plugins),
		Plugins:      []string{},
		Languages:    append([]string{}, s.Languages...),
	}
	if s.WebGL != nil {
		sum.WebGLVendor = s.WebGL.Vendor
		sum.WebGLRenderer = s.WebGL.Renderer
	}
	if s.Audio != nil {
		rate := s.Audio.SampleRate
		sum.AudioSampleRate = &rate
	}
	for _, p := range head(s.Plugins, summaryListLimit) {
		sum.Plugins = append(sum.Plugins, p.Name)
	}
	return sum
}

// CPUClass buckets the synthetic CPU benchmark duration in milliseconds.
func CPUClass(ms *float64) string {
	if ms == nil {
		return "unknown"
	}
	switch v := *ms; {
	case v < 50:
		return "very_fast"
	case v < 100:
		return "fast"
	case v < 200:
		return "medium"
	case v < 400:
		return "slow"
	default:
		return "very_slow"
	}
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	return append([]T{}, s...)
}
