// Package network holds the coarse network heuristics: proxy headers, peer
// address leaks and the TCP fingerprint hook.
package network

// ConnectionInfo mirrors the browser's connection descriptor.
type ConnectionInfo struct {
	Type          string  `json:"type"`
	EffectiveType string  `json:"effectiveType"`
	Downlink      float64 `json:"downlink"`
	RTT           float64 `json:"rtt"`
	SaveData      bool    `json:"saveData"`
}

// Context is everything known about the client's network. Empty strings and
// nil pointers mean the datum was not supplied.
type Context struct {
	Connection *ConnectionInfo `json:"connection,omitempty"`
	LocalIP    string          `json:"localIp,omitempty"`
	PublicIP   string          `json:"publicIp,omitempty"`
	ReportedIP string          `json:"reportedIp,omitempty"`

	ProxyHeaders  *bool `json:"proxyHeaders,omitempty"`
	TCPSuspicious *bool `json:"tcpSuspicious,omitempty"`
}

// Options toggles the network checks.
type Options struct {
	BlockKnownProxies       bool `json:"blockKnownProxies" yaml:"block_known_proxies"`
	CheckWebRTC             bool `json:"checkWebRTC" yaml:"check_webrtc"`
	TCPFingerprintingStrict bool `json:"tcpFingerprintingStrict" yaml:"tcp_fingerprinting_strict"`
	CheckConnectionSpeed    bool `json:"checkConnectionSpeed" yaml:"check_connection_speed"`
}

func DefaultOptions() Options {
	return Options{
		BlockKnownProxies:       true,
		CheckWebRTC:             true,
		TCPFingerprintingStrict: true,
		CheckConnectionSpeed:    true,
	}
}
