package network

// Check names reported in Report.Ran and Report.Failed.
const (
	CheckProxyHeaders  = "proxy_headers"
	CheckPeerIPLeak    = "webrtc_ip_mismatch"
	CheckTCPSuspicious = "tcp_suspicious"
)

// Report is the outcome of Analyze. Disabled is true when the whole network
// dimension was switched off and passed unconditionally.
type Report struct {
	OK       bool     `json:"ok"`
	Disabled bool     `json:"disabled"`
	Ran      []string `json:"ran"`
	Failed   []string `json:"failed"`
}

// Analyze runs the enabled checks for which data is present. Any single
// failure fails the report; a check with missing data is skipped.
func Analyze(c Context, opts Options) Report {
	r := Report{Ran: []string{}, Failed: []string{}}
	if !opts.CheckConnectionSpeed {
		r.OK, r.Disabled = true, true
		return r
	}

	run := func(name string, failed bool) {
		r.Ran = append(r.Ran, name)
		if failed {
			r.Failed = append(r.Failed, name)
		}
	}

	if opts.BlockKnownProxies && c.ProxyHeaders != nil {
		run(CheckProxyHeaders, *c.ProxyHeaders)
	}
	if opts.CheckWebRTC && c.PublicIP != "" && c.ReportedIP != "" {
		run(CheckPeerIPLeak, c.PublicIP != c.ReportedIP)
	}
	if opts.TCPFingerprintingStrict && c.TCPSuspicious != nil {
		run(CheckTCPSuspicious, *c.TCPSuspicious)
	}

	r.OK = len(r.Failed) == 0
	return r
}
