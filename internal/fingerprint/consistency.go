package fingerprint

// Consistency check names reported in Consistency.Failed.
const (
	CheckRendererWithCanvas = "renderer_missing_with_canvas"
	CheckHeadlessSignature  = "headless_signature"
	CheckScreenBounds       = "screen_exceeds_bounds"
)

// MinConsistency is the score a snapshot must exceed to pass.
const MinConsistency = 0.7

// Consistency is the result of Check.
type Consistency struct {
	Score     float64  `json:"score"`
	OK        bool     `json:"ok"`
	ChecksRun int      `json:"checksRun"`
	Failed    []string `json:"failed"`
}

// Check runs the consistency checks against s. An absent screen cannot
// exceed its bounds, so the screen check is silent in that case.
func Check(s Snapshot) Consistency {
	c := Consistency{Failed: []string{}}

	c.ChecksRun++
	if !s.HasRenderer() && s.Canvas != nil {
		c.Failed = append(c.Failed, CheckRendererWithCanvas)
	}

	c.ChecksRun++
	if len(s.Plugins) == 0 && len(s.Languages) == 0 && !s.HasRenderer() {
		c.Failed = append(c.Failed, CheckHeadlessSignature)
	}

	c.ChecksRun++
	if sc := s.Screen; sc != nil && (sc.AvailWidth > sc.Width || sc.AvailHeight > sc.Height) {
		c.Failed = append(c.Failed, CheckScreenBounds)
	}

	run := c.ChecksRun
	if run < 1 {
		run = 1
	}
	c.Score = 1 - float64(len(c.Failed))/float64(run)
	c.OK = c.Score > MinConsistency
	return c
}
