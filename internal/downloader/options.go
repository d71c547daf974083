package downloader

const (
	defaultConcurrency = 12
	minConcurrency     = 1
	// Image assets are API-hosted; high parallelism risks throttling or bans.
	maxConcurrency = 50

	defaultTimeoutSeconds = 30
	minTimeoutSeconds     = 10
	maxTimeoutSeconds     = 120

	defaultMaxRetries = 3
	minMaxRetries     = 1
	maxMaxRetries     = 10
)

// RunOptions is the caller-facing configuration for one run. JSON tags match
// the control-plane request body.
type RunOptions struct {
	PicsDir          string `json:"picsdir"`
	Force            bool   `json:"force"`
	OnlyMissing      bool   `json:"onlyMissing"`
	ValidateExisting bool   `json:"validateExisting"`
	Concurrency      int    `json:"concurrency"`
	TimeoutSeconds   int    `json:"timeout"`
	MaxRetries       int    `json:"retry"`
	MaxKBps          int    `json:"maxKbps"`
	TypeFilter       string `json:"typeFilter"`
	SetFilter        string `json:"setFilter"`
}

// Normalized applies defaults and clamps once, at the boundary. Zero numeric
// values mean "unset" and fall back to the defaults; out-of-range values are
// clamped. Force takes precedence over OnlyMissing.
func (o RunOptions) Normalized() RunOptions {
	if o.Force {
		o.OnlyMissing = false
	}
	o.Concurrency = clampOrDefault(o.Concurrency, defaultConcurrency, minConcurrency, maxConcurrency)
	o.TimeoutSeconds = clampOrDefault(o.TimeoutSeconds, defaultTimeoutSeconds, minTimeoutSeconds, maxTimeoutSeconds)
	o.MaxRetries = clampOrDefault(o.MaxRetries, defaultMaxRetries, minMaxRetries, maxMaxRetries)
	if o.MaxKBps < 0 {
		o.MaxKBps = 0
	}
	return o
}

func clampOrDefault(v, def, min, max int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
