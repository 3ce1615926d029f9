package animation

// LookupTableWidth is the default number of uniformly spaced samples per resampled track.
const LookupTableWidth = 1023

// DefaultTicksPerSecond replaces a tick rate of zero reported by the importer.
const DefaultTicksPerSecond float32 = 25.0

// loadConfig holds the settings used while building channels and clips.
type loadConfig struct {
	resample              bool
	tableWidth            int
	defaultTicksPerSecond float32
}

func defaultLoadConfig() loadConfig {
	return loadConfig{
		resample:              true,
		tableWidth:            LookupTableWidth,
		defaultTicksPerSecond: DefaultTicksPerSecond,
	}
}

func newLoadConfig(opts []LoadOption) loadConfig {
	cfg := defaultLoadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// LoadOption is a functional option for configuring how channels and clips are built.
type LoadOption func(*loadConfig)

// WithResampling enables or disables the uniform lookup table. When disabled, every query
// searches the sparse keyframes directly.
//
// Parameters:
//   - enabled: whether to build lookup tables
//
// Returns:
//   - LoadOption: a function that applies the resampling option
func WithResampling(enabled bool) LoadOption {
	return func(c *loadConfig) {
		c.resample = enabled
	}
}

// WithLookupTableWidth overrides the number of lookup table entries per track.
// Widths below 2 are raised to 2 so the table always spans both ends of the clip.
//
// Parameters:
//   - width: the number of table entries
//
// Returns:
//   - LoadOption: a function that applies the width option
func WithLookupTableWidth(width int) LoadOption {
	return func(c *loadConfig) {
		c.tableWidth = max(width, 2)
	}
}

// WithDefaultTicksPerSecond sets the tick rate used when a source animation reports zero.
// Non-positive values are ignored.
//
// Parameters:
//   - tps: the fallback tick rate
//
// Returns:
//   - LoadOption: a function that applies the fallback tick rate
func WithDefaultTicksPerSecond(tps float32) LoadOption {
	return func(c *loadConfig) {
		if tps > 0 {
			c.defaultTicksPerSecond = tps
		}
	}
}
