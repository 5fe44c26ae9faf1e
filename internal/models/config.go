package models

// Default configuration values applied when no persisted config exists.
const (
	DefaultSensitivity            = 0.7
	DefaultTimeWindowMinutes      = 15
	DefaultMinConfidenceThreshold = 0.6
)

// Config holds the user-tunable detection settings. A single instance exists
// per installation; the engine owns all mutation.
type Config struct {
	Sensitivity            float64 `json:"sensitivity"`              // 0..1 multiplier on match confidence
	TimeWindowMinutes      int     `json:"time_window_minutes"`      // correlation window width
	EnableLocationSync     bool    `json:"enable_location_sync"`
	EnableMoodSync         bool    `json:"enable_mood_sync"`
	EnableActionSync       bool    `json:"enable_action_sync"`
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"` // 0..1 alert gate
}

// DefaultConfig returns the configuration used before any user tuning.
// Location sync starts disabled; it requires an explicit opt-in.
func DefaultConfig() Config {
	return Config{
		Sensitivity:            DefaultSensitivity,
		TimeWindowMinutes:      DefaultTimeWindowMinutes,
		EnableLocationSync:     false,
		EnableMoodSync:         true,
		EnableActionSync:       true,
		MinConfidenceThreshold: DefaultMinConfidenceThreshold,
	}
}

// Validate rejects out-of-range settings with typed errors. Invalid updates
// are refused rather than clamped so callers learn about bad input.
func (c *Config) Validate() error {
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		return ErrSensitivityRange
	}
	if c.MinConfidenceThreshold < 0 || c.MinConfidenceThreshold > 1 {
		return ErrThresholdRange
	}
	if c.TimeWindowMinutes <= 0 {
		return ErrTimeWindowNotPositive
	}
	return nil
}

// ConfigPatch is a partial configuration update; nil fields are left as-is.
type ConfigPatch struct {
	Sensitivity            *float64 `json:"sensitivity,omitempty"`
	TimeWindowMinutes      *int     `json:"time_window_minutes,omitempty"`
	EnableLocationSync     *bool    `json:"enable_location_sync,omitempty"`
	EnableMoodSync         *bool    `json:"enable_mood_sync,omitempty"`
	EnableActionSync       *bool    `json:"enable_action_sync,omitempty"`
	MinConfidenceThreshold *float64 `json:"min_confidence_threshold,omitempty"`
}

// Apply merges the patch into a copy of cfg and returns it. The result is not
// validated; callers run Validate before adopting it.
func (p ConfigPatch) Apply(cfg Config) Config {
	if p.Sensitivity != nil {
		cfg.Sensitivity = *p.Sensitivity
	}
	if p.TimeWindowMinutes != nil {
		cfg.TimeWindowMinutes = *p.TimeWindowMinutes
	}
	if p.EnableLocationSync != nil {
		cfg.EnableLocationSync = *p.EnableLocationSync
	}
	if p.EnableMoodSync != nil {
		cfg.EnableMoodSync = *p.EnableMoodSync
	}
	if p.EnableActionSync != nil {
		cfg.EnableActionSync = *p.EnableActionSync
	}
	if p.MinConfidenceThreshold != nil {
		cfg.MinConfidenceThreshold = *p.MinConfidenceThreshold
	}
	return cfg
}
