package alarm

import "time"

// Thresholds are the limits a snapshot is classified against.
// Power in watts, temperature in °C, audio in dBFS.
type Thresholds struct {
	ForwardPowerCritical   float64       `yaml:"forward_power_critical"`
	ForwardPowerLow        float64       `yaml:"forward_power_low"`
	ForwardPowerHigh       float64       `yaml:"forward_power_high"`
	ReflectedPowerWarning  float64       `yaml:"reflected_power_warning"`
	ReflectedPowerHigh     float64       `yaml:"reflected_power_high"`
	ReflectedPowerCritical float64       `yaml:"reflected_power_critical"`
	VSWR                   float64       `yaml:"vswr"`
	TemperatureWarning     float64       `yaml:"temperature_warning"`
	TemperatureHigh        float64       `yaml:"temperature_high"`
	TemperatureCritical    float64       `yaml:"temperature_critical"`
	AudioLevelLow          float64       `yaml:"audio_level_low"`
	AudioLevelHigh         float64       `yaml:"audio_level_high"`
	AudioSilenceTime       time.Duration `yaml:"audio_silence_time"`
}

// DefaultThresholds returns the limits used unless a transmitter overrides them.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ForwardPowerCritical:   50,
		ForwardPowerLow:        300,
		ForwardPowerHigh:       1200,
		ReflectedPowerWarning:  20,
		ReflectedPowerHigh:     50,
		ReflectedPowerCritical: 100,
		VSWR:                   1.5,
		TemperatureWarning:     40,
		TemperatureHigh:        50,
		TemperatureCritical:    65,
		AudioLevelLow:          -30,
		AudioLevelHigh:         -3,
		AudioSilenceTime:       30 * time.Second,
	}
}

// Overrides replaces selected thresholds; nil fields keep the base value.
type Overrides struct {
	ForwardPowerCritical   *float64       `yaml:"forward_power_critical,omitempty"`
	ForwardPowerLow        *float64       `yaml:"forward_power_low,omitempty"`
	ForwardPowerHigh       *float64       `yaml:"forward_power_high,omitempty"`
	ReflectedPowerWarning  *float64       `yaml:"reflected_power_warning,omitempty"`
	ReflectedPowerHigh     *float64       `yaml:"reflected_power_high,omitempty"`
	ReflectedPowerCritical *float64       `yaml:"reflected_power_critical,omitempty"`
	VSWR                   *float64       `yaml:"vswr,omitempty"`
	TemperatureWarning     *float64       `yaml:"temperature_warning,omitempty"`
	TemperatureHigh        *float64       `yaml:"temperature_high,omitempty"`
	TemperatureCritical    *float64       `yaml:"temperature_critical,omitempty"`
	AudioLevelLow          *float64       `yaml:"audio_level_low,omitempty"`
	AudioLevelHigh         *float64       `yaml:"audio_level_high,omitempty"`
	AudioSilenceTime       *time.Duration `yaml:"audio_silence_time,omitempty"`
}

// Apply returns base with the non-nil overrides applied.
func (o Overrides) Apply(base Thresholds) Thresholds {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}

	set(&base.ForwardPowerCritical, o.ForwardPowerCritical)
	set(&base.ForwardPowerLow, o.ForwardPowerLow)
	set(&base.ForwardPowerHigh, o.ForwardPowerHigh)
	set(&base.ReflectedPowerWarning, o.ReflectedPowerWarning)
	set(&base.ReflectedPowerHigh, o.ReflectedPowerHigh)
	set(&base.ReflectedPowerCritical, o.ReflectedPowerCritical)
	set(&base.VSWR, o.VSWR)
	set(&base.TemperatureWarning, o.TemperatureWarning)
	set(&base.TemperatureHigh, o.TemperatureHigh)
	set(&base.TemperatureCritical, o.TemperatureCritical)
	set(&base.AudioLevelLow, o.AudioLevelLow)
	set(&base.AudioLevelHigh, o.AudioLevelHigh)

	if o.AudioSilenceTime != nil {
		base.AudioSilenceTime = *o.AudioSilenceTime
	}

	return base
}

// ThresholdSet resolves the thresholds of each transmitter.
type ThresholdSet struct {
	// Default overrides the built-in defaults for every transmitter.
	Default Overrides `yaml:"default"`
	// Transmitters overrides per transmitter id, applied after Default.
	Transmitters map[string]Overrides `yaml:"transmitters"`
}

// For returns the effective thresholds of a transmitter.
func (s *ThresholdSet) For(transmitterID string) Thresholds {
	th := DefaultThresholds()
	if s == nil {
		return th
	}

	th = s.Default.Apply(th)

	if o, ok := s.Transmitters[transmitterID]; ok {
		th = o.Apply(th)
	}

	return th
}
