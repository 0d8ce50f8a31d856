package source

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultCenterFreq is the boot tuning, the 1090 MHz ADS-B downlink.
	DefaultCenterFreq = 1090e6

	// DefaultSampleRate is the default device sample rate in Hz.
	DefaultSampleRate = 2.4e6

	// DefaultFFTSize is the default transform length per frame.
	DefaultFFTSize = 1024

	// FFTSizeMin and FFTSizeMax bound the accepted transform lengths.
	FFTSizeMin = 2
	FFTSizeMax = 65536

	// GainAuto selects automatic gain control on the device.
	GainAuto = Gain("auto")
)

// Gain is a tuner gain setting, either GainAuto or a gain figure in dB.
// Start requests encode it as either the JSON string "auto" or a number.
type Gain string

// IsAuto reports whether the gain is automatic.
func (g Gain) IsAuto() bool {
	return g == GainAuto || g == ""
}

// Value returns the manual gain figure in dB. It fails for automatic gain.
func (g Gain) Value() (float64, error) {
	if g.IsAuto() {
		return 0, fmt.Errorf("gain is automatic")
	}

	v, err := strconv.ParseFloat(string(g), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gain: %q", string(g))
	}
	return v, nil
}

func (g Gain) String() string {
	if g.IsAuto() {
		return string(GainAuto)
	}
	return string(g)
}

// UnmarshalJSON accepts the string "auto" or a bare number.
func (g *Gain) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*g = Gain(s)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("gain must be \"auto\" or a number: %s", data)
	}

	*g = Gain(strconv.FormatFloat(v, 'f', -1, 64))
	return nil
}

func (g Gain) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalYAML accepts the string "auto" or a bare number, so the
// configuration file can say gain: 28.4 without quoting.
func (g *Gain) UnmarshalYAML(value *yaml.Node) error {
	s := value.Value
	if s != "" && s != string(GainAuto) {
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("gain must be \"auto\" or a number: %s", s)
		}
	}

	*g = Gain(s)
	return nil
}

func (g Gain) MarshalYAML() (interface{}, error) {
	return g.String(), nil
}

// Tuning carries the acquisition parameters of a start request.
type Tuning struct {
	CenterFreq float64 `yaml:"centerFreq" json:"center_freq"`   // Hz
	SampleRate float64 `yaml:"sampleRate" json:"sampling_rate"` // Hz
	Gain       Gain    `yaml:"gain" json:"gain"`                // "auto" or dB figure
	FFTSize    int     `yaml:"fftSize" json:"fft_size"`         // transform length
}

// DefaultTuning returns the boot tuning: 1090 MHz at 2.4 MS/s, automatic
// gain, 1024 point transforms.
func DefaultTuning() Tuning {
	return Tuning{
		CenterFreq: DefaultCenterFreq,
		SampleRate: DefaultSampleRate,
		Gain:       GainAuto,
		FFTSize:    DefaultFFTSize,
	}
}

// WithDefaults returns a copy of the tuning with zero fields replaced by
// their defaults.
func (t Tuning) WithDefaults() Tuning {
	if t.CenterFreq == 0 {
		t.CenterFreq = DefaultCenterFreq
	}
	if t.SampleRate == 0 {
		t.SampleRate = DefaultSampleRate
	}
	if t.Gain == "" {
		t.Gain = GainAuto
	}
	if t.FFTSize == 0 {
		t.FFTSize = DefaultFFTSize
	}
	return t
}

// Validate checks the tuning parameters.
func (t Tuning) Validate() error {
	if t.CenterFreq <= 0 {
		return fmt.Errorf("center frequency must be positive: %f", t.CenterFreq)
	}
	if t.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %f", t.SampleRate)
	}
	if t.FFTSize < FFTSizeMin || t.FFTSize > FFTSizeMax {
		return fmt.Errorf("FFT size must be between %d and %d: %d", FFTSizeMin, FFTSizeMax, t.FFTSize)
	}

	if !t.Gain.IsAuto() {
		v, err := t.Gain.Value()
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("gain must not be negative: %0.1f", v)
		}
	}

	return nil
}
