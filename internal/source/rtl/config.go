package rtl

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
)

const (
	// Runtime is the command line tool that streams raw IQ samples.
	Runtime = "rtl_sdr"

	// Device is the hardware family name reported in descriptors.
	Device = "RTL-SDR"

	// DefaultEmitInterval is the frame cadence: one IQ block is read and
	// transformed per interval.
	DefaultEmitInterval = 100 * time.Millisecond

	// The R820T tuner locks sample rates in two disjoint bands.
	SampleRateMinLow  = 225_001
	SampleRateMaxLow  = 300_000
	SampleRateMinHigh = 900_001
	SampleRateMaxHigh = 3_200_000
)

// Config is the `rtl_sdr` tool configuration. Tuning parameters arrive per
// start request; the config holds the per-device settings that do not
// change between sessions.
type Config struct {
	Binary       string              `yaml:"binary" json:"binary"`             // executable, resolved via PATH when empty
	DeviceIndex  int                 `yaml:"deviceIndex" json:"deviceIndex"`   // -d device_index (default: 0)
	PPMError     int                 `yaml:"ppmError" json:"ppmError"`         // -p ppm_error (default: 0)
	BiasTee      bool                `yaml:"biasTee" json:"biasTee"`           // -T enable bias-tee (default: off)
	EmitInterval source.TimeDuration `yaml:"emitInterval" json:"emitInterval"` // frame cadence (default: 100ms)
}

// WithDefaults returns a copy of the config with zero fields replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.Binary == "" {
		c.Binary = Runtime
	}
	if c.EmitInterval <= 0 {
		c.EmitInterval = source.NewTimeDuration(DefaultEmitInterval)
	}
	return c
}

// Validate checks the device configuration.
func (c *Config) Validate() error {
	if c.DeviceIndex < 0 {
		return fmt.Errorf("rtl.Config: device index must not be negative: %d", c.DeviceIndex)
	}
	if c.EmitInterval < 0 {
		return fmt.Errorf("rtl.Config: emit interval must not be negative: %s", c.EmitInterval)
	}
	return nil
}

// Args returns the command line arguments for `rtl_sdr` streaming raw
// samples at the given tuning. See `man rtl_sdr` for more information.
func (c *Config) Args(tuning source.Tuning) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}

	rate := int64(tuning.SampleRate)
	lowBand := rate >= SampleRateMinLow && rate <= SampleRateMaxLow
	highBand := rate >= SampleRateMinHigh && rate <= SampleRateMaxHigh
	if !lowBand && !highBand {
		return nil, fmt.Errorf("rtl.Config: sample rate not tunable by %s hardware: %d", Device, rate)
	}

	args := []string{
		"-f", strconv.FormatInt(int64(tuning.CenterFreq), 10),
		"-s", strconv.FormatInt(rate, 10),
		"-d", strconv.Itoa(c.DeviceIndex), // 0 is the default device index
	}

	if !tuning.Gain.IsAuto() {
		gain, err := tuning.Gain.Value()
		if err != nil {
			return nil, err
		}
		args = append(args, "-g", strconv.FormatFloat(gain, 'f', -1, 64))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.BiasTee {
		args = append(args, "-T")
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

// findBinary resolves the rtl_sdr executable through PATH.
func findBinary(binary string) (string, error) {
	binPath, err := exec.LookPath(binary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("`%s` not found in PATH: %w", binary, err)
		}
		return "", fmt.Errorf("failed to locate `%s`: %w", binary, err)
	}
	return binPath, nil
}
