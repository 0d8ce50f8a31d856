package rtl

import (
	"slices"
	"testing"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()

	if cfg.Binary != Runtime {
		t.Errorf("Expected binary %s, got %s", Runtime, cfg.Binary)
	}
	if cfg.EmitInterval.Duration() != DefaultEmitInterval {
		t.Errorf("Expected emit interval %s, got %s", DefaultEmitInterval, cfg.EmitInterval)
	}

	cfg = Config{Binary: "/opt/sdr/rtl_sdr", EmitInterval: source.NewTimeDuration(50 * time.Millisecond)}.WithDefaults()
	if cfg.Binary != "/opt/sdr/rtl_sdr" {
		t.Errorf("Expected binary to be kept, got %s", cfg.Binary)
	}
	if cfg.EmitInterval.Duration() != 50*time.Millisecond {
		t.Errorf("Expected emit interval to be kept, got %s", cfg.EmitInterval)
	}
}

func TestConfig_Args(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		tuning  source.Tuning
		want    []string
		wantErr bool
	}{
		{
			name:   "default tuning with automatic gain",
			config: Config{}.WithDefaults(),
			tuning: source.DefaultTuning(),
			want:   []string{"-f", "1090000000", "-s", "2400000", "-d", "0", "-"},
		},
		{
			name:   "manual gain",
			config: Config{}.WithDefaults(),
			tuning: source.Tuning{CenterFreq: 433.92e6, SampleRate: 1.024e6, Gain: "28.5", FFTSize: 512},
			want:   []string{"-f", "433920000", "-s", "1024000", "-d", "0", "-g", "28.5", "-"},
		},
		{
			name:   "ppm correction and bias tee",
			config: Config{DeviceIndex: 1, PPMError: -2, BiasTee: true}.WithDefaults(),
			tuning: source.DefaultTuning(),
			want:   []string{"-f", "1090000000", "-s", "2400000", "-d", "1", "-p", "-2", "-T", "-"},
		},
		{
			name:   "low band sample rate",
			config: Config{}.WithDefaults(),
			tuning: source.Tuning{CenterFreq: 27e6, SampleRate: 250e3, Gain: source.GainAuto, FFTSize: 256},
			want:   []string{"-f", "27000000", "-s", "250000", "-d", "0", "-"},
		},
		{
			name:    "sample rate between tuner bands",
			config:  Config{}.WithDefaults(),
			tuning:  source.Tuning{CenterFreq: 100e6, SampleRate: 500e3, Gain: source.GainAuto, FFTSize: 512},
			wantErr: true,
		},
		{
			name:    "sample rate above tuner range",
			config:  Config{}.WithDefaults(),
			tuning:  source.Tuning{CenterFreq: 100e6, SampleRate: 4e6, Gain: source.GainAuto, FFTSize: 512},
			wantErr: true,
		},
		{
			name:    "unparseable gain",
			config:  Config{}.WithDefaults(),
			tuning:  source.Tuning{CenterFreq: 100e6, SampleRate: 2.4e6, Gain: "loud", FFTSize: 512},
			wantErr: true,
		},
		{
			name:    "negative device index",
			config:  Config{DeviceIndex: -1}.WithDefaults(),
			tuning:  source.DefaultTuning(),
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.config.Args(tc.tuning)

			if tc.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to build args: %v", err)
			}

			if !slices.Equal(got, tc.want) {
				t.Errorf("Expected args %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{DeviceIndex: -1}); err == nil {
		t.Error("Expected an error for a negative device index")
	}
}
