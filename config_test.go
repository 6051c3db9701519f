package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// parseConfig は本番と同じフラグ定義で args を解釈する
func parseConfig(t *testing.T, args ...string) Config {
	t.Helper()
	var cfg Config
	app := cli.NewApp()
	app.Flags = Flags()
	app.Action = func(c *cli.Context) error {
		cfg = ConfigFromContext(c)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"gesture-rover"}, args...)))
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := parseConfig(t)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, COMMAND_LISTEN_ADDR, cfg.CommandAddr)
	assert.Equal(t, TELEMETRY_ADDR, cfg.TelemetryAddr)
	assert.Equal(t, "gpio", cfg.Motor)
	assert.Equal(t, MotorPins{IN1: PIN_IN1, IN2: PIN_IN2, IN3: PIN_IN3, IN4: PIN_IN4, ENA: PIN_ENA, ENB: PIN_ENB}, cfg.Pins)
	assert.Equal(t, DEFAULT_CYCLE_DELAY, cfg.CycleDelay)
	assert.False(t, cfg.Debug)

	if diff := cmp.Diff(DefaultAvoidanceConfig(), cfg.Avoidance()); diff != "" {
		t.Errorf("avoidance config (-want +got):\n%s", diff)
	}
}

func TestConfigFlags(t *testing.T) {
	cfg := parseConfig(t,
		"--threshold", "25",
		"--turn-dwell", "1s",
		"--motor", "serial",
		"--telemetry", "",
		"--mqtt-broker", "tcp://localhost:1883",
		"--debug",
	)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25, cfg.Threshold)
	assert.Equal(t, Distance(25), cfg.Avoidance().Threshold)
	assert.Equal(t, time.Second, cfg.Avoidance().TurnDwell)
	assert.Equal(t, "serial", cfg.Motor)
	assert.Empty(t, cfg.TelemetryAddr)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.True(t, cfg.Debug)
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("ROVER_THRESHOLD", "40")
	t.Setenv("ROVER_CYCLE_DELAY", "20ms")

	cfg := parseConfig(t)

	assert.Equal(t, 40, cfg.Threshold)
	assert.Equal(t, 20*time.Millisecond, cfg.CycleDelay)

	// フラグは環境変数より優先される
	cfg = parseConfig(t, "--threshold", "12")
	assert.Equal(t, 12, cfg.Threshold)
}

func TestConfigValidate(t *testing.T) {
	base := parseConfig(t)

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"zero threshold", func(c *Config) { c.Threshold = 0 }, "threshold must be positive"},
		{"speed too high", func(c *Config) { c.DriveSpeed = MAX_DUTY + 1 }, "drive-speed must be within"},
		{"negative speed", func(c *Config) { c.EscapeSpeed = -1 }, "escape-speed must be within"},
		{"zero dwell", func(c *Config) { c.BrakeDwell = 0 }, "brake-dwell must be positive"},
		{"zero command timeout", func(c *Config) { c.CommandTimeout = 0 }, "command-timeout must be positive"},
		{"negative settle", func(c *Config) { c.SettleDwell = -time.Millisecond }, "settle-dwell must not be negative"},
		{"unknown motor", func(c *Config) { c.Motor = "can" }, `unknown motor backend "can"`},
		{"no listen address", func(c *Config) { c.CommandAddr = "" }, "listen address is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigValidateAllowsZeroSettleAndDelay(t *testing.T) {
	cfg := parseConfig(t, "--settle-dwell", "0s", "--cycle-delay", "0s")
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := parseConfig(t)
	cfg.Threshold = -3
	cfg.Motor = ""

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")
	assert.Contains(t, err.Error(), "motor backend")
}
