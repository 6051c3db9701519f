package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli"
)

// Config は起動時に決まる設定である
type Config struct {
	Threshold    int
	DriveSpeed   int
	TurnSpeed    int
	ReverseSpeed int
	EscapeSpeed  int

	BrakeDwell   time.Duration
	ReverseDwell time.Duration
	SettleDwell  time.Duration
	TurnDwell    time.Duration
	ResumeDwell  time.Duration

	RangingTimeout time.Duration
	CommandTimeout time.Duration
	CycleDelay     time.Duration

	CommandAddr   string
	TelemetryAddr string // 空ならUDPテレメトリを送らない

	Motor      string // "gpio" または "serial"
	SerialPort string
	Baud       int
	Pins       MotorPins
	TrigPin    int
	EchoPin    int
	LEDPin     int
	BuzzerPin  int

	MQTTBroker string
	MQTTTopic  string
	APIAddr    string
	GRPCAddr   string
	StatusAddr string

	SelfUpdate  bool
	GitHubToken string
	Debug       bool
}

// Flags はコマンドラインフラグの一覧。各フラグは環境変数 ROVER_* でも指定できる。
func Flags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "threshold", Value: DEFAULT_OBSTACLE_THRESHOLD, Usage: "obstacle distance threshold (cm)", EnvVar: "ROVER_THRESHOLD"},
		cli.IntFlag{Name: "drive-speed", Value: DEFAULT_DRIVE_SPEED, Usage: "forward/backward duty", EnvVar: "ROVER_DRIVE_SPEED"},
		cli.IntFlag{Name: "turn-speed", Value: DEFAULT_TURN_SPEED, Usage: "pivot duty for L/R commands", EnvVar: "ROVER_TURN_SPEED"},
		cli.IntFlag{Name: "reverse-speed", Value: DEFAULT_REVERSE_SPEED, Usage: "reverse duty while avoiding", EnvVar: "ROVER_REVERSE_SPEED"},
		cli.IntFlag{Name: "escape-speed", Value: DEFAULT_ESCAPE_SPEED, Usage: "pivot duty while avoiding", EnvVar: "ROVER_ESCAPE_SPEED"},

		cli.DurationFlag{Name: "brake-dwell", Value: DEFAULT_BRAKE_DWELL, EnvVar: "ROVER_BRAKE_DWELL"},
		cli.DurationFlag{Name: "reverse-dwell", Value: DEFAULT_REVERSE_DWELL, EnvVar: "ROVER_REVERSE_DWELL"},
		cli.DurationFlag{Name: "settle-dwell", Value: DEFAULT_SETTLE_DWELL, EnvVar: "ROVER_SETTLE_DWELL"},
		cli.DurationFlag{Name: "turn-dwell", Value: DEFAULT_TURN_DWELL, EnvVar: "ROVER_TURN_DWELL"},
		cli.DurationFlag{Name: "resume-dwell", Value: DEFAULT_RESUME_DWELL, EnvVar: "ROVER_RESUME_DWELL"},

		cli.DurationFlag{Name: "ranging-timeout", Value: DEFAULT_RANGING_TIMEOUT, Usage: "echo timeout", EnvVar: "ROVER_RANGING_TIMEOUT"},
		cli.DurationFlag{Name: "command-timeout", Value: DEFAULT_COMMAND_TIMEOUT, Usage: "command socket read timeout", EnvVar: "ROVER_COMMAND_TIMEOUT"},
		cli.DurationFlag{Name: "cycle-delay", Value: DEFAULT_CYCLE_DELAY, Usage: "pause after each control cycle", EnvVar: "ROVER_CYCLE_DELAY"},

		cli.StringFlag{Name: "listen", Value: COMMAND_LISTEN_ADDR, Usage: "command UDP listen address", EnvVar: "ROVER_LISTEN"},
		cli.StringFlag{Name: "telemetry", Value: TELEMETRY_ADDR, Usage: "telemetry UDP destination, empty to disable", EnvVar: "ROVER_TELEMETRY"},

		cli.StringFlag{Name: "motor", Value: "gpio", Usage: "motor backend: gpio or serial", EnvVar: "ROVER_MOTOR"},
		cli.StringFlag{Name: "serial", Value: SERIAL_PORT_NAME, Usage: "serial port for the motor board", EnvVar: "ROVER_SERIAL"},
		cli.IntFlag{Name: "baud", Value: BAUDRATE, EnvVar: "ROVER_BAUD"},
		cli.IntFlag{Name: "pin-in1", Value: PIN_IN1, EnvVar: "ROVER_PIN_IN1"},
		cli.IntFlag{Name: "pin-in2", Value: PIN_IN2, EnvVar: "ROVER_PIN_IN2"},
		cli.IntFlag{Name: "pin-in3", Value: PIN_IN3, EnvVar: "ROVER_PIN_IN3"},
		cli.IntFlag{Name: "pin-in4", Value: PIN_IN4, EnvVar: "ROVER_PIN_IN4"},
		cli.IntFlag{Name: "pin-ena", Value: PIN_ENA, EnvVar: "ROVER_PIN_ENA"},
		cli.IntFlag{Name: "pin-enb", Value: PIN_ENB, EnvVar: "ROVER_PIN_ENB"},
		cli.IntFlag{Name: "pin-trig", Value: PIN_TRIG, EnvVar: "ROVER_PIN_TRIG"},
		cli.IntFlag{Name: "pin-echo", Value: PIN_ECHO, EnvVar: "ROVER_PIN_ECHO"},
		cli.IntFlag{Name: "pin-led", Value: PIN_LED1, Usage: "status LED, -1 to disable", EnvVar: "ROVER_PIN_LED"},
		cli.IntFlag{Name: "pin-buzzer", Value: PIN_BUZZER, Usage: "PWM buzzer, -1 to disable", EnvVar: "ROVER_PIN_BUZZER"},

		cli.StringFlag{Name: "mqtt-broker", Usage: "also publish telemetry to this broker (tcp://host:1883)", EnvVar: "ROVER_MQTT_BROKER"},
		cli.StringFlag{Name: "mqtt-topic", Value: MQTT_TOPIC, EnvVar: "ROVER_MQTT_TOPIC"},
		cli.StringFlag{Name: "api", Value: API_ADDR, Usage: "HTTP status API address, empty to disable", EnvVar: "ROVER_API"},
		cli.StringFlag{Name: "grpc-addr", Usage: "gRPC health address", EnvVar: "ROVER_GRPC_ADDR"},
		cli.StringFlag{Name: "status-addr", Usage: "protobuf status destination (e.g. 224.5.69.4:16941)", EnvVar: "ROVER_STATUS_ADDR"},

		cli.BoolFlag{Name: "self-update", Usage: "check GitHub releases before starting", EnvVar: "ROVER_SELF_UPDATE"},
		cli.StringFlag{Name: "github-token", EnvVar: "GITHUB_TOKEN"},
		cli.BoolFlag{Name: "debug", Usage: "log every control cycle", EnvVar: "ROVER_DEBUG"},
	}
}

// ConfigFromContext はフラグの値から Config を作る
func ConfigFromContext(c *cli.Context) Config {
	return Config{
		Threshold:    c.Int("threshold"),
		DriveSpeed:   c.Int("drive-speed"),
		TurnSpeed:    c.Int("turn-speed"),
		ReverseSpeed: c.Int("reverse-speed"),
		EscapeSpeed:  c.Int("escape-speed"),

		BrakeDwell:   c.Duration("brake-dwell"),
		ReverseDwell: c.Duration("reverse-dwell"),
		SettleDwell:  c.Duration("settle-dwell"),
		TurnDwell:    c.Duration("turn-dwell"),
		ResumeDwell:  c.Duration("resume-dwell"),

		RangingTimeout: c.Duration("ranging-timeout"),
		CommandTimeout: c.Duration("command-timeout"),
		CycleDelay:     c.Duration("cycle-delay"),

		CommandAddr:   c.String("listen"),
		TelemetryAddr: c.String("telemetry"),

		Motor:      c.String("motor"),
		SerialPort: c.String("serial"),
		Baud:       c.Int("baud"),
		Pins: MotorPins{
			IN1: c.Int("pin-in1"),
			IN2: c.Int("pin-in2"),
			IN3: c.Int("pin-in3"),
			IN4: c.Int("pin-in4"),
			ENA: c.Int("pin-ena"),
			ENB: c.Int("pin-enb"),
		},
		TrigPin:   c.Int("pin-trig"),
		EchoPin:   c.Int("pin-echo"),
		LEDPin:    c.Int("pin-led"),
		BuzzerPin: c.Int("pin-buzzer"),

		MQTTBroker: c.String("mqtt-broker"),
		MQTTTopic:  c.String("mqtt-topic"),
		APIAddr:    c.String("api"),
		GRPCAddr:   c.String("grpc-addr"),
		StatusAddr: c.String("status-addr"),

		SelfUpdate:  c.Bool("self-update"),
		GitHubToken: c.String("github-token"),
		Debug:       c.Bool("debug"),
	}
}

// Validate は起動時に明らかにおかしい設定をはじく
func (c Config) Validate() error {
	var errs []error
	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be positive, got %d", c.Threshold))
	}
	speeds := []struct {
		name string
		v    int
	}{
		{"drive-speed", c.DriveSpeed},
		{"turn-speed", c.TurnSpeed},
		{"reverse-speed", c.ReverseSpeed},
		{"escape-speed", c.EscapeSpeed},
	}
	for _, s := range speeds {
		if s.v < 0 || s.v > MAX_DUTY {
			errs = append(errs, fmt.Errorf("%s must be within 0..%d, got %d", s.name, MAX_DUTY, s.v))
		}
	}
	durations := []struct {
		name string
		v    time.Duration
	}{
		{"brake-dwell", c.BrakeDwell},
		{"reverse-dwell", c.ReverseDwell},
		{"turn-dwell", c.TurnDwell},
		{"resume-dwell", c.ResumeDwell},
		{"ranging-timeout", c.RangingTimeout},
		{"command-timeout", c.CommandTimeout},
	}
	for _, d := range durations {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.name, d.v))
		}
	}
	if c.SettleDwell < 0 {
		errs = append(errs, fmt.Errorf("settle-dwell must not be negative, got %v", c.SettleDwell))
	}
	if c.CycleDelay < 0 {
		errs = append(errs, fmt.Errorf("cycle-delay must not be negative, got %v", c.CycleDelay))
	}
	if c.Motor != "gpio" && c.Motor != "serial" {
		errs = append(errs, fmt.Errorf("unknown motor backend %q", c.Motor))
	}
	if c.CommandAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	return errors.Join(errs...)
}

// Avoidance は回避動作の設定を取り出す
func (c Config) Avoidance() AvoidanceConfig {
	return AvoidanceConfig{
		Threshold:    Distance(c.Threshold),
		DriveSpeed:   c.DriveSpeed,
		TurnSpeed:    c.TurnSpeed,
		ReverseSpeed: c.ReverseSpeed,
		EscapeSpeed:  c.EscapeSpeed,
		BrakeDwell:   c.BrakeDwell,
		ReverseDwell: c.ReverseDwell,
		SettleDwell:  c.SettleDwell,
		TurnDwell:    c.TurnDwell,
		ResumeDwell:  c.ResumeDwell,
	}
}
