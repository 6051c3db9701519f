package main

import (
	"time"
)

// ControlLoopDeps は制御ループが使う部品
type ControlLoopDeps struct {
	Link      CommandLink
	Sensor    RangeSensor
	Driver    MotionDriver
	Avoidance *AvoidanceController
	Telemetry TelemetryPublisher // nil ならテレメトリなし
	Indicator Indicator          // nil ならLED/ブザーなし
	Status    *StatusStore       // nil なら状態を公開しない

	CycleDelay time.Duration
	Debug      bool
}

// ControlLoop は指令の受信、測距、回避判定、モータ駆動、テレメトリ送信を
// 1サイクルずつ順番に行う。サイクル間は CycleDelay だけ休む。
type ControlLoop struct {
	link      CommandLink
	sensor    RangeSensor
	driver    MotionDriver
	avoid     *AvoidanceController
	telemetry TelemetryPublisher
	indicator Indicator
	status    *StatusStore
	delay     time.Duration
	debug     bool

	// 最後に受け取った有効な指令
	current Command

	start time.Time
	now   func() time.Time
	sleep func(time.Duration)

	cycles            uint64
	telemetryFailures uint64
	driveFailures     uint64
	invalidStreak     int
}

func NewControlLoop(deps ControlLoopDeps) *ControlLoop {
	c := &ControlLoop{
		link:      deps.Link,
		sensor:    deps.Sensor,
		driver:    deps.Driver,
		avoid:     deps.Avoidance,
		telemetry: deps.Telemetry,
		indicator: deps.Indicator,
		status:    deps.Status,
		delay:     deps.CycleDelay,
		debug:     deps.Debug,
		current:   CmdStop,
		now:       time.Now,
		sleep:     time.Sleep,
	}
	if c.avoid == nil {
		c.avoid = NewAvoidanceController(DefaultAvoidanceConfig(), nil)
	}
	if c.telemetry == nil {
		c.telemetry = NopTelemetry{}
	}
	if c.indicator == nil {
		c.indicator = NopIndicator{}
	}
	c.start = c.now()
	return c
}

// Current は現在保持している指令
func (c *ControlLoop) Current() Command { return c.current }

// Run は done が閉じられるまでサイクルを回し、最後にモータを止める
func (c *ControlLoop) Run(done <-chan struct{}) {
	Logf("Control loop started (cycle delay %v)", c.delay)
	for {
		select {
		case <-done:
			if err := c.driver.Drive(CmdStop, 0); err != nil {
				Logf("[Control] stop on shutdown failed: %v", err)
			}
			Logf("Control loop stopped after %d cycles", c.cycles)
			return
		default:
			c.Cycle()
			c.sleep(c.delay)
		}
	}
}

// Cycle は1サイクル分の処理を行い、実際に実行した動作を返す
func (c *ControlLoop) Cycle() Decision {
	c.cycles++

	// 新しい指令がなければ前回の指令を保持する
	if cmd, ok := c.link.TryReceive(); ok {
		c.current = cmd
	}

	distance := c.sensor.Measure()
	if distance.Valid() {
		c.invalidStreak = 0
	} else {
		c.invalidStreak++
	}

	now := c.now()
	d := c.avoid.Step(now, distance, c.current)
	if d.Completed {
		// 回避後はオペレータが指令を出し直すまで停止
		c.current = CmdStop
	}

	if err := c.driver.Drive(d.Motion, d.Speed); err != nil {
		c.driveFailures++
		Logf("[Control] drive %s failed: %v", d.Motion, err)
	}

	label := c.current.String()
	if d.Obstacle {
		label = OBSTACLE_LABEL
		c.indicator.Obstacle()
	}
	c.indicator.SetManeuver(c.avoid.Active())

	rec := TelemetryRecord{
		Label:       label,
		Distance:    distance,
		TimestampMS: now.Sub(c.start).Milliseconds(),
	}
	// テレメトリは診断用なので失敗しても数えるだけ
	if err := c.telemetry.Publish(rec); err != nil {
		c.telemetryFailures++
	}

	if c.debug {
		Logf("Command: %s | Distance: %d cm | Motion: %s (%s)", c.current, distance, d.Motion, d.Phase)
	}

	c.publishStatus(d, distance, now)
	return d
}

func (c *ControlLoop) publishStatus(d Decision, distance Distance, now time.Time) {
	if c.status == nil {
		return
	}
	c.status.Update(func(s *Status) {
		s.Command = c.current.String()
		s.Motion = d.Motion.String()
		s.Speed = d.Speed
		s.Distance = distance
		s.Phase = d.Phase.String()
		s.Episodes = c.avoid.Episodes()
		if d.EpisodeID != "" {
			s.EpisodeID = d.EpisodeID
		}
		s.Cycles = c.cycles
		s.TelemetryFailures = c.telemetryFailures
		s.DriveFailures = c.driveFailures
		s.SensorFault = c.invalidStreak >= SENSOR_FAULT_CYCLES
		s.UptimeMS = now.Sub(c.start).Milliseconds()
	})
}
