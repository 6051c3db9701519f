package main

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Phase は回避動作の段階
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBraking
	PhaseReversing
	PhaseTurning
	PhaseResuming
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBraking:
		return "braking"
	case PhaseReversing:
		return "reversing"
	case PhaseTurning:
		return "turning"
	case PhaseResuming:
		return "resuming"
	default:
		return "unknown"
	}
}

// AvoidanceConfig は回避動作のしきい値・速度・各フェーズの継続時間
type AvoidanceConfig struct {
	Threshold Distance

	DriveSpeed   int // 通常の前進・後退、回避後の前進
	TurnSpeed    int // 通常の左右旋回
	ReverseSpeed int
	EscapeSpeed  int

	BrakeDwell   time.Duration
	ReverseDwell time.Duration
	SettleDwell  time.Duration // 後退後の停止。Reversing の終わりに含める
	TurnDwell    time.Duration
	ResumeDwell  time.Duration
}

// DefaultAvoidanceConfig は元のファームウェアと同じ値を返す
func DefaultAvoidanceConfig() AvoidanceConfig {
	return AvoidanceConfig{
		Threshold:    Distance(DEFAULT_OBSTACLE_THRESHOLD),
		DriveSpeed:   DEFAULT_DRIVE_SPEED,
		TurnSpeed:    DEFAULT_TURN_SPEED,
		ReverseSpeed: DEFAULT_REVERSE_SPEED,
		EscapeSpeed:  DEFAULT_ESCAPE_SPEED,
		BrakeDwell:   DEFAULT_BRAKE_DWELL,
		ReverseDwell: DEFAULT_REVERSE_DWELL,
		SettleDwell:  DEFAULT_SETTLE_DWELL,
		TurnDwell:    DEFAULT_TURN_DWELL,
		ResumeDwell:  DEFAULT_RESUME_DWELL,
	}
}

// Decision は1サイクル分の調停結果
type Decision struct {
	Motion    Command
	Speed     int
	Phase     Phase
	Obstacle  bool // このサイクルで障害物を検出して回避を開始した
	Completed bool // このサイクルで回避が終わった。現在の指令を Stop に戻すこと
	EpisodeID string
}

// AvoidanceController は指令をそのまま通すか、回避動作で上書きするかを決める。
// 回避中は距離を見ない（時間だけで進む開ループ動作）。
type AvoidanceController struct {
	cfg    AvoidanceConfig
	choose func() Command

	phase      Phase
	phaseStart time.Time
	escape     Command
	episode    string
	episodes   uint64
}

// RandomEscape は左右を等確率で選ぶ
func RandomEscape() Command {
	if rand.IntN(2) == 0 {
		return CmdLeft
	}
	return CmdRight
}

// NewAvoidanceController を作る。choose が nil なら RandomEscape を使う。
func NewAvoidanceController(cfg AvoidanceConfig, choose func() Command) *AvoidanceController {
	if choose == nil {
		choose = RandomEscape
	}
	return &AvoidanceController{cfg: cfg, choose: choose}
}

// Phase は現在のフェーズ
func (a *AvoidanceController) Phase() Phase { return a.phase }

// Active は回避動作中なら true
func (a *AvoidanceController) Active() bool { return a.phase != PhaseIdle }

// Episodes はこれまでに開始した回避動作の回数
func (a *AvoidanceController) Episodes() uint64 { return a.episodes }

// Step は1サイクル進める。Idle のときだけ distance と cmd を見る。
func (a *AvoidanceController) Step(now time.Time, distance Distance, cmd Command) Decision {
	if a.phase == PhaseIdle {
		if distance.Valid() && distance < a.cfg.Threshold {
			a.episode = uuid.NewString()
			a.episodes++
			a.enter(PhaseBraking, now)
			Logf("[Avoid] obstacle at %d cm, starting episode %s", distance, a.episode)
			return a.decide(CmdStop, 0, true, false)
		}
		return Decision{Motion: cmd, Speed: a.cruiseSpeed(cmd), Phase: PhaseIdle}
	}

	elapsed := now.Sub(a.phaseStart)
	switch a.phase {
	case PhaseBraking:
		if elapsed < a.cfg.BrakeDwell {
			return a.decide(CmdStop, 0, false, false)
		}
		a.enter(PhaseReversing, a.phaseStart.Add(a.cfg.BrakeDwell))
		return a.decide(CmdBackward, a.cfg.ReverseSpeed, false, false)

	case PhaseReversing:
		if elapsed < a.cfg.ReverseDwell {
			return a.decide(CmdBackward, a.cfg.ReverseSpeed, false, false)
		}
		if elapsed < a.cfg.ReverseDwell+a.cfg.SettleDwell {
			return a.decide(CmdStop, 0, false, false)
		}
		a.escape = a.choose()
		a.enter(PhaseTurning, a.phaseStart.Add(a.cfg.ReverseDwell+a.cfg.SettleDwell))
		Logf("[Avoid] turning %s", a.escape)
		return a.decide(a.escape, a.cfg.EscapeSpeed, false, false)

	case PhaseTurning:
		if elapsed < a.cfg.TurnDwell {
			return a.decide(a.escape, a.cfg.EscapeSpeed, false, false)
		}
		a.enter(PhaseResuming, a.phaseStart.Add(a.cfg.TurnDwell))
		return a.decide(CmdForward, a.cfg.DriveSpeed, false, false)

	case PhaseResuming:
		if elapsed < a.cfg.ResumeDwell {
			return a.decide(CmdForward, a.cfg.DriveSpeed, false, false)
		}
		d := a.decide(CmdStop, 0, false, true)
		Logf("[Avoid] episode %s finished", a.episode)
		a.enter(PhaseIdle, now)
		d.Phase = PhaseIdle
		return d
	}

	return a.decide(CmdStop, 0, false, false)
}

// enter はフェーズを切り替える。start には前のフェーズが本来終わる時刻を渡し、
// サイクルごとの遅れが積み重ならないようにする。
func (a *AvoidanceController) enter(p Phase, start time.Time) {
	a.phase = p
	a.phaseStart = start
}

func (a *AvoidanceController) decide(motion Command, speed int, obstacle, completed bool) Decision {
	return Decision{
		Motion:    motion,
		Speed:     speed,
		Phase:     a.phase,
		Obstacle:  obstacle,
		Completed: completed,
		EpisodeID: a.episode,
	}
}

// cruiseSpeed は通常走行時の速度。旋回だけ少し遅い。
func (a *AvoidanceController) cruiseSpeed(cmd Command) int {
	switch cmd {
	case CmdLeft, CmdRight:
		return a.cfg.TurnSpeed
	case CmdStop:
		return 0
	default:
		return a.cfg.DriveSpeed
	}
}
