package params

import "time"

type Config struct {
	SourceConfig
	InferConfig
	RewardConfig
}

// SourceConfig configures the device position subscription.
type SourceConfig struct {
	HighAccuracy bool
	// MaxFixAge is the oldest cached fix the device may hand us.
	MaxFixAge time.Duration
	// FixDeadline bounds how long the device may take to produce a fix.
	// Missing it is a transient timeout, not a session error.
	FixDeadline time.Duration
}

var DefaultSourceConfig = SourceConfig{
	HighAccuracy: true,
	MaxFixAge:    2 * time.Second,
	FixDeadline:  30 * time.Second,
}

// InferConfig tunes movement and speed inference.
type InferConfig struct {
	// SpeedWindow is the smoothing window length (candidate speeds).
	SpeedWindow int
	// MovementWindow is the displacement window length (timestamped points).
	MovementWindow int
	// MovementHorizon excludes window entries older than this from the
	// displacement sum.
	MovementHorizon time.Duration
	// MinDeriveInterval gates position-derived speed; fixes arriving faster
	// than this reuse the previous smoothed speed.
	MinDeriveInterval time.Duration
	// MovementFloorMeters is the minimum displacement threshold.
	MovementFloorMeters float64
	// MovementAccuracyFactor scales fix accuracy into the displacement
	// threshold: threshold = max(floor, accuracy*factor).
	MovementAccuracyFactor float64
	// DrivingMinSpeedMPH is the smoothed-speed threshold for "driving".
	DrivingMinSpeedMPH int
}

var DefaultInferConfig = InferConfig{
	SpeedWindow:            5,
	MovementWindow:         10,
	MovementHorizon:        30 * time.Second,
	MinDeriveInterval:      2 * time.Second,
	MovementFloorMeters:    5,
	MovementAccuracyFactor: 2,
	DrivingMinSpeedMPH:     2,
}

// RewardConfig tunes the safety-reward engine. Reward rates are tokens per
// whole observed minute; score deltas are applied once per observation.
type RewardConfig struct {
	// MinObservationInterval is the caller-enforced gap between
	// observations for one user. It doubles as the engine's mutual
	// exclusion, so treat it as a correctness requirement.
	MinObservationInterval time.Duration

	SafeSpeedMaxMPH    float64
	CautionSpeedMaxMPH float64
	ExerciseMinMPH     float64
	ExerciseMaxMPH     float64

	SafeTokensPerMin     int64
	CautionTokensPerMin  int64
	SpeedingTokensPerMin int64
	ExerciseTokensPerMin int64

	// AggregateMinMinutes gates the monthly-aggregate bonus (30 hours).
	AggregateMinMinutes float64
	AggregateBonus      int64
	AggregatePenalty    int64
}

var DefaultRewardConfig = RewardConfig{
	MinObservationInterval: 30 * time.Second,

	SafeSpeedMaxMPH:    65,
	CautionSpeedMaxMPH: 75,
	ExerciseMinMPH:     3,
	ExerciseMaxMPH:     15,

	SafeTokensPerMin:     8,
	CautionTokensPerMin:  -3,
	SpeedingTokensPerMin: -15,
	ExerciseTokensPerMin: 5,

	AggregateMinMinutes: 1800,
	AggregateBonus:      150,
	AggregatePenalty:    300,
}
