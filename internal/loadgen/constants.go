package loadgen

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)

// tolerance bounds the difference between server and local means.
const tolerance = 1e-6
