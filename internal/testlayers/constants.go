package testlayers

// Peak tolerance: the analysis smooths the trace, so the reported peak sits
// slightly below the generated one.
const (
	peakTolerance = 0.1 // fraction of the generated peak
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
)
