package protocol

// TimeBase carries the absolute time and the delta since the previous tick,
// both in seconds. The host owns the clock; the protocol core never reads
// the wall clock itself.
type TimeBase struct {
	Time      float64
	DeltaTime float64
}
