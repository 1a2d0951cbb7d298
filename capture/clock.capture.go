package capture

import "math"

// FrameTime is the virtual time in seconds of frameIndex. It is recomputed
// from the integer index every frame so long runs do not drift.
func FrameTime(frameIndex, frameRate int) float64 {
	return float64(frameIndex) / float64(frameRate)
}

// PlaybackPosition converts virtual seconds to a sample position.
func PlaybackPosition(virtualTime float64, sampleRate int) float64 {
	return math.Max(0, virtualTime*float64(sampleRate))
}
