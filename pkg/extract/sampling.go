package extract

import "math"

// Sampling rule of the native backend: output frame k (k = 1, 2, ...) shows
// media time (k-1)/rate and is copied from the decoded frame whose display
// interval [start, end) contains that time. A 10 s clip sampled at 2 Hz yields
// frames for 0, 0.5, ..., 9.5 s, i.e. 20 frames. When rate exceeds the native
// frame rate a decoded frame is written more than once.

// frameTimestamp returns the presentation time in seconds of the index-th
// decoded frame, from the native frame rate when known and from the decoder
// position otherwise.
func frameTimestamp(index int, nativeFPS, posMsec float64) float64 {
	if nativeFPS > 0 {
		return float64(index) / nativeFPS
	}
	return posMsec / 1000
}

// frameEnd returns the end of the display interval of a frame starting at
// start. Without a native frame rate the interval is only the instant start.
func frameEnd(start, nativeFPS float64) float64 {
	if nativeFPS > 0 {
		return start + 1/nativeFPS
	}
	return math.Nextafter(start, math.Inf(1))
}

// dueFrames returns how many output frames are taken from a decoded frame
// whose display interval ends at end, given that written frames were
// already emitted.
func dueFrames(written int, end, rate float64) int {
	n := 0
	for float64(written+n)/rate < end {
		n++
	}
	return n
}
