// ytmp3/policy/duration.go
package policy

import "fmt"

// SizeLimitKB is the hard ceiling on the produced audio file, imposed by the
// delivery channel's attachment size limit.
const SizeLimitKB = 20000

// MaxLength returns the longest source duration, in seconds, that can be
// encoded at the given bitrate (kbps) without exceeding SizeLimitKB.
func MaxLength(bitrate int) float64 {
	return SizeLimitKB / (float64(bitrate) / 8)
}

// TooLongError reports a source that cannot fit under the size ceiling at the
// requested bitrate.
type TooLongError struct {
	Bitrate   int
	MaxLength float64
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("video too long: at %dkbps the maximum length is %.0fs", e.Bitrate, e.MaxLength)
}

// Validate checks a source duration against the limit derived from the
// bitrate. It returns a *TooLongError when the source does not fit.
func Validate(lengthSeconds, bitrate int) error {
	max := MaxLength(bitrate)
	if float64(lengthSeconds) > max {
		return &TooLongError{Bitrate: bitrate, MaxLength: max}
	}
	return nil
}
