package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimemark converts an ffmpeg progress marker of the form
// "HH:MM:SS[.fraction]" into whole elapsed seconds. The fraction is dropped.
func ParseTimemark(mark string) (int, error) {
	base, _, _ := strings.Cut(mark, ".")
	parts := strings.Split(base, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timemark %q", mark)
	}

	var total int
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed timemark %q", mark)
		}
		total = total*60 + n
	}
	return total, nil
}
