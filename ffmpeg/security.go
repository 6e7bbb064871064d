package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// SplitArgs securely splits an operator-supplied argument string into a slice.
// It prevents shell injection by not using a shell.
func SplitArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid argument syntax: %w", err)
	}
	return args, nil
}

// ValidateArgs checks extra ffmpeg arguments for anything that could smuggle
// in a second input or shell syntax.
func ValidateArgs(args []string) error {
	for _, arg := range args {
		// exec.Command never invokes a shell, but block metacharacters anyway.
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
		if arg == "-i" {
			return fmt.Errorf("extra arguments must not add inputs")
		}
	}
	return nil
}
