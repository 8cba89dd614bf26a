package protocol

import "fmt"

// BadFrame reports a frame that failed to decode: a short buffer, an
// unrecognized tag, a body whose length doesn't match the tag's required
// size, or invalid UTF-8 in a token field.
type BadFrame struct {
	Reason string
}

func (e *BadFrame) Error() string {
	return fmt.Sprintf("bad frame: %s", e.Reason)
}

func badFrame(format string, args ...interface{}) *BadFrame {
	return &BadFrame{Reason: fmt.Sprintf(format, args...)}
}
