package control

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
)

// StdinSurface reads one command per newline from r (§6: "one command per
// newline, whitespace-separated tokens; first token is the command, the
// rest are arguments").
type StdinSurface struct {
	dispatcher *Dispatcher
	logger     logging.Logger
}

func NewStdinSurface(d *Dispatcher, logger logging.Logger) *StdinSurface {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StdinSurface{dispatcher: d, logger: logger}
}

// Run blocks, reading commands from r until EOF.
func (s *StdinSurface) Run(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		result, err := s.dispatcher.Dispatch(line)
		if err != nil {
			s.logger.Error("control", "command failed", "line", line, "err", err.Error())
			continue
		}
		if result != nil {
			s.logger.Info("control", fmt.Sprintf("%v", result), "line", line)
		}
	}
}
