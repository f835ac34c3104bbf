package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"btcfee/internal/application/port"
)

// Sink 终端输出：live 行原地覆盖，普通行追加
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink(out io.Writer) port.Sink {
	if out == nil {
		out = os.Stdout
	}
	return &Sink{out: out}
}

func (s *Sink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, line) // no newline
	return err
}

func (s *Sink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, line)
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, "\n")
	return err
}
