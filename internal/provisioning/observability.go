package provisioning

import "log"

// Observer receives progress output during a run. It exists so that phases
// and the reclamation engine log the same way whether driven by the CLI or
// by tests.
type Observer interface {
	Printf(format string, v ...interface{})
}

// ConsoleObserver implements Observer using the standard log package.
type ConsoleObserver struct{}

// NewConsoleObserver creates a console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{}
}

// Printf implements Observer.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}
