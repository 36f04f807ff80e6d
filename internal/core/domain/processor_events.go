package domain

// ProcessorStopEventType is the event bus type carrying StopProcessorCommand.
const ProcessorStopEventType = "processor-stop"

// Acknowledger is the settle-only view of a completion handle handed to the worker.
type Acknowledger interface {
	Settle(err error) bool
}

// StopProcessorCommand asks the processor with ProcessorID to stop and settle Ack.
type StopProcessorCommand struct {
	ProcessorID string
	Ack         Acknowledger
}

// Type implements eventbus.Event.
func (StopProcessorCommand) Type() string {
	return ProcessorStopEventType
}
