package processors

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
)

// processor is one running worker and its control loop.
type processor struct {
	host   *Host
	logger *slog.Logger

	// stopSignal has capacity 1; a pending signal is enough no matter how many commands arrive.
	stopSignal chan struct{}

	mu      sync.Mutex
	record  domain.ProcessorRecord
	pending []domain.Acknowledger
	stopped bool
}

func (p *processor) snapshot() domain.ProcessorRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record
}

// onStopCommand queues the acknowledgment of cmd, or settles it when already stopped.
func (p *processor) onStopCommand(cmd domain.StopProcessorCommand) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		cmd.Ack.Settle(nil)
		return
	}
	p.pending = append(p.pending, cmd.Ack)
	if p.record.State == domain.ProcessorStateRunning {
		p.record.State = domain.ProcessorStateStopRequested
	}
	p.mu.Unlock()

	p.logger.Info("Stop requested")
	select {
	case p.stopSignal <- struct{}{}:
	default:
	}
}

func (p *processor) run(ctx context.Context) {
	defer p.host.wg.Done()

	ticker := time.NewTicker(p.host.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSignal:
			p.finish("stop command")
			return
		case <-ctx.Done():
			p.finish("host shutdown")
			return
		case <-ticker.C:
			// A stop that arrives during the unit of work is handled once it completes.
			p.doWork(ctx)
		}
	}
}

func (p *processor) doWork(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Processor work panic recovered", slog.Any("panic", r))
		}
	}()
	if err := p.host.work(ctx, p.snapshot()); err != nil {
		p.logger.Warn("Processor work failed", slog.String("error", err.Error()))
	}
}

// finish deregisters the processor before acknowledging, so a caller that observed
// the acknowledgment can no longer resolve it. Commands arriving meanwhile are settled
// here or, once retired, by the host.
func (p *processor) finish(reason string) {
	p.host.remove(p)

	p.mu.Lock()
	p.stopped = true
	p.record.State = domain.ProcessorStateStopped
	acks := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, ack := range acks {
		ack.Settle(nil)
	}
	p.host.retire(p)
	p.logger.Info("Processor stopped", slog.String("reason", reason), slog.Int("acknowledged", len(acks)))
}
