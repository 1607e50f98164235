package emit

import (
	"context"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

// PbEmitter drives a cheggaaa/pb terminal progress bar from collection
// events, for interactive CLI use. It advances the bar by one for every
// StageStore event and ignores the rest.
type PbEmitter struct {
	mu  sync.Mutex
	bar *pb.ProgressBar
}

// NewPbEmitter creates a progress bar sized to total expected records.
// Call Finish when the run completes.
func NewPbEmitter(total int) *PbEmitter {
	bar := pb.StartNew(total)
	return &PbEmitter{bar: bar}
}

func (p *PbEmitter) Emit(event Event) {
	if event.Stage != StageStore {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Increment()
}

func (p *PbEmitter) EmitBatch(_ context.Context, events []Event) error {
	count := 0
	for _, event := range events {
		if event.Stage == StageStore {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Add(count)
	return nil
}

// Flush finishes the progress bar, writing its final line.
func (p *PbEmitter) Flush(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Finish()
	return nil
}
