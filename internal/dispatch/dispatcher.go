// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"polychat/internal/db"
	"polychat/internal/models"
)

// Recorder receives one record per settled request
type Recorder interface {
	RecordDispatch(d db.Dispatch) error
}

// Dispatcher runs Requests against a Sender
type Dispatcher struct {
	sender    models.Sender
	timeout   time.Duration
	recorder  Recorder
	sessionID string
}

func New(sender models.Sender, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
	}
}

// WithRecorder attaches a stats recorder; sessionID tags every record
func (d *Dispatcher) WithRecorder(r Recorder, sessionID string) *Dispatcher {
	d.recorder = r
	d.sessionID = sessionID
	return d
}

// Run sends every request concurrently. Results arrive in completion
// order and the channel closes once all requests have settled. A failing
// request never affects its siblings.
func (d *Dispatcher) Run(ctx context.Context, reqs []Request) <-chan Result {
	results := make(chan Result, len(reqs))

	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(r Request) {
			defer wg.Done()
			results <- d.Do(ctx, r)
		}(req)
	}

	// Close results channel when all requests are done
	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Do sends a single request with its own timeout
func (d *Dispatcher) Do(ctx context.Context, req Request) Result {
	timeoutCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		timeoutCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := d.sender.Send(timeoutCtx, req.Model.ID, req.Messages)
	res := Result{
		Key:     req.Key,
		Content: content,
		Err:     err,
		Latency: time.Since(start),
	}

	if err != nil {
		log.Printf("[dispatch] %s failed: %v", req.Key, err)
	}
	d.record(req, res)

	return res
}

func (d *Dispatcher) record(req Request, res Result) {
	if d.recorder == nil {
		return
	}
	mode := db.ModeBroadcast
	if req.Focused {
		mode = db.ModeFocused
	}
	rec := db.Dispatch{
		SessionID: d.sessionID,
		RoundID:   req.Key.RoundID,
		ModelID:   req.Model.ID,
		Mode:      mode,
		OK:        res.Err == nil,
		Error:     models.ErrorMessage(res.Err),
		Latency:   res.Latency,
		Turns:     len(req.Messages),
	}
	if err := d.recorder.RecordDispatch(rec); err != nil {
		log.Printf("[dispatch] failed to record stats: %v", err)
	}
}
