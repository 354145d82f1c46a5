package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/bot/metrics"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// Dispatcher routes inbound updates to a fixed set of workers using
// consistent hashing on the chat id, guaranteeing that events from the same
// user are handled strictly in order, one at a time.
type Dispatcher struct {
	workers []chan ports.Update
	handler ports.UpdateHandler
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, handler ports.UpdateHandler, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.Update, numWorkers),
		handler: handler,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.Update, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an update to the worker responsible for its chat.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(u ports.Update) {
	idx := d.shardIndex(u.ChatID)
	d.workers[idx] <- u
	metrics.QueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
}

// shardIndex maps a chat id deterministically to a worker index.
func (d *Dispatcher) shardIndex(chatID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(chatID, 10)))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			d.handler.HandleUpdate(ctx, u)
			metrics.QueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
		}
	}
}
