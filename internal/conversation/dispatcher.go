package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tiendatec/chat-platform/internal/messaging"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("conversation: dispatcher closed")

// Processor is the downstream handler for dequeued messages. *BotService
// satisfies it.
type Processor interface {
	HandleInbound(ctx context.Context, in messaging.Inbound) (*Response, error)
}

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2
	defaultReceiveMax       = 5
	maxReceiveWaitSeconds   = 20
	maxReceiveBatchMessages = 10
)

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for receive calls.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// Dispatcher funnels inbound messages through a queue before the bot
// pipeline. Messages from the same phone number are processed one at a time,
// in the order workers dequeued them, so a conversation never sees two turns
// interleave or reorder, while different conversations run in parallel across
// workers.
type Dispatcher struct {
	processor Processor
	queue     queueClient
	logger    *logging.Logger
	locks     *keyedLocks

	cfg dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // jobID -> chan dispatchResult
}

var _ Processor = (*Dispatcher)(nil)

// NewDispatcher wires a queue-backed dispatcher around the processor and
// starts its workers.
func NewDispatcher(processor Processor, queue queueClient, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		processor: processor,
		queue:     queue,
		logger:    logger,
		locks:     newKeyedLocks(),
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}

	return d
}

// HandleInbound enqueues the message and blocks until a worker processed it.
func (d *Dispatcher) HandleInbound(ctx context.Context, in messaging.Inbound) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	jobID := uuid.NewString()
	payload := queuePayload{ID: jobID, Inbound: in}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("conversation: encode job: %w", err)
	}

	resultCh := make(chan dispatchResult, 1)
	d.pending.Store(jobID, resultCh)
	defer d.pending.Delete(jobID)

	if err := d.queue.Send(ctx, string(body)); err != nil {
		return nil, fmt.Errorf("conversation: enqueue job: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.response, res.err
	}
}

// Shutdown stops worker goroutines and notifies any pending callers.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	d.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan dispatchResult); ok {
			select {
			case ch <- dispatchResult{err: ErrDispatcherClosed}:
			default:
			}
		}
		d.pending.Delete(key)
		return true
	})

	return nil
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("conversation dispatcher worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("conversation dispatcher worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleQueueMessage(msg)
		}
	}
}

func (d *Dispatcher) handleQueueMessage(msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		d.logger.Error("failed to decode conversation job", "error", err)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	// Serialize per sender. The keyed lock grants in lock-call order, so two
	// quick messages from the same customer apply in the order workers picked
	// them off the queue.
	unlock := d.locks.lock(payload.Inbound.Phone)
	resp, err := d.processor.HandleInbound(d.ctx, payload.Inbound)
	unlock()

	d.deleteMessage(msg.ReceiptHandle)
	d.deliverResult(payload.ID, resp, err)
}

func (d *Dispatcher) deleteMessage(receiptHandle string) {
	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.queue.Delete(deleteCtx, receiptHandle); err != nil {
		d.logger.Error("failed to delete conversation job", "error", err)
	}
}

func (d *Dispatcher) deliverResult(jobID string, resp *Response, err error) {
	value, ok := d.pending.Load(jobID)
	if !ok {
		d.logger.Debug("no waiting caller for conversation job", "job_id", jobID)
		return
	}

	ch, ok := value.(chan dispatchResult)
	if !ok {
		d.logger.Error("conversation dispatcher pending map corrupted", "job_id", jobID)
		d.pending.Delete(jobID)
		return
	}

	select {
	case ch <- dispatchResult{response: resp, err: err}:
	default:
	}
}

type queuePayload struct {
	ID      string            `json:"id"`
	Inbound messaging.Inbound `json:"inbound"`
}

type dispatchResult struct {
	response *Response
	err      error
}

// keyedLocks serializes work per key in strict lock-call order. Each lock call
// appends itself to the key's chain and waits for its predecessor to release,
// so waiters acquire first-come first-served instead of racing on a mutex. The
// entry is freed when the last holder releases.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	tail chan struct{} // closed by the current tail holder on release
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	mine := make(chan struct{})

	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	prev := entry.tail
	entry.tail = mine
	k.mu.Unlock()

	if prev != nil {
		<-prev
	}
	return func() {
		close(mine)
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
