package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/thaiGO2003/DigiGO-sub000/internal/core/events"
)

type deliveryJob struct {
	EventID   string
	EventType string
	Payload   interface{}
}

type worker struct {
	id         int
	workerPool chan chan deliveryJob
	jobChannel chan deliveryJob
	logger     *slog.Logger
}

func newWorker(id int, workerPool chan chan deliveryJob, logger *slog.Logger) *worker {
	return &worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan deliveryJob),
		logger:     logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, deliverFunc func(deliveryJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				w.logger.Debug("worker delivering notification", "worker_id", w.id, "event_id", job.EventID)
				deliverFunc(job)
			case <-ctx.Done():
				w.logger.Debug("notification worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

// Notifier forwards ledger events (topup completed/failed, purchase completed)
// to an external webhook. Delivery is fire-and-forget: failures are logged and
// never reach the publisher, so a dead endpoint cannot stall crediting.
type Notifier struct {
	webhookURL string
	timeout    time.Duration
	logger     *slog.Logger

	jobQueue   chan deliveryJob
	workerPool chan chan deliveryJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	WebhookURL   string
	Timeout      time.Duration
	MaxWorkers   int
	JobQueueSize int
}

func NewNotifier(config Config, logger *slog.Logger) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	n := &Notifier{
		webhookURL: config.WebhookURL,
		timeout:    timeout,
		logger:     logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan deliveryJob, jobQueueSize),
		workerPool: make(chan chan deliveryJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	n.startWorkerPool()

	return n
}

func (n *Notifier) startWorkerPool() {
	n.once.Do(func() {
		for i := 0; i < n.maxWorkers; i++ {
			w := newWorker(i, n.workerPool, n.logger)
			w.start(n.ctx, &n.wg, n.deliver)
		}

		go n.dispatch()

		n.logger.Info("notification worker pool started",
			"max_workers", n.maxWorkers,
			"queue_size", cap(n.jobQueue))
	})
}

func (n *Notifier) dispatch() {
	n.wg.Add(1)
	defer n.wg.Done()

	for {
		select {
		case job := <-n.jobQueue:
			select {
			case jobChannel := <-n.workerPool:
				select {
				case jobChannel <- job:
				case <-n.ctx.Done():
					n.logger.Info("notification dispatcher shutting down")
					return
				}
			case <-n.ctx.Done():
				n.logger.Info("notification dispatcher shutting down")
				return
			}
		case <-n.ctx.Done():
			n.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

func (n *Notifier) Shutdown() {
	n.logger.Info("shutting down notifier")
	n.cancel()
	n.wg.Wait()
	n.logger.Info("notifier shutdown complete")
}

// SubscribeTo registers the notifier for the event types it forwards.
func (n *Notifier) SubscribeTo(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventTypeTopupCompleted,
		events.EventTypeTopupFailed,
		events.EventTypePurchaseCompleted,
	} {
		bus.Subscribe(eventType, n.HandleEvent)
	}
}

func (n *Notifier) HandleEvent(ctx context.Context, event events.Event) error {
	if n.webhookURL == "" {
		return nil
	}

	job := deliveryJob{
		EventID:   event.EventID(),
		EventType: event.EventType(),
		Payload:   event.Payload(),
	}

	select {
	case n.jobQueue <- job:
		n.logger.Debug("notification queued",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"queue_length", len(n.jobQueue))
	default:
		n.logger.Warn("notification queue full, dropping event",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"queue_capacity", cap(n.jobQueue))
	}

	return nil
}

func (n *Notifier) deliver(job deliveryJob) {
	body := map[string]interface{}{
		"event_id":   job.EventID,
		"event_type": job.EventType,
		"data":       job.Payload,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		n.logger.Error("failed to marshal notification", "event_id", job.EventID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		n.logger.Error("failed to create notification request", "event_id", job.EventID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: n.timeout}
	resp, err := client.Do(req)
	if err != nil {
		n.logger.Error("notification delivery failed",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		n.logger.Info("notification delivered",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"status_code", resp.StatusCode)
	} else {
		n.logger.Warn("notification endpoint returned error",
			"event_id", job.EventID,
			"event_type", job.EventType,
			"status_code", resp.StatusCode)
	}
}
