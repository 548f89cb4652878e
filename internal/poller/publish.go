package poller

import (
	"encoding/json"
	"sync"

	"github.com/calder-systems/terminal-core/internal/infrastructure/mqtt"
)

// Publisher is the interface for delivering notifications to the broker.
// Implemented by mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// publishQueueSize bounds how many pending notifications a publisher holds
// before it starts dropping.
const publishQueueSize = 256

// TriggerPublisher forwards register changes to the trigger collaborator
// over MQTT. It implements Subscriber.
//
// Delivery is best-effort and asynchronous: batches queue to a worker
// goroutine and the newest batch is dropped when the queue backs up. A
// stalled broker must never stall a poll cycle.
type TriggerPublisher struct {
	pub   Publisher
	qos   byte
	queue chan []Change
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	loggerMu sync.Mutex
	logger   Logger
}

// NewTriggerPublisher creates a trigger publisher over pub and starts its
// delivery worker.
func NewTriggerPublisher(pub Publisher, qos byte) *TriggerPublisher {
	t := &TriggerPublisher{
		pub:    pub,
		qos:    qos,
		queue:  make(chan []Change, publishQueueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
	t.wg.Add(1)
	go t.worker()
	return t
}

// SetLogger sets the logger for publish failures and queue drops.
func (t *TriggerPublisher) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

func (t *TriggerPublisher) getLogger() Logger {
	t.loggerMu.Lock()
	defer t.loggerMu.Unlock()
	return t.logger
}

// RegisterChanged queues one poll cycle's changes. Never blocks: a full
// queue drops the batch.
func (t *TriggerPublisher) RegisterChanged(changes []Change) {
	select {
	case t.queue <- changes:
	case <-t.done:
	default:
		t.getLogger().Warn("register change queue full, dropping batch",
			"count", len(changes),
		)
	}
}

// Close drains whatever is already queued and stops the worker.
func (t *TriggerPublisher) Close() {
	t.once.Do(func() { close(t.done) })
	t.wg.Wait()
}

func (t *TriggerPublisher) worker() {
	defer t.wg.Done()
	for {
		select {
		case changes := <-t.queue:
			t.publish(changes)
		case <-t.done:
			for {
				select {
				case changes := <-t.queue:
					t.publish(changes)
				default:
					return
				}
			}
		}
	}
}

// publish sends one message per changed register.
func (t *TriggerPublisher) publish(changes []Change) {
	if !t.pub.IsConnected() {
		return
	}

	for _, ch := range changes {
		payload, err := json.Marshal(ch)
		if err != nil {
			t.getLogger().Error("marshalling register change", "error", err)
			continue
		}
		topic := mqtt.Topics{}.RegisterValue(ch.DeviceID, ch.Address)
		if pubErr := t.pub.Publish(topic, payload, t.qos, false); pubErr != nil {
			t.getLogger().Warn("publishing register change",
				"topic", topic,
				"error", pubErr,
			)
		}
	}
}

// HealthPublisher forwards poll-health snapshots to MQTT as retained state.
// It implements HealthSink.
//
// Snapshots queue to a worker goroutine like register changes. Dropping a
// snapshot under backpressure is harmless: the next poll cycle replaces it.
type HealthPublisher struct {
	pub   Publisher
	qos   byte
	queue chan Health
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	loggerMu sync.Mutex
	logger   Logger
}

// NewHealthPublisher creates a health publisher over pub and starts its
// delivery worker.
func NewHealthPublisher(pub Publisher, qos byte) *HealthPublisher {
	h := &HealthPublisher{
		pub:    pub,
		qos:    qos,
		queue:  make(chan Health, publishQueueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
	h.wg.Add(1)
	go h.worker()
	return h
}

// SetLogger sets the logger for publish failures and queue drops.
func (h *HealthPublisher) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

func (h *HealthPublisher) getLogger() Logger {
	h.loggerMu.Lock()
	defer h.loggerMu.Unlock()
	return h.logger
}

// PollHealth queues the snapshot. Never blocks.
func (h *HealthPublisher) PollHealth(health Health) {
	select {
	case h.queue <- health:
	case <-h.done:
	default:
		h.getLogger().Warn("poll health queue full, dropping snapshot",
			"device_id", health.DeviceID,
		)
	}
}

// Close drains whatever is already queued and stops the worker.
func (h *HealthPublisher) Close() {
	h.once.Do(func() { close(h.done) })
	h.wg.Wait()
}

func (h *HealthPublisher) worker() {
	defer h.wg.Done()
	for {
		select {
		case health := <-h.queue:
			h.publish(health)
		case <-h.done:
			for {
				select {
				case health := <-h.queue:
					h.publish(health)
				default:
					return
				}
			}
		}
	}
}

// publish sends the snapshot, retained so late subscribers see the current
// health immediately.
func (h *HealthPublisher) publish(health Health) {
	if !h.pub.IsConnected() {
		return
	}

	payload, err := json.Marshal(health)
	if err != nil {
		h.getLogger().Error("marshalling poll health", "error", err)
		return
	}
	topic := mqtt.Topics{}.DeviceHealth(health.DeviceID)
	if pubErr := h.pub.Publish(topic, payload, h.qos, true); pubErr != nil {
		h.getLogger().Warn("publishing poll health",
			"topic", topic,
			"error", pubErr,
		)
	}
}
