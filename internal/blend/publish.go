package blend

import (
	"encoding/json"
	"sync"

	"github.com/calder-systems/terminal-core/internal/infrastructure/mqtt"
)

// Publisher is the interface for delivering blend events to the broker.
// Implemented by mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// eventQueueSize bounds pending blend events per publisher. Control and
// monitor loops never wait on the broker.
const eventQueueSize = 64

// StatePublisher pushes lifecycle transitions to MQTT as retained state, so
// late subscribers see each operation's current phase immediately. It
// implements EventSink.
//
// Snapshots queue to a worker goroutine; a backed-up queue drops the newest
// snapshot. The single worker preserves transition order per operation.
type StatePublisher struct {
	pub   Publisher
	qos   byte
	queue chan Snapshot
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	loggerMu sync.Mutex
	logger   Logger
}

// NewStatePublisher creates a state publisher over pub and starts its
// delivery worker.
func NewStatePublisher(pub Publisher, qos byte) *StatePublisher {
	s := &StatePublisher{
		pub:    pub,
		qos:    qos,
		queue:  make(chan Snapshot, eventQueueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// SetLogger sets the logger for publish failures and queue drops.
func (s *StatePublisher) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *StatePublisher) getLogger() Logger {
	s.loggerMu.Lock()
	defer s.loggerMu.Unlock()
	return s.logger
}

// BlendStateChanged queues the snapshot. Never blocks.
func (s *StatePublisher) BlendStateChanged(snap Snapshot) {
	select {
	case s.queue <- snap:
	case <-s.done:
	default:
		s.getLogger().Warn("blend state queue full, dropping snapshot",
			"operation_id", snap.ID,
		)
	}
}

// Close drains whatever is already queued and stops the worker.
func (s *StatePublisher) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *StatePublisher) worker() {
	defer s.wg.Done()
	for {
		select {
		case snap := <-s.queue:
			s.publish(snap)
		case <-s.done:
			for {
				select {
				case snap := <-s.queue:
					s.publish(snap)
				default:
					return
				}
			}
		}
	}
}

// publish sends the snapshot on the operation's state topic, retained.
func (s *StatePublisher) publish(snap Snapshot) {
	if !s.pub.IsConnected() {
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		s.getLogger().Error("marshalling blend state", "error", err)
		return
	}
	topic := mqtt.Topics{}.BlendState(snap.ID)
	if pubErr := s.pub.Publish(topic, payload, s.qos, true); pubErr != nil {
		s.getLogger().Warn("publishing blend state",
			"topic", topic,
			"error", pubErr,
		)
	}
}

// ProgressPublisher pushes periodic progress snapshots to MQTT. Progress is
// transient, so messages are not retained and a dropped snapshot is replaced
// by the next monitor tick. It implements TelemetrySink.
type ProgressPublisher struct {
	pub   Publisher
	qos   byte
	queue chan Snapshot
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	loggerMu sync.Mutex
	logger   Logger
}

// NewProgressPublisher creates a progress publisher over pub and starts its
// delivery worker.
func NewProgressPublisher(pub Publisher, qos byte) *ProgressPublisher {
	p := &ProgressPublisher{
		pub:    pub,
		qos:    qos,
		queue:  make(chan Snapshot, eventQueueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

// SetLogger sets the logger for publish failures.
func (p *ProgressPublisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *ProgressPublisher) getLogger() Logger {
	p.loggerMu.Lock()
	defer p.loggerMu.Unlock()
	return p.logger
}

// BlendProgress queues the snapshot. Never blocks.
func (p *ProgressPublisher) BlendProgress(snap Snapshot) {
	select {
	case p.queue <- snap:
	case <-p.done:
	default:
		// Periodic data; the next monitor tick supersedes it.
	}
}

// Close drains whatever is already queued and stops the worker.
func (p *ProgressPublisher) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *ProgressPublisher) worker() {
	defer p.wg.Done()
	for {
		select {
		case snap := <-p.queue:
			p.publish(snap)
		case <-p.done:
			for {
				select {
				case snap := <-p.queue:
					p.publish(snap)
				default:
					return
				}
			}
		}
	}
}

// publish sends the snapshot on the operation's progress topic.
func (p *ProgressPublisher) publish(snap Snapshot) {
	if !p.pub.IsConnected() {
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		p.getLogger().Error("marshalling blend progress", "error", err)
		return
	}
	topic := mqtt.Topics{}.BlendProgress(snap.ID)
	if pubErr := p.pub.Publish(topic, payload, p.qos, false); pubErr != nil {
		p.getLogger().Warn("publishing blend progress",
			"topic", topic,
			"error", pubErr,
		)
	}
}
