package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Iron-Ham/fleetcore/internal/logging"
)

// DefaultSubject is the NATS subject audit records are published on.
const DefaultSubject = "fleetcore.audit"

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig holds the NATS connection settings.
type NATSConfig struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns a config pointed at the default local server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		Name:           "fleetcore",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

// DialNATS opens a NATS connection from cfg.
func DialNATS(cfg NATSConfig) (*nats.Conn, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// NATSSink publishes each record as JSON on a subject. Publish failures are
// logged and dropped; the audit log never blocks scheduling.
type NATSSink struct {
	pub     Publisher
	subject string
	logger  *logging.Logger
	now     func() time.Time
}

// NewNATSSink creates a NATSSink. An empty subject uses DefaultSubject.
func NewNATSSink(pub Publisher, subject string, logger *logging.Logger) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &NATSSink{
		pub:     pub,
		subject: subject,
		logger:  logger.WithComponent("audit.nats"),
		now:     time.Now,
	}
}

// Log publishes the record to the subject "<subject>.<event>".
func (s *NATSSink) Log(event string, payload map[string]any) {
	data, err := json.Marshal(Record{Event: event, Payload: payload, Time: s.now()})
	if err != nil {
		s.logger.Warn("marshal audit record", "event", event, "error", err)
		return
	}
	if err := s.pub.Publish(s.subject+"."+event, data); err != nil {
		s.logger.Warn("publish audit record", "event", event, "error", err)
	}
}
