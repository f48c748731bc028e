package provisioning

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal printf-style logging surface used by stages.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer defines the structured observability surface for provisioning.
// Every stage emits timestamped, leveled status lines through it; the
// default implementation writes both to the terminal and to a persistent
// per-run log file.
type Observer interface {
	Logger

	// Event emits a structured event.
	Event(event Event)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType
	Stage     Stage
	NodeID    int
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of provisioning event.
type EventType string

const (
	// EventStageStarted indicates a pipeline stage has started for a node.
	EventStageStarted EventType = "stage.started"
	// EventStageCompleted indicates a pipeline stage completed successfully.
	EventStageCompleted EventType = "stage.completed"
	// EventStageFailed indicates a pipeline stage failed.
	EventStageFailed EventType = "stage.failed"
	// EventStageSkipped indicates a stage was skipped (e.g. reuse of an
	// existing complete install).
	EventStageSkipped EventType = "stage.skipped"
	// EventWarning indicates a recoverable anomaly worth surfacing.
	EventWarning EventType = "warning"
	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// LogObserver implements Observer on top of logrus, duplicating output to
// the terminal and a persistent run log.
type LogObserver struct {
	logger        *logrus.Logger
	contextFields map[string]string
	closer        io.Closer
}

// NewLogObserver creates an observer writing to stderr and, when logDir is
// non-empty, to logDir/provision-<runID>.log as well. Call Close when the
// run is finished.
func NewLogObserver(logDir, runID string) (*LogObserver, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	obs := &LogObserver{
		logger:        logger,
		contextFields: make(map[string]string),
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path := filepath.Join(logDir, fmt.Sprintf("provision-%s.log", runID))
		// #nosec G304
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open run log: %w", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
		obs.closer = f
	}

	return obs, nil
}

// Close releases the run log file.
func (o *LogObserver) Close() error {
	if o.closer != nil {
		return o.closer.Close()
	}
	return nil
}

// Printf implements Logger.
func (o *LogObserver) Printf(format string, v ...interface{}) {
	o.entry().Infof(format, v...)
}

// Event implements Observer.
func (o *LogObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	entry := o.entry()
	if event.Stage != "" {
		entry = entry.WithField("stage", string(event.Stage))
	}
	if event.NodeID != 0 {
		entry = entry.WithField("node", event.NodeID)
	}
	for k, v := range event.Fields {
		entry = entry.WithField(k, v)
	}

	switch event.Type {
	case EventStageFailed:
		entry.Error(event.Message)
	case EventWarning:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
}

// WithFields implements Observer.
func (o *LogObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &LogObserver{
		logger:        o.logger,
		contextFields: merged,
		closer:        o.closer,
	}
}

func (o *LogObserver) entry() *logrus.Entry {
	entry := logrus.NewEntry(o.logger)
	for k, v := range o.contextFields {
		entry = entry.WithField(k, v)
	}
	return entry
}

// NopObserver discards everything. Used in tests.
type NopObserver struct{}

func (NopObserver) Printf(string, ...interface{}) {}

func (NopObserver) Event(Event) {}

func (n NopObserver) WithFields(map[string]string) Observer { return n }
