package events

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"hivekeeper/internal/logger"
	"hivekeeper/internal/metrics"

	"golang.org/x/time/rate"
)

var (
	ErrRateLimited = errors.New("syslog rate limit exceeded")
	// ErrBacklogFull is returned when the collector can't keep up and the
	// queue is full; the event is dropped.
	ErrBacklogFull = errors.New("syslog backlog full")
)

const (
	defaultSyslogTimeout = 2 * time.Second
	defaultSyslogQueue   = 1024
	facilityLocal0       = 16
)

/**
 * Syslog transport settings
 * @property {string} Protocol - "udp" or "tcp"
 * @property {string} Host - Collector host
 * @property {int} Port - Collector port
 * @property {float64} Rate - Sustained events per second, 0 disables limiting
 * @property {int} Burst - Burst allowance
 * @property {string} Product - CEF product and syslog tag
 * @property {string} Version - CEF product version
 * @property {time.Duration} Timeout - Bound of each dial and write, default 2s
 * @property {int} QueueSize - Events buffered for the writer, default 1024
 */
type SyslogConfig struct {
	Protocol  string
	Host      string
	Port      int
	Rate      float64
	Burst     int
	Product   string
	Version   string
	Timeout   time.Duration
	QueueSize int
}

// SyslogSink sends service events as CEF style lines. Emit only queues the
// line; a writer goroutine dials and writes with deadlines. Delivery is best
// effort: a full queue or a failed write drops the event, the next one redials.
type SyslogSink struct {
	cfg      SyslogConfig
	addr     string
	hostname string
	limiter  *rate.Limiter
	queue    chan string
	stop     chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	closed   bool
	conn     net.Conn // writer goroutine only
}

func NewSyslogSink(cfg SyslogConfig) (*SyslogSink, error) {
	switch cfg.Protocol {
	case "":
		cfg.Protocol = "udp"
	case "udp", "tcp":
	default:
		return nil, fmt.Errorf("unsupported syslog protocol %q", cfg.Protocol)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid syslog port %d", cfg.Port)
	}
	if cfg.Product == "" {
		cfg.Product = "hivekeeper"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSyslogTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultSyslogQueue
	}
	s := &SyslogSink{
		cfg:   cfg,
		addr:  net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		queue: make(chan string, cfg.QueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	s.hostname, _ = os.Hostname()
	if s.hostname == "" {
		s.hostname = "localhost"
	}
	go s.run()
	return s, nil
}

func (s *SyslogSink) Name() string {
	return "syslog"
}

func syslogSeverity(level string) int {
	switch level {
	case LevelError:
		return 3
	case LevelWarn:
		return 4
	case LevelDebug:
		return 7
	default:
		return 6
	}
}

// frame renders an RFC 3164 message, newline terminated for stream transports.
func (s *SyslogSink) frame(e Event) string {
	return fmt.Sprintf("<%d>%s %s %s[%d]: %s\n",
		facilityLocal0*8+syslogSeverity(e.Level),
		time.Now().Format(time.Stamp),
		s.hostname,
		s.cfg.Product,
		os.Getpid(),
		FormatCEF(s.cfg.Product, s.cfg.Version, e))
}

func (s *SyslogSink) Emit(e Event) error {
	if !e.IsServiceLevel() {
		return nil
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return ErrRateLimited
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- s.frame(e):
		return nil
	default:
		return ErrBacklogFull
	}
}

func (s *SyslogSink) run() {
	defer close(s.done)
	for {
		select {
		case msg := <-s.queue:
			s.write(msg)
		case <-s.stop:
			// flush what is queued, giving up on the first failure
			for {
				select {
				case msg := <-s.queue:
					if !s.write(msg) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *SyslogSink) write(msg string) bool {
	if s.conn == nil {
		conn, err := net.DialTimeout(s.cfg.Protocol, s.addr, s.cfg.Timeout)
		if err != nil {
			s.fail(fmt.Errorf("dial syslog %s: %w", s.addr, err))
			return false
		}
		s.conn = conn
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout)); err == nil {
		_, err = io.WriteString(s.conn, msg)
		if err == nil {
			return true
		}
		s.fail(fmt.Errorf("write syslog: %w", err))
	}
	s.conn.Close()
	s.conn = nil
	return false
}

// fail accounts for an event lost after Emit already returned.
func (s *SyslogSink) fail(err error) {
	metrics.SinkFailures.WithLabelValues(s.Name()).Inc()
	logger.Debugf("%v", err)
}

// Close stops accepting events, flushes the queue within the write bound
// and closes the connection.
func (s *SyslogSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()

	<-s.done
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

var (
	headerEscaper    = strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\n", " ", "\r", " ")
	extensionEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, "\n", `\n`, "\r", `\r`)
)

func cefSeverity(level string) int {
	switch level {
	case LevelDebug:
		return 1
	case LevelWarn:
		return 6
	case LevelError:
		return 8
	default:
		return 3
	}
}

/**
 * Render an event as a CEF style line
 * @param {string} product - Device product and vendor
 * @param {string} version - Device version
 * @param {Event} e - Event to render
 * @returns {string} CEF:0|vendor|product|version|event_type|message|severity|k=v ...
 * @description
 * - The extension starts with act, src and request, then the remaining
 *   fields, then extras in key order
 */
func FormatCEF(product, version string, e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CEF:0|%s|%s|%s|%s|%s|%d|",
		headerEscaper.Replace(product),
		headerEscaper.Replace(product),
		headerEscaper.Replace(version),
		headerEscaper.Replace(e.EventType),
		headerEscaper.Replace(e.Message),
		cefSeverity(e.Level))

	var ext []string
	add := func(k, v string) {
		if v != "" {
			ext = append(ext, k+"="+extensionEscaper.Replace(v))
		}
	}
	add("act", e.Act)
	add("src", e.Src)
	add("request", e.Request)
	add("service", e.Service)
	add("kind", string(e.Kind))
	add("run_id", e.RunID)
	if e.Pid != 0 {
		add("pid", strconv.Itoa(e.Pid))
	}
	add("rt", strconv.FormatInt(e.Timestamp.UnixMilli(), 10))
	keys := make([]string, 0, len(e.Extras))
	for k := range e.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, fmt.Sprint(e.Extras[k]))
	}
	b.WriteString(strings.Join(ext, " "))
	return b.String()
}
