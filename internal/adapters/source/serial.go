package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/okian/peelforce/internal/timeutil"
	"go.bug.st/serial"
)

// Porter is the minimal serial port surface the source needs.
type Porter interface {
	io.ReadWriteCloser
}

// Opener opens a serial port.
type Opener func(path string, mode *serial.Mode) (Porter, error)

// OpenSerial opens a real port through go.bug.st/serial.
func OpenSerial(path string, mode *serial.Mode) (Porter, error) {
	return serial.Open(path, mode)
}

// Serial reads newline-delimited readings from a load-cell amplifier. A line
// is either "raw" or "timestamp,raw"; readings without a timestamp are
// stamped on arrival.
type Serial struct {
	notifier
	path  string
	opts  PortOptions
	open  Opener
	epoch *timeutil.Epoch

	mu      sync.Mutex
	port    Porter
	started bool
	closed  bool
}

// NewSerial creates a serial source. open may be nil to use OpenSerial.
func NewSerial(path string, opts PortOptions, open Opener, epoch *timeutil.Epoch) *Serial {
	if open == nil {
		open = OpenSerial
	}
	if epoch == nil {
		epoch = timeutil.NewEpoch(nil)
	}
	return &Serial{
		notifier: newNotifier("serial:" + path),
		path:     path,
		opts:     opts,
		open:     open,
		epoch:    epoch,
	}
}

// Start opens the port and begins reading in the background.
func (s *Serial) Start(ctx context.Context, cb Callback) error {
	mode, err := s.opts.SerialMode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrSourceClosed
	case s.started:
		return ErrAlreadyStarted
	}

	port, err := s.open(s.path, mode)
	if err != nil {
		s.emit(EventError, err)
		return fmt.Errorf("open serial port %s: %w", s.path, err)
	}
	s.port, s.started = port, true
	s.emit(EventAttached, nil)

	go s.monitor(ctx, port, cb)
	return nil
}

// monitor scans lines until the port fails, closes, or ctx is done.
func (s *Serial) monitor(ctx context.Context, port Porter, cb Callback) {
	scan := bufio.NewScanner(port)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				scanErr <- ctx.Err()
				return
			}
		}
		scanErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case line, ok := <-lines:
			if !ok {
				err := <-scanErr
				if s.isClosed() || ctx.Err() != nil {
					err = nil
				}
				s.emit(EventDetached, err)
				return
			}
			ts, hasTS, raw, err := ParseLine(line)
			if err != nil {
				s.emit(EventError, err)
				continue
			}
			if !hasTS {
				ts = s.epoch.Seconds()
			}
			cb(ts, raw)
		}
	}
}

// SetInterval asks the amplifier to sample every ms milliseconds.
func (s *Serial) SetInterval(ms int) error {
	if ms <= 0 {
		return fmt.Errorf("%w: interval %d ms", ErrInvalidOptions, ms)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil || s.closed {
		return ErrSourceClosed
	}
	if _, err := io.WriteString(s.port, "I"+strconv.Itoa(ms)+"\n"); err != nil {
		return fmt.Errorf("set interval: %w", err)
	}
	return nil
}

// Close releases the port. It is safe to call more than once.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

func (s *Serial) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ParseLine parses "raw" or "timestamp,raw". Blank separators such as
// whitespace or semicolons are accepted in place of the comma.
func ParseLine(line string) (ts float64, hasTS bool, raw float64, err error) {
	fields := strings.FieldsFunc(strings.TrimSpace(line), func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	switch len(fields) {
	case 1:
		raw, err = strconv.ParseFloat(fields[0], 64)
	case 2:
		ts, err = strconv.ParseFloat(fields[0], 64)
		if err == nil {
			raw, err = strconv.ParseFloat(fields[1], 64)
			hasTS = true
		}
	default:
		return 0, false, 0, fmt.Errorf("%w: %q", ErrParseLine, line)
	}
	if err != nil {
		return 0, false, 0, fmt.Errorf("%w: %q: %v", ErrParseLine, line, err)
	}
	return ts, hasTS, raw, nil
}
