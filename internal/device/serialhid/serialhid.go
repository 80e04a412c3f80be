// File: internal/device/serialhid/serialhid.go
// Package serialhid drives a USB HID micro-controller over a serial line. The board
// turns line commands into touch and keyboard reports and answers each command with
// a single line: "received" on success, anything else on failure.
package serialhid

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/bidrunner/internal/config"
)

const (
	ackResponse     = "received"
	readPollTimeout = 100 * time.Millisecond
	maxLineLength   = 256
)

// ErrNotAcquired is returned by commands issued outside an acquired session.
var ErrNotAcquired = errors.New("serial device not acquired")

// Allows mocking the port in tests.
var openPort = func(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.OpenPort(c)
}

// Device implements schemas.GestureDispatcher, schemas.PathDispatcher,
// schemas.TextInjector and schemas.SessionResource.
type Device struct {
	cfg     config.DeviceConfig
	logger  *zap.Logger
	limiter *rate.Limiter

	// cmdLock serializes command/response exchanges.
	cmdLock sync.Mutex

	stateLock sync.Mutex
	port      io.ReadWriteCloser
	responses chan string
	stop      chan struct{}
	readerWG  sync.WaitGroup
}

// New creates a Device. The port is opened by Acquire.
func New(cfg config.DeviceConfig, logger *zap.Logger) *Device {
	limit := rate.Inf
	if cfg.MinCommandInterval > 0 {
		limit = rate.Every(cfg.MinCommandInterval)
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 3 * time.Second
	}
	return &Device{
		cfg:     cfg,
		logger:  logger.Named("serialhid").With(zap.String("port", cfg.Port)),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// -- Session Resource --

// Acquire opens the serial port and starts the response reader.
func (d *Device) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.stateLock.Lock()
	defer d.stateLock.Unlock()
	if d.port != nil {
		return nil
	}

	port, err := openPort(&serial.Config{
		Name:        d.cfg.Port,
		Baud:        d.cfg.BaudRate,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: readPollTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.cfg.Port, err)
	}

	d.port = port
	d.responses = make(chan string, 8)
	d.stop = make(chan struct{})
	d.readerWG.Add(1)
	go d.readLoop(port, d.responses, d.stop)

	d.logger.Info("Serial device acquired.", zap.Int("baud", d.cfg.BaudRate))
	return nil
}

// Release closes the port and waits for the reader to exit.
func (d *Device) Release() error {
	d.stateLock.Lock()
	port := d.port
	if port == nil {
		d.stateLock.Unlock()
		return nil
	}
	close(d.stop)
	d.port = nil
	d.stateLock.Unlock()

	err := port.Close()
	d.readerWG.Wait()
	d.logger.Info("Serial device released.")
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// readLoop splits incoming bytes into lines. A zero-byte read is the port's poll
// timeout, not end of stream.
func (d *Device) readLoop(port io.Reader, out chan<- string, stop <-chan struct{}) {
	defer d.readerWG.Done()
	buf := make([]byte, 128)
	var line []byte
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := port.Read(buf)
		for _, b := range buf[:n] {
			if b != '\n' {
				if len(line) < maxLineLength {
					line = append(line, b)
				}
				continue
			}
			resp := strings.TrimSpace(string(line))
			line = line[:0]
			if resp == "" {
				continue
			}
			select {
			case out <- resp:
			default:
				d.logger.Warn("Dropping unsolicited response.", zap.String("response", resp))
			}
		}
		if err != nil && !(errors.Is(err, io.EOF) && n == 0) {
			select {
			case <-stop:
			default:
				d.logger.Error("Serial read failed.", zap.Error(err))
			}
			return
		}
	}
}

// -- Command Exchange --

// exec sends one command line and waits for its acknowledgement.
func (d *Device) exec(ctx context.Context, cmd string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	d.cmdLock.Lock()
	defer d.cmdLock.Unlock()

	d.stateLock.Lock()
	port, responses := d.port, d.responses
	d.stateLock.Unlock()
	if port == nil {
		return ErrNotAcquired
	}

	// Late acknowledgements of timed out commands must not satisfy this one.
	for drained := false; !drained; {
		select {
		case stale := <-responses:
			d.logger.Debug("Discarding stale response.", zap.String("response", stale))
		default:
			drained = true
		}
	}

	if _, err := io.WriteString(port, cmd+"\n"); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}

	timer := time.NewTimer(d.cfg.ResponseTimeout)
	defer timer.Stop()
	select {
	case resp := <-responses:
		if resp != ackResponse {
			return fmt.Errorf("device rejected %q: %s", verb(cmd), resp)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("no response to %q within %v", verb(cmd), d.cfg.ResponseTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Device) send(ctx context.Context, cmd string) bool {
	if err := d.exec(ctx, cmd); err != nil {
		d.logger.Warn("Device command failed.", zap.String("command", verb(cmd)), zap.Error(err))
		return false
	}
	return true
}

func verb(cmd string) string {
	if i := strings.IndexByte(cmd, ':'); i >= 0 {
		return cmd[:i]
	}
	return cmd
}

func millis(d time.Duration) int64 { return d.Milliseconds() }

// -- Gestures --

// Tap presses at (x, y) for duration.
func (d *Device) Tap(ctx context.Context, x, y int, duration time.Duration) bool {
	return d.send(ctx, fmt.Sprintf("tap:%d,%d,%d", x, y, millis(duration)))
}

// Swipe drags in a straight line.
func (d *Device) Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) bool {
	return d.send(ctx, fmt.Sprintf("swipe:%d,%d,%d,%d,%d", x0, y0, x1, y1, millis(duration)))
}

// SwipePath drags along points, spreading duration evenly over the segments.
func (d *Device) SwipePath(ctx context.Context, points []image.Point, duration time.Duration) bool {
	if len(points) < 2 {
		return false
	}
	var b strings.Builder
	b.WriteString("path:")
	b.WriteString(strconv.FormatInt(millis(duration), 10))
	for _, p := range points {
		fmt.Fprintf(&b, ";%d,%d", p.X, p.Y)
	}
	return d.send(ctx, b.String())
}

// -- Text --

// ClearField selects and deletes the focused field's content.
func (d *Device) ClearField(ctx context.Context) {
	d.send(ctx, "clear")
}

// SetFieldText types text into the focused field. Line breaks cannot be sent and
// are rejected.
func (d *Device) SetFieldText(ctx context.Context, text string) bool {
	if strings.ContainsAny(text, "\r\n") {
		d.logger.Warn("Refusing to type text containing a line break.")
		return false
	}
	return d.send(ctx, "text:"+text)
}
