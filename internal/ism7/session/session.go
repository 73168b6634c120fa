package session

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/ism7-bridge/internal/ism7/device"
	"github.com/nerrad567/ism7-bridge/internal/ism7/dispatch"
	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
	"github.com/nerrad567/ism7-bridge/internal/ism7/transport"
)

// Session defaults.
const (
	// DefaultPort is the gateway TCP port.
	DefaultPort = 9092

	// DefaultKeepAlive is the keep-alive period.
	DefaultKeepAlive = 60 * time.Second

	// DefaultPushInterval is the refresh interval requested for push bundles.
	DefaultPushInterval = 60 * time.Second

	// gatewayID is the gw attribute of every bundle request.
	gatewayID = "1"

	// readBufferSize is the socket read chunk size.
	readBufferSize = 4096

	// frameQueueSize bounds frames read but not yet dispatched.
	frameQueueSize = 64

	// noAck is outside the int16 sequence range.
	noAck = math.MinInt32
)

// Logger is the logging interface used by the session.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceModel is the part of the device registry the session drives.
// It is satisfied by *device.Registry.
type DeviceModel interface {
	AddDevice(ip string, readBusAddress device.BusAddress) (int, error)
	ProcessRead(ba device.BusAddress, telegramID int, service *int, low, high byte)
	ProcessWrite(ba device.BusAddress, telegramID int, service *int, low, high byte)
	ReadRequests(ba device.BusAddress) []device.ReadRequest
	Collect() (device.Batch, error)
}

// Publisher receives decoded values.
type Publisher interface {
	Publish(ctx context.Context, batch device.Batch) error
}

// Observer is notified of session progress. All methods must return quickly.
type Observer interface {
	StateChanged(sessionID, from, to string)
	BusDevicesDiscovered(ctx context.Context, sessionID string, devices []protocol.BusDevice)
	FrameReceived(t transport.PayloadType)
	BundleCompleted(t protocol.BundleType, ok, failed int)
}

type noopObserver struct{}

func (noopObserver) StateChanged(string, string, string)                                 {}
func (noopObserver) BusDevicesDiscovered(context.Context, string, []protocol.BusDevice) {}
func (noopObserver) FrameReceived(transport.PayloadType)                                 {}
func (noopObserver) BundleCompleted(protocol.BundleType, int, int)                       {}

// Config contains session settings.
type Config struct {
	// Host is the gateway address. It becomes part of every device topic.
	Host string

	// Password is sent in the logon request.
	Password string

	// KeepAlive is the keep-alive period. Default: 60s.
	KeepAlive time.Duration

	// PushInterval is the refresh interval of push bundles. Default: 60s.
	PushInterval time.Duration
}

// Options holds optional collaborators.
type Options struct {
	Logger   Logger
	Observer Observer
}

// Session runs the ISM7 protocol over one established connection.
//
// A session is single-use: once Run returns, the connection is closed and
// a new session must be created to reconnect.
//
// Thread Safety: Write and State are safe for concurrent use with Run.
type Session struct {
	id        string
	cfg       Config
	conn      net.Conn
	devices   DeviceModel
	publisher Publisher
	observer  Observer
	logger    Logger

	dispatcher *dispatch.Dispatcher
	state      *fsm.FSM

	writeMu  sync.Mutex
	bundleID atomic.Int64
	lastAck  atomic.Int32 // noAck until the first acknowledgement
	acks     atomic.Int64

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session over an established connection.
//
// Parameters:
//   - conn: Authenticated TLS connection to the gateway
//   - devices: Device registry
//   - publisher: Receiver of decoded values
//   - cfg: Session settings
//   - opts: Optional logger and observer
//
// Returns:
//   - *Session: Session ready to Run
func New(conn net.Conn, devices DeviceModel, publisher Publisher, cfg Config, opts Options) *Session {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = DefaultPushInterval
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		conn:       conn,
		devices:    devices,
		publisher:  publisher,
		observer:   opts.Observer,
		logger:     opts.Logger,
		dispatcher: dispatch.New(),
		done:       make(chan struct{}),
	}
	s.lastAck.Store(noAck)
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	s.state = newStateMachine(func(from, to string) {
		s.logger.Info("session state changed", "session", s.id, "from", from, "to", to)
		s.observer.StateChanged(s.id, from, to)
	})
	s.dispatcher.Subscribe(dispatch.Key{Kind: protocol.KindKeepAlive}, s.onKeepAlive)
	return s
}

// ID returns the session correlation id.
func (s *Session) ID() string {
	return s.id
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run logs on and drives the session until ctx is cancelled or a protocol
// error occurs. The connection is closed when Run returns.
//
// Returns:
//   - error: The error that ended the session, or ctx.Err() on cancellation
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer s.closeOnce.Do(func() { close(s.done) })

	s.logger.Info("session starting", "session", s.id, "host", s.cfg.Host)

	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan transport.Frame, frameQueueSize)

	g.Go(func() error {
		<-gctx.Done()
		return s.conn.Close()
	})
	g.Go(func() error { return s.readLoop(gctx, frames) })
	g.Go(func() error { return s.dispatchLoop(gctx, frames) })
	g.Go(func() error { return s.keepAliveLoop(gctx) })
	g.Go(func() error { return s.logon(gctx) })

	err := g.Wait()
	if cerr := ctx.Err(); cerr != nil {
		err = cerr
	}

	if terr := s.transition(context.Background(), eventClose); terr != nil {
		s.logger.Warn("closing state machine", "session", s.id, "error", terr)
	}
	s.logger.Info("session ended", "session", s.id, "error", err)
	return err
}

// send writes one frame. Frames are never interleaved.
func (s *Session) send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write(frame); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("writing to gateway: %w", err)
	}
	return nil
}

// readLoop feeds socket bytes into the frame reader and queues complete
// frames in arrival order.
func (s *Session) readLoop(ctx context.Context, frames chan<- transport.Frame) error {
	defer close(frames)

	var r transport.Reader
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			r.Feed(buf[:n])
			for {
				f, ok, ferr := r.Next()
				if ferr != nil {
					return ferr
				}
				if !ok {
					break
				}
				select {
				case frames <- f:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading from gateway: %w", err)
		}
	}
}

// dispatchLoop decodes frames and dispatches them one at a time.
func (s *Session) dispatchLoop(ctx context.Context, frames <-chan transport.Frame) error {
	for f := range frames {
		s.observer.FrameReceived(f.Type)

		if len(f.Payload) == 0 && f.Type != transport.KeepAlive {
			s.logger.Debug("empty frame ignored", "session", s.id, "type", f.Type.String())
			continue
		}

		msg, err := protocol.Decode(f)
		if err != nil {
			return err
		}

		matched, err := s.dispatcher.Dispatch(ctx, msg)
		if err != nil {
			return err
		}
		if !matched {
			s.logger.Debug("unhandled message", "session", s.id, "kind", msg.Kind().String())
		}
	}
	return ctx.Err()
}

// keepAliveLoop sends a keep-alive every period and fails when the
// acknowledged sequence has not moved since the previous tick.
func (s *Session) keepAliveLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()
	return s.keepAlive(ctx, ticker.C, 0)
}

// keepAlive sends seq+1, seq+2, ... on each tick. The sequence wraps at
// the int16 boundary; whether a keep-alive is outstanding is tracked
// separately.
func (s *Session) keepAlive(ctx context.Context, ticks <-chan time.Time, seq int16) error {
	var (
		sent    bool
		prevAck = s.lastAck.Load()
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
		}

		switch s.State() {
		case StateConnecting, StateAuthenticating:
			continue
		}

		ack := s.lastAck.Load()
		if sent && ack == prevAck {
			return fmt.Errorf("%w: sequence %d not acknowledged (last acknowledged %s)",
				ErrKeepAliveTimeout, seq, formatAck(ack))
		}
		prevAck = ack

		seq++
		if err := s.send(ctx, protocol.EncodeKeepAlive(seq)); err != nil {
			return err
		}
		sent = true
		s.logger.Debug("keep-alive sent", "session", s.id, "seq", seq)
	}
}

func formatAck(ack int32) string {
	if ack == noAck {
		return "none"
	}
	return strconv.Itoa(int(ack))
}

func (s *Session) nextBundleID() string {
	return strconv.FormatInt(s.bundleID.Add(1), 10)
}

// Write sends register writes as one write bundle and waits for the
// gateway's acknowledgement. No writes is a no-op.
//
// Parameters:
//   - ctx: Cancels the wait; the bundle may still be applied by the gateway
//   - writes: Register writes from the device registry
//
// Returns:
//   - error: ErrNotSubscribed before bootstrap has finished, ErrBundle if the
//     gateway rejects the bundle, ErrClosed if the session ends first
func (s *Session) Write(ctx context.Context, writes []device.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if state := s.State(); state != StateSubscribed {
		return fmt.Errorf("%w: state %s", ErrNotSubscribed, state)
	}

	req := &protocol.BundleRequest{
		BundleID:     s.nextBundleID(),
		Gateway:      gatewayID,
		AbortOnError: true,
		Type:         protocol.BundleWrite,
	}
	for _, w := range writes {
		req.Writes = append(req.Writes, protocol.WriteItem{
			Service:    protocol.FormatService(w.Service),
			BusAddress: w.BusAddress.String(),
			TelegramID: w.Telegram.ID,
			Low:        protocol.FormatHexByte(w.Telegram.Low),
			High:       protocol.FormatHexByte(w.Telegram.High),
		})
	}

	result := make(chan error, 1)
	cancel := s.dispatcher.Once(bundleKey(req.BundleID), func(ctx context.Context, msg protocol.Message) error {
		err := s.onWriteResponse(ctx, msg)
		result <- err
		return err
	})

	frame, err := protocol.EncodeBundle(req)
	if err != nil {
		cancel()
		return err
	}
	if err := s.send(ctx, frame); err != nil {
		cancel()
		return err
	}
	s.logger.Debug("write bundle sent", "session", s.id, "bundle", req.BundleID, "writes", len(req.Writes))

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-s.done:
		// A failed write response ends the session; report it over ErrClosed.
		select {
		case err := <-result:
			return err
		default:
		}
		cancel()
		return ErrClosed
	}
}

func bundleKey(id string) dispatch.Key {
	return dispatch.Key{Kind: protocol.KindBundleResponse, Bundle: id}
}
