package wh23xx

// Device-specific code was ported to Go from Matthew Wall's weewx wh23xx driver
// https://github.com/matthewwall/weewx-wh23xx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/wh23xx/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxReassemblyReads bounds the packets read for one reply. The declared
	// length is a single byte, so five 62-byte packets always suffice.
	maxReassemblyReads = 8

	// maxEEPROMRead is the largest READ_EEPROM the console accepts
	maxEEPROMRead = 56
	// maxEEPROMWrite is the largest WRITE_EEPROM the console accepts
	maxEEPROMWrite = 12

	// resetGrace is added to the reset loop deadline to cover slow resets
	resetGrace = 10 * time.Second
)

// RetryPolicy bounds read-class operations
type RetryPolicy struct {
	MaxTries  int
	RetryWait time.Duration
}

// Options configures a Station
type Options struct {
	Name           string
	Timeout        time.Duration
	Retry          RetryPolicy
	ResetAttempts  int
	ResetWait      time.Duration
	StrictChecksum bool
	Location       *time.Location
	UVScaling      UVScaling
	Metrics        *Metrics
}

// DefaultOptions returns the stock settings for a WH23xx console
func DefaultOptions() Options {
	return Options{
		Name:          "wh23xx",
		Timeout:       types.DefaultTimeout,
		Retry:         RetryPolicy{MaxTries: types.DefaultMaxTries, RetryWait: types.DefaultRetryWait},
		ResetAttempts: types.DefaultResetAttempts,
		ResetWait:     types.DefaultResetWait,
		Location:      time.Local,
	}
}

// OptionsFromConfig builds station options from a device config that has
// already had defaults applied.
func OptionsFromConfig(d types.DeviceConfig) (Options, error) {
	uv, err := ParseUVScaling(d.UVScaling)
	if err != nil {
		return Options{}, err
	}
	loc := time.Local
	if d.Timezone != "" {
		loc, err = time.LoadLocation(d.Timezone)
		if err != nil {
			return Options{}, err
		}
	}
	return Options{
		Name:           d.Name,
		Timeout:        d.Timeout,
		Retry:          RetryPolicy{MaxTries: d.MaxTries, RetryWait: d.RetryWait},
		ResetAttempts:  d.ResetAttempts,
		ResetWait:      d.ResetWait,
		StrictChecksum: d.StrictChecksum,
		Location:       loc,
		UVScaling:      uv,
	}, nil
}

// USBConfigFromDevice maps a device config onto USB identifiers
func USBConfigFromDevice(d types.DeviceConfig) USBConfig {
	c := DefaultUSBConfig()
	if d.VendorID != 0 {
		c.VendorID = d.VendorID
	}
	if d.ProductID != 0 {
		c.ProductID = d.ProductID
	}
	if d.USBConfig != 0 {
		c.Config = d.USBConfig
	}
	c.Interface = d.Interface
	return c
}

type callState int

const (
	stateIdle callState = iota
	stateSending
	stateAwaitingFirstPacket
	stateReassembling
	stateComplete
	stateFailed
)

var callStateNames = [...]string{"idle", "sending", "awaiting-first-packet", "reassembling", "complete", "failed"}

func (c callState) String() string {
	return callStateNames[c]
}

// Station is the command engine for one console. All operations are
// serialized; the protocol allows one outstanding command at a time.
type Station struct {
	t          Transport
	opts       Options
	baseLogger *zap.SugaredLogger
	logger     *zap.SugaredLogger
	metrics    *Metrics
	session    string
	sleep      func(ctx context.Context, d time.Duration) error
	mu         sync.Mutex
}

// NewStation creates a command engine on top of t
func NewStation(t Transport, opts Options, logger *zap.SugaredLogger) *Station {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Retry.MaxTries < 1 {
		opts.Retry.MaxTries = 1
	}
	if opts.ResetAttempts < 1 {
		opts.ResetAttempts = 1
	}
	logger = logger.With("station", opts.Name)
	return &Station{
		t:          t,
		opts:       opts,
		baseLogger: logger,
		logger:     logger,
		metrics:    opts.Metrics,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// StationName returns the configured name
func (s *Station) StationName() string {
	return s.opts.Name
}

// Options returns the station's effective options
func (s *Station) Options() Options {
	return s.opts
}

// Open opens the transport and then resets the console to unwedge it. A
// transport that cannot be opened is fatal and is not retried.
func (s *Station) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.t.Open(ctx); err != nil {
		if !errors.Is(err, ErrTransportUnavailable) {
			err = fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
		}
		return err
	}

	s.session = uuid.NewString()
	s.logger = s.baseLogger.With("session", s.session)
	s.logger.Info("station opened")

	if err := s.recoverLocked(ctx); err != nil {
		s.logger.Warnf("unable to reset station after open: %v", err)
	}
	return nil
}

// Close releases the transport
func (s *Station) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Close()
}

// Recover resets the console. Resets sometimes need several tries before
// the console responds again, e.g. after an interrupt write with bogus data.
func (s *Station) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoverLocked(ctx)
}

func (s *Station) recoverLocked(ctx context.Context) error {
	attempts := s.opts.ResetAttempts
	deadline := time.Now().Add(time.Duration(attempts)*s.opts.ResetWait + resetGrace)

	var lastErr error
	attempt := 0
	for attempt < attempts {
		attempt++
		err := s.t.Reset()
		if err == nil {
			s.metrics.reset(true)
			s.logger.Debugf("station reset after %d attempt(s)", attempt)
			return nil
		}
		s.metrics.reset(false)
		lastErr = err
		s.logger.Debugf("reset attempt %d of %d failed: %v", attempt, attempts, err)

		if attempt == attempts || time.Now().Add(s.opts.ResetWait).After(deadline) {
			break
		}
		if err := s.sleep(ctx, s.opts.ResetWait); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempt(s): %v", ErrResetFailed, attempt, lastErr)
}

// withRetry runs fn under the station's retry policy. Transient empty reads
// do not count against the budget; a missing transport ends the loop at once.
// Once the budget is spent the console is reset before the failure is returned.
func withRetry[T any](ctx context.Context, s *Station, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	tries := 0
	for tries < s.opts.Retry.MaxTries {
		v, err := fn()
		if err == nil {
			return v, nil
		}

		switch {
		case errors.Is(err, ErrTransportUnavailable):
			return zero, err
		case errors.Is(err, ErrNoData):
			s.metrics.emptyRead()
			s.logger.Debugf("%s: %v", op, err)
		default:
			tries++
			lastErr = err
			s.metrics.failedAttempt(op)
			s.logger.Errorf("%s: failed attempt %d of %d: %v", op, tries, s.opts.Retry.MaxTries, err)
			if tries == s.opts.Retry.MaxTries {
				continue
			}
		}

		if err := s.sleep(ctx, s.opts.Retry.RetryWait); err != nil {
			return zero, err
		}
	}

	s.metrics.exhausted(op)
	s.logger.Errorf("%s: max retries (%d) exceeded", op, s.opts.Retry.MaxTries)
	if err := s.recoverLocked(ctx); err != nil {
		s.logger.Warnf("%s: recovery failed: %v", op, err)
	}
	return zero, &RetriesExceededError{Op: op, Attempts: tries, Err: lastErr}
}

func (s *Station) state(op string, st callState) {
	s.logger.Debugf("%s: %s", op, st)
}

func (s *Station) write(op string, frame []byte) error {
	s.logger.Debugf("%s: cmdbuf: %s", op, fmtBytes(frame))
	s.metrics.command(Command(frame[2]))
	n, err := s.t.Write(frame)
	if err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%s: bad write length=%d for command %s", op, n, fmtBytes(frame))
	}
	return nil
}

func (s *Station) read(op string) ([]byte, error) {
	buf, err := s.t.Read(s.opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", op, err)
	}
	s.logger.Debugf("%s: buf: %s", op, fmtBytes(buf))
	return buf, nil
}

// checkReplyChecksum verifies the checksum byte that follows data, when the
// reply carried one. A mismatch is fatal only with StrictChecksum.
func (s *Station) checkReplyChecksum(op string, cmd Command, data, slack []byte) error {
	if len(slack) == 0 {
		if s.opts.StrictChecksum {
			return protoErr(op, ErrBadChecksum, "reply has no checksum byte")
		}
		return nil
	}
	want := replyChecksum(cmd, data)
	if slack[0] == want {
		return nil
	}
	s.metrics.badChecksum()
	if s.opts.StrictChecksum {
		return protoErr(op, ErrBadChecksum, "0x%02x != 0x%02x", slack[0], want)
	}
	s.logger.Debugf("%s: checksum mismatch 0x%02x != 0x%02x (ignored)", op, slack[0], want)
	return nil
}

// readCurrent performs one READ_RECORD exchange. The reply arrives as one
// or more USB packets, each led by 0x01 and the packet payload size. The
// first packet then carries the READ_RECORD echo and the record size.
// An empty first read means the console had nothing ready.
func (s *Station) readCurrent() (rec []byte, err error) {
	const op = "read_record"
	defer func() {
		if err != nil {
			s.state(op, stateFailed)
		}
	}()

	s.state(op, stateSending)
	if err := s.write(op, BuildFrame(CmdReadRecord)); err != nil {
		return nil, err
	}

	s.state(op, stateAwaitingFirstPacket)
	buf, err := s.read(op)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		s.state(op, stateComplete)
		return nil, nil
	}
	if buf[0] != ReplyMarker {
		return nil, protoErr(op, ErrUnexpectedMarker, "bad first byte: 0x%02x != 0x%02x", buf[0], ReplyMarker)
	}
	hdr, err := ParseReplyHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Command != CmdReadRecord {
		return nil, protoErr(op, ErrBadReply, "missing READ_RECORD: 0x%02x != 0x%02x", byte(hdr.Command), byte(CmdReadRecord))
	}

	size := hdr.Length
	need := size
	if s.opts.StrictChecksum {
		need++
	}
	s.logger.Debugf("%s: record_size: %d", op, size)

	tmp := append([]byte(nil), hdr.Body(buf)...)
	packets := 1
	s.state(op, stateReassembling)
	for len(tmp) < need {
		if packets >= maxReassemblyReads {
			return nil, protoErr(op, ErrTruncated, "%d of %d bytes after %d packets", len(tmp), size, packets)
		}
		buf, err = s.t.Read(s.opts.Timeout)
		if err != nil {
			if errors.Is(err, ErrNoData) {
				return nil, protoErr(op, ErrTruncated, "reply stalled at %d of %d bytes: %v", len(tmp), size, err)
			}
			return nil, fmt.Errorf("%s: read: %w", op, err)
		}
		s.logger.Debugf("%s: buf: %s", op, fmtBytes(buf))
		if len(buf) == 0 {
			return nil, protoErr(op, ErrTruncated, "empty packet at %d of %d bytes", len(tmp), size)
		}
		packets++
		if len(buf) > packetEnvelopeSize {
			tmp = append(tmp, buf[packetEnvelopeSize:]...)
		}
	}
	s.metrics.packets(packets)

	rec = tmp[:size]
	if err := s.checkReplyChecksum(op, CmdReadRecord, rec, tmp[size:]); err != nil {
		return nil, err
	}
	s.logger.Debugf("%s: rbuf: %s", op, fmtBytes(rec))
	s.state(op, stateComplete)
	return rec, nil
}

// readEEPROM performs one READ_EEPROM exchange; the reply fits one packet.
func (s *Station) readEEPROM(addr uint16, size int) ([]byte, error) {
	const op = "read_eeprom"

	s.state(op, stateSending)
	if err := s.write(op, BuildFrame(CmdReadEEPROM, byte(addr), byte(addr>>8), byte(size))); err != nil {
		return nil, err
	}

	s.state(op, stateAwaitingFirstPacket)
	buf, err := s.read(op)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, protoErr(op, ErrBadReply, "empty read")
	}
	if len(buf) < replyHeaderSize || buf[0] != ReplyMarker || Command(buf[2]) != CmdReadEEPROM {
		return nil, protoErr(op, ErrBadReply, "got %s, exp 01 .. %02x ..", fmtBytes(buf), byte(CmdReadEEPROM))
	}
	hdr, _ := ParseReplyHeader(buf)
	if hdr.Length != size {
		return nil, protoErr(op, ErrBadReply, "declared size %d != requested %d", hdr.Length, size)
	}
	body := hdr.Body(buf)
	if len(body) < size {
		return nil, protoErr(op, ErrBadReply, "short payload: %d of %d bytes", len(body), size)
	}

	data := append([]byte(nil), body[:size]...)
	if err := s.checkReplyChecksum(op, CmdReadEEPROM, data, body[size:]); err != nil {
		return nil, err
	}
	s.state(op, stateComplete)
	return data, nil
}

// GetCurrent reads the current-weather record. It returns nil, nil when the
// console had nothing ready.
func (s *Station) GetCurrent(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return withRetry(ctx, s, "get_current", s.readCurrent)
}

// ReadEEPROM reads size (1..56) bytes of console memory at addr
func (s *Station) ReadEEPROM(ctx context.Context, addr uint16, size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEEPROMRetry(ctx, addr, size)
}

func (s *Station) readEEPROMRetry(ctx context.Context, addr uint16, size int) ([]byte, error) {
	if size < 1 || size > maxEEPROMRead {
		return nil, protoErr("read_eeprom", ErrBadRequest, "size %d out of range 1..%d", size, maxEEPROMRead)
	}
	s.logger.Debugf("read_eeprom: addr=0x%04x size=%d", addr, size)
	return withRetry(ctx, s, "read_eeprom", func() ([]byte, error) {
		return s.readEEPROM(addr, size)
	})
}

// GetStationInfo reads and decodes the configuration block at 0x0000
func (s *Station) GetStationInfo(ctx context.Context) (*StationInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readEEPROMRetry(ctx, StationInfoAddr, StationInfoSize)
	if err != nil {
		return nil, err
	}
	info, err := DecodeStationInfo(raw)
	if err != nil {
		s.metrics.DecodeError()
		return nil, err
	}
	return info, nil
}

// SyncTime sets the console clock to t, expressed in the station's location
func (s *Station) SyncTime(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lt := t.In(s.opts.Location)
	year := lt.Year() - 2000
	if year < 0 || year > 99 {
		return protoErr("time_sync", ErrBadRequest, "year %d outside 2000..2099", lt.Year())
	}
	s.logger.Debugf("time sync to %s", lt.Format(time.RFC3339))

	return s.write("time_sync", BuildFrame(CmdTimeSync,
		byte(year), byte(lt.Month()), byte(lt.Day()),
		byte(lt.Hour()), byte(lt.Minute()), byte(lt.Second()), 0))
}

// ClearMaxMin clears the console's daily max/min values
func (s *Station) ClearMaxMin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("clear max/min")
	return s.write("clear_max_min", BuildFrame(CmdClearMaxMinDay))
}

// ClearHistory erases the console's history records
func (s *Station) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("clear history")
	return s.write("clear_history", BuildFrame(CmdClearHistory))
}

// WriteEEPROM writes 1..12 bytes of console memory at addr. Follow it with
// NotifyParamChanged so the console reloads the affected settings.
func (s *Station) WriteEEPROM(addr uint16, data []byte) error {
	if len(data) < 1 || len(data) > maxEEPROMWrite {
		return protoErr("write_eeprom", ErrBadRequest, "size %d out of range 1..%d", len(data), maxEEPROMWrite)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := append([]byte{byte(addr), byte(addr >> 8), byte(len(data))}, data...)
	return s.write("write_eeprom", BuildFrame(CmdWriteEEPROM, payload...))
}

// NotifyParamChanged tells the console which settings were changed
func (s *Station) NotifyParamChanged(items ParamItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("param_changed", BuildFrame(CmdParamChanged, byte(items), byte(items>>8)))
}

// Param is the console's radio/link parameter byte
type Param struct {
	Raw  byte
	Link string // UART, ASK or FSK
	RCC  bool   // radio-controlled clock present
}

// DecodeParam decodes a READ_PARAM data byte
func DecodeParam(b byte) Param {
	p := Param{Raw: b, RCC: b&0x04 != 0}
	switch b & 0x03 {
	case 0x01:
		p.Link = "UART"
	case 0x02:
		p.Link = "ASK"
	case 0x00:
		p.Link = "FSK"
	default:
		p.Link = "unknown"
	}
	return p
}

// ReadParam reads the console's link parameter
func (s *Station) ReadParam(ctx context.Context) (Param, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "read_param"
	return withRetry(ctx, s, op, func() (Param, error) {
		if err := s.write(op, BuildFrame(CmdReadParam)); err != nil {
			return Param{}, err
		}
		buf, err := s.read(op)
		if err != nil {
			return Param{}, err
		}
		hdr, err := ParseReplyHeader(buf)
		if err != nil {
			return Param{}, err
		}
		body := hdr.Body(buf)
		if hdr.Command != CmdReadParam || hdr.Length < 1 || len(body) < hdr.Length {
			return Param{}, protoErr(op, ErrBadReply, "got %s", fmtBytes(buf))
		}
		if err := s.checkReplyChecksum(op, CmdReadParam, body[:hdr.Length], body[hdr.Length:]); err != nil {
			return Param{}, err
		}
		return DecodeParam(body[0]), nil
	})
}

func fmtBytes(b []byte) string {
	if len(b) == 0 {
		return "(len=0)"
	}
	return fmt.Sprintf("% x (len=%d)", b, len(b))
}
