package wh23xx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// USBConfig identifies the console on the bus. Endpoint numbers exclude the
// direction bit (IN 0x82 is endpoint 2).
type USBConfig struct {
	VendorID    uint16
	ProductID   uint16
	Config      int
	Interface   int
	EndpointIn  int
	EndpointOut int
}

// DefaultUSBConfig matches every WH23xx console seen so far
func DefaultUSBConfig() USBConfig {
	return USBConfig{
		VendorID:    0x10c4,
		ProductID:   0x8468,
		Config:      1,
		Interface:   0,
		EndpointIn:  2,
		EndpointOut: 2,
	}
}

// USBTransport drives the console's HID interface through libusb
type USBTransport struct {
	cfg    USBConfig
	logger *zap.SugaredLogger

	mu     sync.Mutex
	usbCtx *gousb.Context
	dev    *gousb.Device
	devCfg *gousb.Config
	iface  *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
}

// NewUSBTransport creates a transport; nothing is opened until Open
func NewUSBTransport(cfg USBConfig, logger *zap.SugaredLogger) *USBTransport {
	return &USBTransport{cfg: cfg, logger: logger}
}

// Open finds the console, detaches any kernel driver and claims the interface
func (t *USBTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usbCtx = gousb.NewContext()
	dev, err := t.usbCtx.OpenDeviceWithVIDPID(gousb.ID(t.cfg.VendorID), gousb.ID(t.cfg.ProductID))
	if err != nil || dev == nil {
		if dev != nil {
			dev.Close()
		}
		t.usbCtx.Close()
		t.usbCtx = nil
		if err == nil {
			err = fmt.Errorf("no USB device with VendorID=0x%04x ProductID=0x%04x", t.cfg.VendorID, t.cfg.ProductID)
		}
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	t.dev = dev
	t.logger.Infof("found station on USB bus=%d address=%d", dev.Desc.Bus, dev.Desc.Address)

	if err := t.dev.SetAutoDetach(true); err != nil {
		t.logger.Debugf("failed to set auto detach: %v", err)
	}

	if err := t.claim(); err != nil {
		t.closeLocked()
		return fmt.Errorf("%w: unable to claim USB interface %d: %v", ErrTransportUnavailable, t.cfg.Interface, err)
	}
	return nil
}

func (t *USBTransport) claim() error {
	var err error
	t.devCfg, err = t.dev.Config(t.cfg.Config)
	if err != nil {
		return fmt.Errorf("Config(%d): %w", t.cfg.Config, err)
	}
	t.iface, err = t.devCfg.Interface(t.cfg.Interface, 0)
	if err != nil {
		return fmt.Errorf("Interface(%d): %w", t.cfg.Interface, err)
	}
	t.in, err = t.iface.InEndpoint(t.cfg.EndpointIn)
	if err != nil {
		return fmt.Errorf("InEndpoint(%d): %w", t.cfg.EndpointIn, err)
	}
	t.out, err = t.iface.OutEndpoint(t.cfg.EndpointOut)
	if err != nil {
		return fmt.Errorf("OutEndpoint(%d): %w", t.cfg.EndpointOut, err)
	}
	return nil
}

func (t *USBTransport) release() error {
	var err error
	if t.iface != nil {
		t.iface.Close()
		t.iface = nil
	}
	if t.devCfg != nil {
		err = multierr.Append(err, t.devCfg.Close())
		t.devCfg = nil
	}
	t.in, t.out = nil, nil
	return err
}

// Close releases the interface and closes the device
func (t *USBTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *USBTransport) closeLocked() error {
	err := t.release()
	if t.dev != nil {
		err = multierr.Append(err, t.dev.Close())
		t.dev = nil
	}
	if t.usbCtx != nil {
		err = multierr.Append(err, t.usbCtx.Close())
		t.usbCtx = nil
	}
	if err != nil {
		t.logger.Errorf("release interface failed: %v", err)
	}
	return err
}

// Write sends one interrupt transfer
func (t *USBTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out == nil {
		return 0, fmt.Errorf("%w: not open", ErrTransportUnavailable)
	}
	return t.out.Write(p)
}

// Read waits up to timeout for one packet
func (t *USBTransport) Read(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.in == nil {
		return nil, fmt.Errorf("%w: not open", ErrTransportUnavailable)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, PacketSize)
	n, err := t.in.ReadContext(ctx, buf)
	if err != nil {
		if isTransient(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		return nil, err
	}
	return buf[:n], nil
}

func isTransient(err error) bool {
	return errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Reset issues a USB port reset and claims the interface again
func (t *USBTransport) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return fmt.Errorf("%w: not open", ErrTransportUnavailable)
	}
	if err := t.release(); err != nil {
		t.logger.Debugf("release before reset: %v", err)
	}
	if err := t.dev.Reset(); err != nil {
		return err
	}
	return t.claim()
}
