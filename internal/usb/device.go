// Package usb opens LabJack U3 devices through libusb bulk endpoints.
package usb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// U3 bulk endpoints. Command responses and StreamData arrive on separate IN
// pipes.
const (
	EndpointCommandOut = 1
	EndpointCommandIn  = 2
	EndpointStreamIn   = 3
)

// DefaultTimeout bounds every bulk transfer.
const DefaultTimeout = 2 * time.Second

var ErrNotFound = errors.New("U3 not found")

// Info describes an attached U3.
type Info struct {
	Bus     int
	Address int
	Serial  string
	Product string
}

type inEndpoint interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
}

type outEndpoint interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

func isU3(desc *gousb.DeviceDesc) bool {
	return desc.Vendor == gousb.ID(u3.LabJackVID) && desc.Product == gousb.ID(u3.U3PID)
}

// openAll opens every attached U3 ordered by bus and address.
func openAll(ctx *gousb.Context) ([]*gousb.Device, error) {
	devs, err := ctx.OpenDevices(isU3)
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	if err != nil {
		slog.Debug("some USB devices could not be opened", slog.Any("error", err))
	}
	sort.Slice(devs, func(i, j int) bool {
		if devs[i].Desc.Bus != devs[j].Desc.Bus {
			return devs[i].Desc.Bus < devs[j].Desc.Bus
		}
		return devs[i].Desc.Address < devs[j].Desc.Address
	})
	return devs, nil
}

func describe(dev *gousb.Device) Info {
	info := Info{Bus: dev.Desc.Bus, Address: dev.Desc.Address}
	info.Serial, _ = dev.SerialNumber()
	info.Product, _ = dev.Product()
	return info
}

// List enumerates attached U3 devices.
func List() ([]Info, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := openAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, dev := range devs {
		out = append(out, describe(dev))
		dev.Close()
	}
	return out, nil
}

// Device is an open U3. Commands go out on EP1, responses come back on EP2 and
// StreamData packets on EP3.
type Device struct {
	mu      sync.Mutex
	out     outEndpoint
	in      inEndpoint
	stream  inEndpoint
	timeout time.Duration
	info    Info
	closers []func() error
}

// Open opens the index-th U3 found on the bus and claims its default interface.
func Open(index int) (*Device, error) {
	ctx := gousb.NewContext()
	devs, err := openAll(ctx)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if len(devs) == 0 || index < 0 || index >= len(devs) {
		for _, dev := range devs {
			dev.Close()
		}
		ctx.Close()
		if len(devs) == 0 {
			return nil, fmt.Errorf("%w (VID:0x%04X PID:0x%04X)", ErrNotFound, u3.LabJackVID, u3.U3PID)
		}
		return nil, fmt.Errorf("%w: index %d, %d device(s) attached", ErrNotFound, index, len(devs))
	}
	for i, dev := range devs {
		if i != index {
			dev.Close()
		}
	}

	dev := devs[index]
	d, err := claim(dev)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	d.closers = append(d.closers, dev.Close, ctx.Close)
	slog.Debug("opened U3", slog.Int("bus", d.info.Bus), slog.Int("address", d.info.Address), slog.String("serial", d.info.Serial))
	return d, nil
}

func claim(dev *gousb.Device) (*Device, error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("set auto detach: %w", err)
	}
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, fmt.Errorf("claim interface: %w", err)
	}
	out, err := intf.OutEndpoint(EndpointCommandOut)
	if err != nil {
		done()
		return nil, fmt.Errorf("endpoint %d OUT: %w", EndpointCommandOut, err)
	}
	in, err := intf.InEndpoint(EndpointCommandIn)
	if err != nil {
		done()
		return nil, fmt.Errorf("endpoint %d IN: %w", EndpointCommandIn, err)
	}
	stream, err := intf.InEndpoint(EndpointStreamIn)
	if err != nil {
		done()
		return nil, fmt.Errorf("endpoint %d IN: %w", EndpointStreamIn, err)
	}

	d := newDevice(out, in, stream)
	d.info = describe(dev)
	d.closers = append(d.closers, func() error { done(); return nil })
	return d, nil
}

func newDevice(out outEndpoint, in, stream inEndpoint) *Device {
	return &Device{out: out, in: in, stream: stream, timeout: DefaultTimeout}
}

func (d *Device) Info() Info { return d.info }

// SetTimeout changes the per-transfer timeout.
func (d *Device) SetTimeout(t time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = t
}

// Write sends one command frame on the command OUT endpoint.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	n, err := d.out.WriteContext(ctx, p)
	if err != nil {
		return n, fmt.Errorf("usb write: %w", err)
	}
	return n, nil
}

// Read reads one control response from the command IN endpoint.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	n, err := d.in.ReadContext(ctx, p)
	if err != nil {
		return n, fmt.Errorf("usb read: %w", err)
	}
	return n, nil
}

// StreamRead fills p with StreamData packets from the stream IN endpoint. A
// bulk transfer may complete short, so reads continue until p is full.
func (d *Device) StreamRead(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var total int
	for total < len(p) {
		n, err := d.stream.ReadContext(ctx, p[total:])
		total += n
		if err != nil {
			return total, fmt.Errorf("usb stream read: %w", err)
		}
		if n == 0 {
			return total, fmt.Errorf("usb stream read: no data after %d of %d bytes", total, len(p))
		}
	}
	return total, nil
}

// Close releases the interface, the device and the libusb context.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
