package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/components/board"
)

// An I2C bus holds one register file per device address.
type I2C struct {
	mu      sync.Mutex
	devices map[byte]*Device
	open    int
}

// Device returns the register file at addr, creating it on first use.
func (bus *I2C) Device(addr byte) *Device {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	d, ok := bus.devices[addr]
	if !ok {
		d = &Device{}
		bus.devices[addr] = d
	}
	return d
}

// OpenHandles returns the number of handles not yet closed.
func (bus *I2C) OpenHandles() int {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.open
}

// OpenHandle opens a handle on the device at addr.
func (bus *I2C) OpenHandle(addr byte) (board.I2CHandle, error) {
	d := bus.Device(addr)
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.open++
	return &i2cHandle{bus: bus, device: d}, nil
}

// A Device is a register file. Block accesses auto-increment the register address, wrapping at 0xFF.
type Device struct {
	mu      sync.Mutex
	regs    [256]byte
	pointer byte
}

// SetRegisters writes data starting at register.
func (d *Device) SetRegisters(register byte, data ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range data {
		d.regs[register+byte(i)] = v
	}
}

// Register returns the value of one register.
func (d *Device) Register(register byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[register]
}

var errHandleClosed = errors.New("i2c handle is closed")

type i2cHandle struct {
	bus    *I2C
	device *Device
	closed bool
}

func (h *i2cHandle) check(ctx context.Context) error {
	if h.closed {
		return errHandleClosed
	}
	return ctx.Err()
}

// Write treats the first byte as the register pointer and the rest as data.
func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	if len(tx) == 0 {
		return nil
	}
	h.device.SetRegisters(tx[0], tx[1:]...)
	h.device.mu.Lock()
	h.device.pointer = tx[0] + byte(len(tx)-1)
	h.device.mu.Unlock()
	return nil
}

// Read reads count bytes from the register pointer.
func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	h.device.mu.Lock()
	defer h.device.mu.Unlock()
	out := make([]byte, count)
	for i := range out {
		out[i] = h.device.regs[h.device.pointer]
		h.device.pointer++
	}
	return out, nil
}

func (h *i2cHandle) ReadByteData(ctx context.Context, register byte) (byte, error) {
	if err := h.check(ctx); err != nil {
		return 0, err
	}
	return h.device.Register(register), nil
}

func (h *i2cHandle) WriteByteData(ctx context.Context, register, data byte) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.device.SetRegisters(register, data)
	return nil
}

func (h *i2cHandle) ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	h.device.mu.Lock()
	defer h.device.mu.Unlock()
	out := make([]byte, numBytes)
	for i := range out {
		out[i] = h.device.regs[register+byte(i)]
	}
	return out, nil
}

func (h *i2cHandle) WriteBlockData(ctx context.Context, register byte, data []byte) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.device.SetRegisters(register, data...)
	return nil
}

func (h *i2cHandle) Close() error {
	if h.closed {
		return errHandleClosed
	}
	h.closed = true
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	h.bus.open--
	return nil
}
