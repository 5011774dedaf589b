package genericlinux

import (
	"context"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/edss/rocket-sensors/components/board"
)

// i2cBus is a host I2C bus, opened through periph.io's registry by name or number.
type i2cBus struct {
	name string
}

func (bus *i2cBus) OpenHandle(addr byte) (board.I2CHandle, error) {
	b, err := i2creg.Open(bus.name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening I2C bus %q", bus.name)
	}
	return &i2cHandle{bus: b, dev: &i2c.Dev{Bus: b, Addr: uint16(addr)}}, nil
}

// i2cHandle addresses one device on an open bus. Closing it closes the bus.
type i2cHandle struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

func (h *i2cHandle) tx(ctx context.Context, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.dev.Tx(w, r)
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	return h.tx(ctx, tx, nil)
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	buf := make([]byte, count)
	if err := h.tx(ctx, nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (h *i2cHandle) ReadByteData(ctx context.Context, register byte) (byte, error) {
	buf := make([]byte, 1)
	if err := h.tx(ctx, []byte{register}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (h *i2cHandle) WriteByteData(ctx context.Context, register, data byte) error {
	return h.tx(ctx, []byte{register, data}, nil)
}

func (h *i2cHandle) ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
	buf := make([]byte, numBytes)
	if err := h.tx(ctx, []byte{register}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (h *i2cHandle) WriteBlockData(ctx context.Context, register byte, data []byte) error {
	return h.tx(ctx, append([]byte{register}, data...), nil)
}

func (h *i2cHandle) Close() error {
	return h.bus.Close()
}
