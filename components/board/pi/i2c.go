//go:build linux

package pi

import (
	"context"

	"github.com/kidoman/embd"

	"github.com/edss/rocket-sensors/components/board"
)

type i2cBus struct {
	board  *Board
	number byte
}

func (bus *i2cBus) OpenHandle(addr byte) (board.I2CHandle, error) {
	if err := bus.board.openI2C(); err != nil {
		return nil, err
	}
	return &i2cHandle{bus: embd.NewI2CBus(bus.number), addr: addr}, nil
}

// i2cHandle addresses one device. embd shares a bus between handles, so the bus stays open until
// the board closes the driver.
type i2cHandle struct {
	bus  embd.I2CBus
	addr byte
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.bus.WriteBytes(h.addr, tx)
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.bus.ReadBytes(h.addr, count)
}

func (h *i2cHandle) ReadByteData(ctx context.Context, register byte) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return h.bus.ReadByteFromReg(h.addr, register)
}

func (h *i2cHandle) WriteByteData(ctx context.Context, register, data byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.bus.WriteByteToReg(h.addr, register, data)
}

func (h *i2cHandle) ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, numBytes)
	if err := h.bus.ReadFromReg(h.addr, register, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (h *i2cHandle) WriteBlockData(ctx context.Context, register byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.bus.WriteToReg(h.addr, register, data)
}

func (h *i2cHandle) Close() error {
	return nil
}
