package inject

import (
	"context"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/resource"
)

// Board is an injected board.
type Board struct {
	board.Board
	name              resource.Name
	I2CByNameFunc     func(name string) (board.I2C, bool)
	GPIOPinByNameFunc func(name string) (board.GPIOPin, error)
	DoFunc            func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
	CloseFunc         func(ctx context.Context) error
}

// NewBoard returns a new injected board.
func NewBoard(name string) *Board {
	return &Board{name: board.Named(name)}
}

// Name returns the name of the resource.
func (b *Board) Name() resource.Name {
	return b.name
}

// I2CByName calls the injected I2CByName or the real version.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	if b.I2CByNameFunc == nil {
		return b.Board.I2CByName(name)
	}
	return b.I2CByNameFunc(name)
}

// GPIOPinByName calls the injected GPIOPinByName or the real version.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	if b.GPIOPinByNameFunc == nil {
		return b.Board.GPIOPinByName(name)
	}
	return b.GPIOPinByNameFunc(name)
}

// DoCommand calls the injected DoCommand or the real version.
func (b *Board) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if b.DoFunc == nil {
		return b.Board.DoCommand(ctx, cmd)
	}
	return b.DoFunc(ctx, cmd)
}

// Reconfigure does nothing; injected boards are replaced rather than reconfigured.
func (b *Board) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	return nil
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}
