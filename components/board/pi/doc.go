// Package pi implements a Raspberry Pi board. GPIO pins are BCM numbered and driven through
// /dev/gpiomem with go-rpio; I2C buses are reached with embd. The board is only built on Linux.
package pi
