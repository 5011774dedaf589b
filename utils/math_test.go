package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDegRad(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90.0)
	test.That(t, RadToDeg(DegToRad(42.5)), test.ShouldAlmostEqual, 42.5)
}

func TestSignExtend(t *testing.T) {
	test.That(t, SignExtend(0x7FFFFF, 24), test.ShouldEqual, int32(8388607))
	test.That(t, SignExtend(0x800000, 24), test.ShouldEqual, int32(-8388608))
	test.That(t, SignExtend(0xFFFFFF, 24), test.ShouldEqual, int32(-1))
	test.That(t, SignExtend(0x002008, 24), test.ShouldEqual, int32(8200))
}

func TestBytes(t *testing.T) {
	test.That(t, Int16FromBytesBE([]byte{0x01, 0x98}), test.ShouldEqual, int16(408))
	test.That(t, Int16FromBytesBE([]byte{0xFF, 0xB8}), test.ShouldEqual, int16(-72))
	test.That(t, Uint16FromBytesBE([]byte{0x7F, 0xE5}), test.ShouldEqual, uint16(32741))
	test.That(t, Uint24FromBytesBE([]byte{0x5D, 0x23, 0x00}), test.ShouldEqual, uint32(0x5D2300))
}
