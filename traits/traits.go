// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package traits describes, per scalar type and device kind, the native
// vector width of the device and which elementwise operations it supports.
// Everything here is constant data; nothing is mutated after init.
package traits

import "fmt"

// ScalarType identifies the element type of a computation.
type ScalarType int

const (
	Float32 ScalarType = iota
	Float64
)

// Size returns the byte size of one element.
func (s ScalarType) Size() int {
	switch s {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic(fmt.Sprintf("traits: unknown scalar type %d", int(s)))
	}
}

func (s ScalarType) String() string {
	switch s {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// Of returns the ScalarType of T.
func Of[T float32 | float64]() ScalarType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	default:
		return Float64
	}
}

// IndexType identifies the integer type used for index-producing reductions.
type IndexType int

const (
	Int32 IndexType = iota
	Int64
)

// Max returns the largest index representable by the type.
func (t IndexType) Max() int64 {
	if t == Int32 {
		return 1<<31 - 1
	}
	return 1<<63 - 1
}

func (t IndexType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// DeviceKind selects a row of the capability table.
type DeviceKind int

const (
	// DeviceHost is the host CPU driven as an accelerator.
	DeviceHost DeviceKind = iota
	// DeviceNoDouble models an accelerator without double precision or
	// trigonometric units.
	DeviceNoDouble
)

func (d DeviceKind) String() string {
	switch d {
	case DeviceHost:
		return "host"
	case DeviceNoDouble:
		return "nodouble"
	default:
		return "unknown"
	}
}

// ParseDeviceKind maps a configuration string to a DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch s {
	case "host", "":
		return DeviceHost, nil
	case "nodouble":
		return DeviceNoDouble, nil
	default:
		return DeviceHost, fmt.Errorf("traits: unknown device kind %q", s)
	}
}

// Capability is an elementwise operation a device may implement natively.
type Capability int

const (
	Abs Capability = iota
	Sqrt
	Sin
	Cos
	Add
	Sub
	Mul
	Div
	Mad
	Dot
	Length
	Min
	Max
	numCapabilities
)

var capabilityNames = [...]string{
	Abs: "abs", Sqrt: "sqrt", Sin: "sin", Cos: "cos", Add: "add", Sub: "sub",
	Mul: "mul", Div: "div", Mad: "mad", Dot: "dot", Length: "length",
	Min: "min", Max: "max",
}

func (c Capability) String() string {
	if c < 0 || c >= numCapabilities {
		return "unknown"
	}
	return capabilityNames[c]
}

// Capabilities lists every capability in declaration order.
func Capabilities() []Capability {
	caps := make([]Capability, numCapabilities)
	for i := range caps {
		caps[i] = Capability(i)
	}
	return caps
}

// PacketTraits is the per (scalar type, device) description.
type PacketTraits struct {
	// Size is the number of lanes in one native packet.
	Size int
	// Supported reports whether the scalar type can be used at all.
	Supported bool

	caps uint32
}

// Has reports whether c is natively supported.
func (p PacketTraits) Has(c Capability) bool {
	return p.Supported && p.caps&(1<<uint(c)) != 0
}

func capSet(cs ...Capability) uint32 {
	var m uint32
	for _, c := range cs {
		m |= 1 << uint(c)
	}
	return m
}

var (
	allCaps     = capSet(Capabilities()...)
	noTrigCaps  = allCaps &^ capSet(Sin, Cos)
	traitsTable map[key]PacketTraits
)

type key struct {
	s ScalarType
	d DeviceKind
}

func init() {
	traitsTable = map[key]PacketTraits{
		{Float32, DeviceHost}:     {Size: hostLanes(Float32), Supported: true, caps: allCaps},
		{Float64, DeviceHost}:     {Size: hostLanes(Float64), Supported: true, caps: allCaps},
		{Float32, DeviceNoDouble}: {Size: 4, Supported: true, caps: noTrigCaps},
		{Float64, DeviceNoDouble}: {Size: 1, Supported: false},
	}
}

// Lookup returns the traits for s on d. Unknown pairs are unsupported.
func Lookup(s ScalarType, d DeviceKind) PacketTraits {
	return traitsTable[key{s, d}]
}
