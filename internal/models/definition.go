// Package models describes which whisper model a worker loads and where its
// weights live on disk.
package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type selects a whisper model variant (size and language capability).
type Type int

const (
	TypeTiny Type = iota
	TypeTinyEn
	TypeBase
	TypeBaseEn
	TypeSmall
	TypeSmallEn
	TypeMedium
	TypeMediumEn
	TypeLargeV3
	TypeLargeV3Turbo
)

var typeNames = map[Type]string{
	TypeTiny:         "tiny",
	TypeTinyEn:       "tiny.en",
	TypeBase:         "base",
	TypeBaseEn:       "base.en",
	TypeSmall:        "small",
	TypeSmallEn:      "small.en",
	TypeMedium:       "medium",
	TypeMediumEn:     "medium.en",
	TypeLargeV3:      "large-v3",
	TypeLargeV3Turbo: "large-v3-turbo",
}

// ParseType converts a variant name such as "base.en" into a Type.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("models: unknown model type %q", s)
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is a known variant.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// EnglishOnly reports whether the variant was trained on English only.
func (t Type) EnglishOnly() bool {
	return strings.HasSuffix(typeNames[t], ".en")
}

// Filename returns the ggml weights filename for the variant,
// e.g. "ggml-base.en.bin".
func (t Type) Filename() string {
	return "ggml-" + t.String() + ".bin"
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("models: invalid model type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	return t.UnmarshalText([]byte(node.Value))
}

// Device selects the compute backend inference runs on.
type Device int

const (
	DeviceCPU Device = iota
	DeviceMetal
	DeviceCUDA
)

var deviceNames = map[Device]string{
	DeviceCPU:   "cpu",
	DeviceMetal: "metal",
	DeviceCUDA:  "cuda",
}

// ParseDevice converts a backend name such as "metal" into a Device.
func ParseDevice(s string) (Device, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d, n := range deviceNames {
		if n == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("models: unknown device %q", s)
}

func (d Device) String() string {
	if n, ok := deviceNames[d]; ok {
		return n
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// Valid reports whether d is a known backend.
func (d Device) Valid() bool {
	_, ok := deviceNames[d]
	return ok
}

func (d Device) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("models: invalid device %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Device) UnmarshalText(text []byte) error {
	parsed, err := ParseDevice(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Device) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Definition is the immutable description of the model a worker loads.
// It is a plain comparable value and is passed by value across the spawn
// boundary.
type Definition struct {
	Type   Type
	Device Device
}

// NewDefinition returns a Definition for the given variant and device.
func NewDefinition(t Type, d Device) Definition {
	return Definition{Type: t, Device: d}
}

func (d Definition) String() string {
	return d.Type.String() + "@" + d.Device.String()
}
