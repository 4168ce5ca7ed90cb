package models

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"base.en", TypeBaseEn, false},
		{"MEDIUM.EN", TypeMediumEn, false},
		{" large-v3-turbo ", TypeLargeV3Turbo, false},
		{"tiny", TypeTiny, false},
		{"huge", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTypeFilename(t *testing.T) {
	if got := TypeMediumEn.Filename(); got != "ggml-medium.en.bin" {
		t.Errorf("Filename() = %q, want ggml-medium.en.bin", got)
	}
	if !TypeMediumEn.EnglishOnly() {
		t.Error("medium.en should be English-only")
	}
	if TypeLargeV3.EnglishOnly() {
		t.Error("large-v3 should be multilingual")
	}
}

func TestParseDevice(t *testing.T) {
	for _, name := range []string{"cpu", "metal", "cuda"} {
		d, err := ParseDevice(name)
		if err != nil {
			t.Fatalf("ParseDevice(%q) error = %v", name, err)
		}
		if d.String() != name {
			t.Errorf("round trip %q -> %q", name, d.String())
		}
	}
	if _, err := ParseDevice("tpu"); err == nil {
		t.Error("ParseDevice(tpu) should fail")
	}
}

func TestInvalidValues(t *testing.T) {
	if Device(42).Valid() {
		t.Error("Device(42) should be invalid")
	}
	if Type(-1).Valid() {
		t.Error("Type(-1) should be invalid")
	}
	if _, err := Device(42).MarshalText(); err == nil {
		t.Error("MarshalText on invalid device should fail")
	}
}

func TestDefinitionYAML(t *testing.T) {
	var v struct {
		Type   Type   `yaml:"type"`
		Device Device `yaml:"device"`
	}
	if err := yaml.Unmarshal([]byte("type: small.en\ndevice: metal\n"), &v); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}

	def := NewDefinition(v.Type, v.Device)
	if def != (Definition{Type: TypeSmallEn, Device: DeviceMetal}) {
		t.Errorf("definition = %+v", def)
	}
	if def.String() != "small.en@metal" {
		t.Errorf("String() = %q, want small.en@metal", def.String())
	}
}

func TestDefinitionYAMLRejectsUnknown(t *testing.T) {
	var v struct {
		Device Device `yaml:"device"`
	}
	if err := yaml.Unmarshal([]byte("device: quantum\n"), &v); err == nil {
		t.Error("expected error for unknown device")
	}
}
