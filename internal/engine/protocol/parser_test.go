package protocol

import (
	"errors"
	"testing"
)

const sampleLine = "2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 49153 443 6 25 20000 1620140761 1620140821 ACCEPT OK"

func TestParseLine(t *testing.T) {
	rec, err := ParseLine(sampleLine)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if rec.DstPort != 443 {
		t.Errorf("Expected DstPort 443, got %d", rec.DstPort)
	}
	if rec.Protocol != 6 {
		t.Errorf("Expected Protocol 6, got %d", rec.Protocol)
	}
	if rec.InterfaceID != "eni-0a1b2c3d" || rec.SrcPort != "49153" || rec.LogStatus != "OK" {
		t.Errorf("Pass-through fields not preserved: %+v", rec)
	}
}

func TestParseLine_ExtraWhitespace(t *testing.T) {
	rec, err := ParseLine("  2 123 eni-1 10.0.0.1   10.0.0.2 1 80 6 1 1 1 2 ACCEPT OK\t\r")
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if rec.DstPort != 80 {
		t.Errorf("Expected DstPort 80, got %d", rec.DstPort)
	}
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"too few fields", "2 123 eni-1 10.0.0.1 10.0.0.2 1 80 6 1 1 1 ACCEPT OK", ErrFieldCount},
		{"too many fields", sampleLine + " extra", ErrFieldCount},
		{"nodata record", "2 123 eni-1 - - - - - - - 1620140761 1620140821 - NODATA", ErrInvalidField},
		{"port out of range", "2 123 eni-1 10.0.0.1 10.0.0.2 1 70000 6 1 1 1 2 ACCEPT OK", ErrInvalidField},
		{"negative port", "2 123 eni-1 10.0.0.1 10.0.0.2 1 -80 6 1 1 1 2 ACCEPT OK", ErrInvalidField},
		{"protocol name", "2 123 eni-1 10.0.0.1 10.0.0.2 1 80 tcp 1 1 1 2 ACCEPT OK", ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseLine(tt.line)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if rec != nil {
				t.Errorf("Expected no record on error, got %+v", rec)
			}
		})
	}
}
