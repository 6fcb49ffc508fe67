package kconfig

import "testing"

func TestParseTarget(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Target
		ok   bool
	}{
		{"desktop", Desktop, true},
		{"server", Server, true},
		{"iot", IoT, true},
		{"embedded", Embedded, true},
		{"", Generic, true},
		{"generic", Generic, true},
		{"bogus", 0, false},
	} {
		got, err := ParseTarget(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseTarget(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseTarget(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultConfigsValidate(t *testing.T) {
	for _, target := range []Target{Generic, Desktop, Server, IoT, Embedded} {
		if err := Default(target).Validate(); err != nil {
			t.Fatalf("Default(%v).Validate(): %v", target, err)
		}
	}
}

func TestValidateRejectsEmbeddedGUI(t *testing.T) {
	c := Default(Embedded)
	c.GUI = true
	if err := c.Validate(); err == nil {
		t.Fatalf("Validate with GUI on Embedded succeeded, want error")
	}
}

func TestValidateRejectsZeroHeap(t *testing.T) {
	c := Default(Generic)
	c.HeapSize = 0
	if err := c.Validate(); err == nil {
		t.Fatalf("Validate with zero heap succeeded, want error")
	}
}

func TestValidateRejectsIOBufLargerThanHeap(t *testing.T) {
	c := Default(Generic)
	c.IOBufSize = int(c.HeapSize) + 1
	if err := c.Validate(); err == nil {
		t.Fatalf("Validate with IOBufSize > HeapSize succeeded, want error")
	}
}
