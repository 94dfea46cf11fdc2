package validation

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

type sample struct {
	Name    string        `validate:"required,max=8"`
	Workers int           `validate:"min=1,max=4"`
	Timeout time.Duration `validate:"gt=0"`
	Level   string        `validate:"oneof=debug info"`
	Addr    string        `validate:"required,hostname_port"`
}

func validSample() sample {
	return sample{Name: "n", Workers: 2, Timeout: time.Second, Level: "info", Addr: ":9090"}
}

func TestStructValid(t *testing.T) {
	if err := Struct(validSample()); err != nil {
		t.Fatalf("Expected valid sample, got %v", err)
	}
}

func TestStructNil(t *testing.T) {
	if err := Struct(nil); err == nil {
		t.Error("Expected error for nil value")
	}
}

func TestStructMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sample)
		want   string
	}{
		{"required", func(s *sample) { s.Name = "" }, "sample.Name: field is required"},
		{"max", func(s *sample) { s.Name = "far-too-long" }, "sample.Name: must not exceed 8"},
		{"min", func(s *sample) { s.Workers = 0 }, "sample.Workers: must be at least 1"},
		{"gt", func(s *sample) { s.Timeout = 0 }, "sample.Timeout: must be greater than 0"},
		{"oneof", func(s *sample) { s.Level = "loud" }, "sample.Level: must be one of [debug info], got loud"},
		{"hostname_port", func(s *sample) { s.Addr = "nowhere" }, "sample.Addr: must be host:port, got nowhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSample()
			tt.mutate(&s)
			err := Struct(s)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if err.Error() != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestStructReportsEveryField(t *testing.T) {
	s := validSample()
	s.Name = ""
	s.Workers = 99
	s.Level = ""

	err := Struct(s)
	errs := multierr.Errors(err)
	if len(errs) != 3 {
		t.Fatalf("Expected 3 errors, got %d: %v", len(errs), err)
	}
	if !strings.Contains(err.Error(), "sample.Workers") {
		t.Errorf("Expected Workers in %q", err.Error())
	}
}
