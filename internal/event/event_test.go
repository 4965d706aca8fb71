package event

import (
	"errors"
	"testing"
	"time"
)

func TestValidate_ok(t *testing.T) {
	e := Event{Key: "10.0.0.1|abcd", Timestamp: time.Now(), Path: "/robots.txt"}
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_missingFields(t *testing.T) {
	now := time.Now()
	cases := map[string]Event{
		"key":       {Timestamp: now, Path: "/"},
		"timestamp": {Key: "k", Path: "/"},
		"path":      {Key: "k", Timestamp: now},
		"transport": {Key: "k", Timestamp: now, Path: "/", Transport: Transport(9)},
	}
	for name, e := range cases {
		if err := e.Validate(); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestTransport_String(t *testing.T) {
	if TransportHTTP.String() != "http" {
		t.Errorf("got %q", TransportHTTP.String())
	}
	if TransportProtocol.String() != "protocol" {
		t.Errorf("got %q", TransportProtocol.String())
	}
	if !(Event{Transport: TransportProtocol}).IsProtocol() {
		t.Error("expected protocol event")
	}
}
