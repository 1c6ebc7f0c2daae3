package stream

import "testing"

func TestConnStateString(t *testing.T) {
	cases := map[ConnState]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateConnected:      "connected",
		StateAuthenticating: "authenticating",
		StateReady:          "ready",
		StateReconnecting:   "reconnecting",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("state %d: got %q, want %q", state, got, want)
		}
	}
}

func TestTopicString(t *testing.T) {
	if got := (Topic{Channel: "markPrice", Symbol: "BTC-USD"}).String(); got != "markPrice.BTC-USD" {
		t.Errorf("got %q", got)
	}
	if got := (Topic{Channel: "balance"}).String(); got != "balance" {
		t.Errorf("got %q", got)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.ConnectTimeout <= 0 || o.ReconnectMin <= 0 || o.ReconnectMax < o.ReconnectMin {
		t.Fatalf("defaults incomplete: %+v", o)
	}
	if o.ConnectAttempts <= 0 || o.PingFailLimit <= 0 {
		t.Fatalf("defaults incomplete: %+v", o)
	}
	if o.PingInterval != 0 {
		t.Fatal("ping must stay disabled unless the venue asks for it")
	}
}
