package watch

import (
	"reflect"
	"testing"

	"uniperp/internal/domain/model"
)

func mark(venue, sym, price string) model.MarkPrice {
	return model.MarkPrice{Venue: venue, Symbol: sym, PriceStr: price}
}

func TestNewStateNormalizesSymbols(t *testing.T) {
	st := NewState([]string{" btc-usd ", "ETH-USD", ""})

	want := []string{"BTC-USD", "ETH-USD"}
	if !reflect.DeepEqual(st.Symbols(), want) {
		t.Errorf("expected symbols %v, got %v", want, st.Symbols())
	}
}

func TestApplyReportsChange(t *testing.T) {
	st := NewState([]string{"BTC-USD"})

	if !st.Apply(mark("extended", "BTC-USD", "45000.5")) {
		t.Error("first price should report a change")
	}
	if st.Apply(mark("extended", "BTC-USD", "45000.5")) {
		t.Error("identical price should not report a change")
	}
	if !st.Apply(mark("extended", "BTC-USD", "45001.0")) {
		t.Error("new price should report a change")
	}
}

func TestApplyIgnoresUnknownSymbol(t *testing.T) {
	st := NewState([]string{"BTC-USD"})

	if st.Apply(mark("extended", "SOL-USD", "150")) {
		t.Error("unknown symbol should not report a change")
	}
}

func TestApplyIgnoresBlankFields(t *testing.T) {
	st := NewState([]string{"BTC-USD"})

	if st.Apply(mark("", "BTC-USD", "45000")) {
		t.Error("blank venue should be ignored")
	}
	if st.Apply(mark("extended", "BTC-USD", "  ")) {
		t.Error("blank price should be ignored")
	}
}

func TestApplyTracksDirection(t *testing.T) {
	st := NewState([]string{"BTC-USD"})

	st.Apply(mark("extended", "BTC-USD", "100"))
	st.Apply(mark("extended", "BTC-USD", "101"))

	snap := st.Snapshot()
	ps := snap["BTC-USD"].venues["extended"]
	if ps.dir != DirUp {
		t.Errorf("expected DirUp, got %v", ps.dir)
	}

	st.Apply(mark("extended", "BTC-USD", "99"))
	snap = st.Snapshot()
	if snap["BTC-USD"].venues["extended"].dir != DirDown {
		t.Errorf("expected DirDown after drop")
	}
}

func TestVenuesAreIndependent(t *testing.T) {
	st := NewState([]string{"BTC-USD"})

	st.Apply(mark("extended", "BTC-USD", "100"))
	st.Apply(mark("backpack", "BTC-USD", "100.5"))

	if px, ok := st.VenuePrice("BTC-USD", "extended"); !ok || px != 100 {
		t.Errorf("extended price: got %v ok=%v", px, ok)
	}
	if px, ok := st.VenuePrice("BTC-USD", "backpack"); !ok || px != 100.5 {
		t.Errorf("backpack price: got %v ok=%v", px, ok)
	}
}

func TestVenuePriceCaseInsensitive(t *testing.T) {
	st := NewState([]string{"BTC-USD"})
	st.Apply(mark("Extended", "btc-usd", "100"))

	if px, ok := st.VenuePrice("btc-usd", "EXTENDED"); !ok || px != 100 {
		t.Errorf("expected normalized lookup to hit, got %v ok=%v", px, ok)
	}
}

func TestUnparseablePriceStillDisplays(t *testing.T) {
	st := NewState([]string{"BTC-USD"})

	if !st.Apply(mark("extended", "BTC-USD", "n/a")) {
		t.Error("unparseable price should still trigger a refresh")
	}
	if _, ok := st.VenuePrice("BTC-USD", "extended"); ok {
		t.Error("unparseable price must not be returned as a number")
	}
}
