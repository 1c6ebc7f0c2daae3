package watch

import (
	"strconv"
	"strings"
	"sync"

	"uniperp/internal/domain/model"
)

type Dir int

const (
	DirSame Dir = 0
	DirUp   Dir = +1
	DirDown Dir = -1
)

type pxState struct {
	str   string
	num   float64
	has   bool
	dir   Dir
	seen  bool
	parse bool
}

type symState struct {
	venues map[string]*pxState // venue -> price state (e.g., "extended" -> *pxState)
}

type State struct {
	mu sync.Mutex

	order []string
	syms  map[string]*symState
}

func NewState(symbols []string) *State {
	order := make([]string, 0, len(symbols))
	syms := make(map[string]*symState, len(symbols))
	for _, sym := range symbols {
		u := strings.ToUpper(strings.TrimSpace(sym))
		if u == "" {
			continue
		}
		order = append(order, u)
		syms[u] = &symState{
			venues: make(map[string]*pxState),
		}
	}
	return &State{order: order, syms: syms}
}

func (s *State) Symbols() []string {
	return s.order
}

// Apply 应用一个标记价格更新，返回显示是否需要刷新（价格相对上次发生了变化）
func (s *State) Apply(mp model.MarkPrice) bool {
	venue := strings.ToLower(strings.TrimSpace(mp.Venue))
	sym := strings.ToUpper(strings.TrimSpace(mp.Symbol))
	price := strings.TrimSpace(mp.PriceStr)
	if sym == "" || price == "" || venue == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.syms[sym]
	if st == nil {
		return false
	}

	ps := st.venues[venue]
	if ps == nil {
		ps = &pxState{}
		st.venues[venue] = ps
	}

	if ps.str == price {
		ps.seen = true
		return false
	}

	ps.str = price
	ps.seen = true

	n, err := strconv.ParseFloat(price, 64)
	if err != nil {
		ps.parse = false
		ps.dir = DirSame
		return true
	}

	ps.parse = true
	if !ps.has {
		ps.has = true
		ps.num = n
		ps.dir = DirSame
		return true
	}

	prev := ps.num
	switch {
	case n > prev:
		ps.dir = DirUp
	case n < prev:
		ps.dir = DirDown
	default:
		ps.dir = DirSame
	}
	ps.num = n
	return true
}

func (s *State) Snapshot() map[string]symState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]symState, len(s.syms))
	for k, v := range s.syms {
		out[k] = *v
	}
	return out
}

// VenuePrice returns the last parsed price a venue reported for a
// symbol.
func (s *State) VenuePrice(symbol, venue string) (float64, bool) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	v := strings.ToLower(strings.TrimSpace(venue))

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.syms[sym]
	if st == nil {
		return 0, false
	}
	ps := st.venues[v]
	if ps == nil || !ps.has || !ps.parse {
		return 0, false
	}
	return ps.num, true
}
