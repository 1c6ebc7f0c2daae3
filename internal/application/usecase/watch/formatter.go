package watch

import (
	"sort"
	"strings"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

func (f *Formatter) Render(st *State, mode RenderMode) string {
	snap := st.Snapshot()
	symbols := st.Symbols()

	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}

	sb.WriteString(colorize("[UNIPERP] ", ansiDim))

	for i, sym := range symbols {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		ss := snap[sym]

		sb.WriteString(sym)

		// stable venue order per symbol
		venues := make([]string, 0, len(ss.venues))
		for v := range ss.venues {
			venues = append(venues, v)
		}
		sort.Strings(venues)

		for _, v := range venues {
			ps := ss.venues[v]

			price := "--"
			if ps.seen && ps.str != "" {
				price = ps.str
			}
			col := ansiYellow
			if ps.parse {
				switch ps.dir {
				case DirUp:
					col = ansiGreen
				case DirDown:
					col = ansiRed
				}
			}

			sb.WriteString(" ")
			sb.WriteString(colorize(venueTag(v)+":"+price, col))
		}
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

// venueTag shortens a venue name to a compact display tag.
func venueTag(v string) string {
	if len(v) <= 3 {
		return strings.ToUpper(v)
	}
	return strings.ToUpper(v[:3])
}
