package repository

import (
	"strings"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
)

// StaticPriceTable serves configured daily moves. Names match exactly, so an
// upper-cased stock symbol never hits an index entry such as "Nasdaq".
type StaticPriceTable struct {
	order   []string
	changes map[string]float64
	def     float64
}

// NewStaticPriceTable builds a table. indices fixes the order of Indices();
// names present only in changes are still resolvable.
func NewStaticPriceTable(indices []string, changes map[string]float64, def float64) *StaticPriceTable {
	t := &StaticPriceTable{
		order:   append([]string(nil), indices...),
		changes: make(map[string]float64, len(changes)),
		def:     def,
	}
	for name, v := range changes {
		t.changes[strings.TrimSpace(name)] = v
	}
	return t
}

func (t *StaticPriceTable) Lookup(target string) (float64, bool) {
	v, ok := t.changes[strings.TrimSpace(target)]
	return v, ok
}

func (t *StaticPriceTable) Default() float64 { return t.def }

// Indices lists the selectable indices with their move; missing entries use the default.
func (t *StaticPriceTable) Indices() []models.IndexQuote {
	out := make([]models.IndexQuote, 0, len(t.order))
	for _, name := range t.order {
		v, ok := t.Lookup(name)
		if !ok {
			v = t.def
		}
		out = append(out, models.IndexQuote{Name: name, PriceChange: v})
	}
	return out
}

var _ domrepo.PriceTable = (*StaticPriceTable)(nil)
