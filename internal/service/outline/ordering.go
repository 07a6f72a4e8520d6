package outline

import (
	"math"
	"sort"
	"unicode"
	"unicode/utf8"

	models "tenderplan/internal/domain/models/outline"
)

const (
	// DefaultGap separates neighbouring order keys after a rebalance.
	DefaultGap = 1000.0

	// RebalanceEpsilon is the smallest tolerated distance between adjacent keys.
	RebalanceEpsilon = 1e-6
)

// Ordered is a sibling that carries a fractional sort key.
type Ordered interface {
	Key() string
	Order() float64
}

// OrderAssignment is a new order key for one item.
type OrderAssignment struct {
	ID         string
	OrderIndex float64
}

// InsertBetween returns an order key for an item placed between prev and
// next. A nil bound means the item goes at that end of the list.
func InsertBetween(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return 0
	case prev == nil:
		if v := *next - DefaultGap; v > 0 {
			return v
		}
		if *next > 0 {
			return *next / 2
		}
		return 0
	case next == nil:
		return *prev + DefaultGap
	}

	p, n := *prev, *next
	mid := p/2 + n/2
	if !(mid > p && mid < n) {
		mid = p + (n-p)/2
	}
	return mid
}

// NeedsRebalance reports whether any two adjacent keys are closer than
// RebalanceEpsilon, out of order, or not finite.
func NeedsRebalance(orders []float64) bool {
	for i, v := range orders {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
		if i > 0 && v-orders[i-1] < RebalanceEpsilon {
			return true
		}
	}
	return false
}

// OrdersOf extracts the keys of a sibling list.
func OrdersOf[T Ordered](items []T) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		out[i] = it.Order()
	}
	return out
}

// Rebalance assigns (i+1)*DefaultGap to every item, keeping list order.
func Rebalance[T Ordered](items []T) []OrderAssignment {
	out := make([]OrderAssignment, len(items))
	for i, it := range items {
		out[i] = OrderAssignment{ID: it.Key(), OrderIndex: float64(i+1) * DefaultGap}
	}
	return out
}

var chineseDigits = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

const chineseTen = '十'

func isNumeralSeparator(r rune) bool {
	return r == '、' || r == '.' || r == '．' || unicode.IsSpace(r)
}

// ParseLeadingChineseNumeral reads a Chinese numeral between 1 and 99 at the
// start of title, followed by 、 . or whitespace. Titles without one return +Inf
// so they sort after numbered titles.
func ParseLeadingChineseNumeral(title string) float64 {
	var numeral []rune
	rest := title
	for len(rest) > 0 {
		r, size := utf8.DecodeRuneInString(rest)
		if _, ok := chineseDigits[r]; !ok && r != chineseTen {
			break
		}
		numeral = append(numeral, r)
		rest = rest[size:]
	}
	if len(numeral) == 0 || len(rest) == 0 {
		return math.Inf(1)
	}
	if r, _ := utf8.DecodeRuneInString(rest); !isNumeralSeparator(r) {
		return math.Inf(1)
	}

	value, ok := chineseNumeralValue(numeral)
	if !ok {
		return math.Inf(1)
	}
	return float64(value)
}

// chineseNumeralValue accepts X, 十, 十X, X十 and X十Y with X, Y in 一..九.
func chineseNumeralValue(rs []rune) (int, bool) {
	digit := func(r rune) (int, bool) {
		d, ok := chineseDigits[r]
		return d, ok
	}
	switch len(rs) {
	case 1:
		if rs[0] == chineseTen {
			return 10, true
		}
		return digit(rs[0])
	case 2:
		if rs[0] == chineseTen {
			units, ok := digit(rs[1])
			return 10 + units, ok
		}
		if rs[1] == chineseTen {
			tens, ok := digit(rs[0])
			return tens * 10, ok
		}
	case 3:
		if rs[1] != chineseTen {
			return 0, false
		}
		tens, ok := digit(rs[0])
		if !ok {
			return 0, false
		}
		units, ok := digit(rs[2])
		return tens*10 + units, ok
	}
	return 0, false
}

// Titled is an ordered item with a display title.
type Titled interface {
	Ordered
	DisplayTitle() string
}

// AutoSortByChineseNumeral sorts items by their leading Chinese numeral,
// falling back to order_index. When the resulting order differs from the
// input it assigns sequential integer keys starting at 1.
func AutoSortByChineseNumeral[T Titled](items []T) ([]T, []OrderAssignment, bool) {
	sorted := make([]T, len(items))
	copy(sorted, items)
	keys := make(map[string]float64, len(items))
	for _, it := range items {
		keys[it.Key()] = ParseLeadingChineseNumeral(it.DisplayTitle())
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := keys[sorted[i].Key()], keys[sorted[j].Key()]
		if ki != kj {
			return ki < kj
		}
		return sorted[i].Order() < sorted[j].Order()
	})

	changed := false
	for i := range items {
		if items[i].Key() != sorted[i].Key() {
			changed = true
			break
		}
	}
	if !changed {
		return sorted, nil, false
	}

	assignments := make([]OrderAssignment, len(sorted))
	for i, it := range sorted {
		assignments[i] = OrderAssignment{ID: it.Key(), OrderIndex: float64(i + 1)}
	}
	return sorted, assignments, true
}

// applySectionOrders returns copies of sections with the assigned keys.
func applySectionOrders(list []*models.Section, assignments []OrderAssignment) []*models.Section {
	byID := make(map[string]float64, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = a.OrderIndex
	}
	out := make([]*models.Section, len(list))
	for i, s := range list {
		if v, ok := byID[s.ID]; ok && v != s.OrderIndex {
			cp := *s
			cp.OrderIndex = v
			out[i] = &cp
			continue
		}
		out[i] = s
	}
	return out
}

// applyTaskOrders returns copies of tasks with the assigned keys and section.
func applyTaskOrders(list []*models.Task, sectionID string, assignments []OrderAssignment) []*models.Task {
	byID := make(map[string]float64, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = a.OrderIndex
	}
	out := make([]*models.Task, len(list))
	for i, t := range list {
		v, ok := byID[t.ID]
		if (!ok || v == t.OrderIndex) && t.SectionID == sectionID {
			out[i] = t
			continue
		}
		cp := *t
		if ok {
			cp.OrderIndex = v
		}
		cp.SectionID = sectionID
		out[i] = &cp
	}
	return out
}

func sectionOrderUpdates(assignments []OrderAssignment) []models.SectionOrderUpdate {
	out := make([]models.SectionOrderUpdate, len(assignments))
	for i, a := range assignments {
		out[i] = models.SectionOrderUpdate{ID: a.ID, OrderIndex: a.OrderIndex}
	}
	return out
}
