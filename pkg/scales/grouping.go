// Package scales implements the scoring engine for the PANS screening
// instruments. It is pure: no I/O, no logging and no shared mutable state, so
// an Engine may be used from any number of goroutines.
package scales

import "sort"

// Reducer folds the item values of one domain into a single domain value.
type Reducer int

const (
	// MaxReducer keeps the largest item value of a domain.
	MaxReducer Reducer = iota
	// SumReducer adds the item values of a domain.
	SumReducer
)

func (r Reducer) reduce(acc, v int) int {
	if r == MaxReducer {
		if v > acc {
			return v
		}
		return acc
	}
	return acc + v
}

// DomainValue is one item value tagged with its domain.
type DomainValue struct {
	Domain string
	Value  int
}

// DomainScore is the reduced value of one domain.
type DomainScore struct {
	Domain string `json:"domain"`
	Value  int    `json:"value"`
	Items  int    `json:"items"`
}

// GroupByDomain reduces values per domain. Domains are returned in the order
// in which they were first encountered.
func GroupByDomain(values []DomainValue, r Reducer) []DomainScore {
	index := make(map[string]int)
	var out []DomainScore
	for _, v := range values {
		i, ok := index[v.Domain]
		if !ok {
			index[v.Domain] = len(out)
			out = append(out, DomainScore{Domain: v.Domain, Value: v.Value, Items: 1})
			continue
		}
		out[i].Value = r.reduce(out[i].Value, v.Value)
		out[i].Items++
	}
	return out
}

// TopN returns the n highest domains and the sum of their values. Ties keep
// first-encountered order. With fewer than n domains all of them are used.
func TopN(groups []DomainScore, n int) ([]DomainScore, int) {
	sorted := make([]DomainScore, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	sum := 0
	for _, g := range sorted {
		sum += g.Value
	}
	return sorted, sum
}

// SumValues adds the values of all domains.
func SumValues(groups []DomainScore) int {
	total := 0
	for _, g := range groups {
		total += g.Value
	}
	return total
}
