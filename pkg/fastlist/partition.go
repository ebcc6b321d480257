package fastlist

import "fmt"

// partitionAlphabet seeds splitters with the characters object names
// commonly use. Characters outside this set are learned on the fly.
const partitionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ConfigError reports invalid listing or planning parameters.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "fastlist: " + e.Reason
}

// Range is a half-open interval [Lower, Upper) over prefix-relative object
// names. An empty Upper means unbounded. The queried prefix itself is applied
// by the store query, keeping range arithmetic prefix-agnostic.
type Range struct {
	Lower string
	Upper string
}

// Partition divides the namespace under prefix into at most n ordered,
// pairwise-disjoint ranges whose union is the whole span. The prefix only
// seeds the splitter's alphabet; returned bounds are prefix-relative.
//
// Fewer than n ranges are returned when the namespace cannot be subdivided
// that finely; workers without an initial range acquire work by stealing.
func Partition(prefix string, n int) ([]Range, error) {
	if n <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("parallelism must be positive, got %d", n)}
	}
	if n == 1 {
		return []Range{{}}, nil
	}

	splitter, err := NewRangeSplitter(partitionAlphabet + prefix)
	if err != nil {
		return nil, err
	}
	points, err := splitter.SplitRange("", "", n-1)
	if err != nil {
		return nil, err
	}

	ranges := make([]Range, 0, len(points)+1)
	lower := ""
	for _, p := range points {
		ranges = append(ranges, Range{Lower: lower, Upper: p})
		lower = p
	}
	ranges = append(ranges, Range{Lower: lower})
	return ranges, nil
}
