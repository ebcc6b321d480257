package fastlist

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
)

// RangeSplitter computes lexicographic split points inside a half-open
// string range. It maintains a sorted alphabet, seeded at construction and
// extended with any characters observed in split inputs, and interpolates
// evenly spaced points by mapping range bounds onto a base-len(alphabet)
// integer space.
//
// A RangeSplitter is not safe for concurrent use; each listing worker owns
// its own instance.
type RangeSplitter struct {
	alphabet []rune
	index    map[rune]int
}

// NewRangeSplitter creates a RangeSplitter seeded with the given alphabet.
func NewRangeSplitter(alphabet string) (*RangeSplitter, error) {
	if len(alphabet) == 0 {
		return nil, errors.New("fastlist: cannot split with an empty alphabet")
	}
	s := &RangeSplitter{index: make(map[rune]int)}
	s.addCharacters(alphabet)
	if len(s.alphabet) < 2 {
		return nil, errors.New("fastlist: alphabet needs at least two distinct characters")
	}
	return s, nil
}

// SplitRange returns up to numSplits split points strictly inside
// (start, end). An empty end means the range is unbounded above. The result
// may hold fewer points than requested (or none) when the range is too
// narrow to subdivide.
func (s *RangeSplitter) SplitRange(start, end string, numSplits int) ([]string, error) {
	if numSplits < 1 {
		return nil, fmt.Errorf("fastlist: need at least 1 split, got %d", numSplits)
	}
	if end != "" && start >= end {
		return nil, nil
	}
	if s.rangeEqualWithPadding(start, end) {
		return nil, nil
	}

	s.addCharacters(start + end)
	startInt, endInt, minLen := s.minimalIntRange(start, end, numSplits)
	return s.generateSplits(startInt, endInt, minLen, numSplits, start, end), nil
}

// Midpoint returns the single split point halving [start, end), or false
// when the range is too narrow to split.
func (s *RangeSplitter) Midpoint(start, end string) (string, bool) {
	points, err := s.SplitRange(start, end, 1)
	if err != nil || len(points) == 0 {
		return "", false
	}
	return points[0], true
}

// minimalIntRange maps the string range onto the smallest integer range wide
// enough to hold numSplits interior points. The returned length is the digit
// count of that integer space.
func (s *RangeSplitter) minimalIntRange(start, end string, numSplits int) (*big.Int, *big.Int, int) {
	base := big.NewInt(int64(len(s.alphabet)))
	startInt := new(big.Int)
	endInt := new(big.Int)
	limit := big.NewInt(int64(numSplits))

	smallest := s.alphabet[0]
	largest := s.alphabet[len(s.alphabet)-1]

	// An unbounded end behaves as an infinite run of the largest character.
	endDefault := smallest
	if end == "" {
		endDefault = largest
	}

	startRunes := []rune(start)
	endRunes := []rune(end)
	diff := new(big.Int)
	for i := 0; ; i++ {
		startInt.Mul(startInt, base)
		startInt.Add(startInt, big.NewInt(int64(s.index[runeOrDefault(startRunes, i, smallest)])))

		endInt.Mul(endInt, base)
		endInt.Add(endInt, big.NewInt(int64(s.index[runeOrDefault(endRunes, i, endDefault)])))

		if diff.Sub(endInt, startInt); diff.Cmp(limit) > 0 {
			return startInt, endInt, i + 1
		}
	}
}

// generateSplits interpolates numSplits evenly spaced integers between
// startInt and endInt and converts them back to strings, keeping only points
// strictly inside the original string range.
func (s *RangeSplitter) generateSplits(startInt, endInt *big.Int, minLen, numSplits int, start, end string) []string {
	diff := new(big.Int).Sub(endInt, startInt)
	interval := big.NewInt(int64(numSplits + 1))

	var points []string
	for i := 1; i <= numSplits; i++ {
		step := new(big.Int).Mul(diff, big.NewInt(int64(i)))
		step.Div(step, interval)
		point := s.intToString(new(big.Int).Add(startInt, step), minLen)

		aboveStart := point != "" && point > start
		belowEnd := end == "" || (point != "" && point < end)
		if aboveStart && belowEnd {
			points = append(points, point)
		}
	}
	return points
}

// intToString renders a base-len(alphabet) integer as a string of exactly
// length digits.
func (s *RangeSplitter) intToString(v *big.Int, length int) string {
	base := big.NewInt(int64(len(s.alphabet)))
	rem := new(big.Int)
	n := new(big.Int).Set(v)

	out := make([]rune, length)
	for i := length - 1; i >= 0; i-- {
		n.DivMod(n, base, rem)
		out[i] = s.alphabet[rem.Int64()]
	}
	return string(out)
}

// rangeEqualWithPadding reports whether start and end name the same point
// once the shorter is padded with the smallest character. Such ranges hold
// no splittable interior.
func (s *RangeSplitter) rangeEqualWithPadding(start, end string) bool {
	if end == "" {
		return false
	}
	startRunes := []rune(start)
	endRunes := []rune(end)
	longest := len(startRunes)
	if len(endRunes) > longest {
		longest = len(endRunes)
	}
	smallest := s.alphabet[0]
	for i := 0; i < longest; i++ {
		if runeOrDefault(startRunes, i, smallest) != runeOrDefault(endRunes, i, smallest) {
			return false
		}
	}
	return true
}

// addCharacters extends the alphabet with any unseen characters.
func (s *RangeSplitter) addCharacters(chars string) {
	grew := false
	for _, r := range chars {
		if _, ok := s.index[r]; !ok {
			s.alphabet = append(s.alphabet, r)
			s.index[r] = 0 // placeholder until re-sorted
			grew = true
		}
	}
	if !grew {
		return
	}
	sort.Slice(s.alphabet, func(i, j int) bool { return s.alphabet[i] < s.alphabet[j] })
	for i, r := range s.alphabet {
		s.index[r] = i
	}
}

func runeOrDefault(runes []rune, i int, def rune) rune {
	if i < 0 || i >= len(runes) {
		return def
	}
	return runes[i]
}
