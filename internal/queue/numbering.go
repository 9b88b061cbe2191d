package queue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPrefix = "A"
	DefaultPad    = 3
)

type Numbering struct {
	Prefix string
	Pad    int
}

func (n Numbering) pad() int {
	if n.Pad <= 0 {
		return DefaultPad
	}
	return n.Pad
}

// Format renders num as prefix plus zero-padded digits. Numbers wider than
// the pad keep all their digits.
func (n Numbering) Format(num int) string {
	return fmt.Sprintf("%s%0*d", n.Prefix, n.pad(), num)
}

// MaxNumber bounds parsed ticket numbers. Suffixes at or above it are
// malformed, so incrementing a parsed number cannot overflow.
const MaxNumber = math.MaxInt32

// Parse returns the number carried in the trailing digits of id, or 0 when
// there are none or they reach MaxNumber. It never fails so that issuance
// is never blocked by a malformed row.
func (n Numbering) Parse(id string) int {
	id = strings.TrimSpace(id)
	end := len(id)
	start := end
	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	value, err := strconv.Atoi(id[start:end])
	if err != nil || value < 0 || value >= MaxNumber {
		return 0
	}
	return value
}

type NumberingMode string

const (
	// NumberingScan derives the next number from the rows already in scope.
	NumberingScan NumberingMode = "scan"
	// NumberingSequence asks a ledger.Sequencer for the number.
	NumberingSequence NumberingMode = "sequence"
)

func ParseNumberingMode(raw string) (NumberingMode, error) {
	switch NumberingMode(strings.ToLower(strings.TrimSpace(raw))) {
	case NumberingScan, "":
		return NumberingScan, nil
	case NumberingSequence:
		return NumberingSequence, nil
	default:
		return "", fmt.Errorf("unknown numbering mode %q", raw)
	}
}
