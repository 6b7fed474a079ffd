package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Rational represents a rational number (numerator/denominator)
// Used for frame rates and time bases
type Rational struct {
	Num int // Numerator
	Den int // Denominator
}

// Float64 returns the floating point representation
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsValid reports whether both terms are positive.
func (r Rational) IsValid() bool {
	return r.Num > 0 && r.Den > 0
}

// String formats the rational as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ParseRational parses "num/den", "num" or a decimal such as "29.97".
// An empty string yields the zero Rational.
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, nil
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			return Rational{}, fmt.Errorf("invalid numerator %q: %w", num, err)
		}
		d, err := strconv.Atoi(strings.TrimSpace(den))
		if err != nil {
			return Rational{}, fmt.Errorf("invalid denominator %q: %w", den, err)
		}
		if n <= 0 || d <= 0 {
			return Rational{}, fmt.Errorf("rational %q must be positive", s)
		}
		return Rational{Num: n, Den: d}, nil
	}
	if !strings.ContainsAny(s, ".eE") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
		}
		if n <= 0 {
			return Rational{}, fmt.Errorf("rational %q must be positive", s)
		}
		return Rational{Num: n, Den: 1}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if f <= 0 {
		return Rational{}, fmt.Errorf("rational %q must be positive", s)
	}
	return Rational{Num: int(f*1000 + 0.5), Den: 1000}, nil
}

// DefaultFrameRate is used when neither configuration nor the source declares a rate.
var DefaultFrameRate = Rational{Num: 25000, Den: 1000}
