package timeline

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrParsePosition is matched by every ParseError.
var ErrParsePosition = errors.New("timeline: invalid position")

// ErrInvalidDuration is matched by every DurationError.
var ErrInvalidDuration = errors.New("timeline: invalid duration")

// DurationError reports a playback duration that is NaN or infinite.
type DurationError struct {
	Duration float64
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("Invalid effect duration %v", e.Duration)
}

func (e *DurationError) Is(target error) bool {
	return target == ErrInvalidDuration
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ParseError reports a position expression that matches none of the
// supported grammars.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Couldn't parse position argument %q", e.Input)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParsePosition
}

type positionKind uint8

const (
	positionAppend positionKind = iota
	positionAbsolute
	positionExpr
)

// Position locates an effect on a timeline. The zero value appends at the
// current end of the timeline.
type Position struct {
	kind positionKind
	at   float64
	expr string
}

// At places an effect at an absolute time in seconds.
func At(seconds float64) Position {
	return Position{kind: positionAbsolute, at: seconds}
}

// Expr places an effect using a position expression:
//
//	">+2", ">-0.5"  relative to the end of the timeline
//	"<", "<+0.5"    relative to the start of the latest effect
//	"^2", "^2->0.5" insert at 2, shifting later effects
func Expr(expr string) Position {
	return Position{kind: positionExpr, expr: expr}
}

func (p Position) String() string {
	switch p.kind {
	case positionAbsolute:
		return strconv.FormatFloat(p.at, 'f', -1, 64)
	case positionExpr:
		return p.expr
	default:
		return ">"
	}
}

const float = `(?:\d*\.?\d+|\d+\.?\d*)`

var (
	offsetRE = regexp.MustCompile(`^[+-]?` + float + `$`)
	insertRE = regexp.MustCompile(`^\^(` + float + `)?(->(` + float + `)?)?$`)
)

// resolved is a parsed position. shift is only meaningful when insert is set.
type resolved struct {
	at       float64
	insert   bool
	shift    float64
	hasShift bool
}

func (t *Timeline) resolve(p Position) (resolved, error) {
	switch p.kind {
	case positionAppend:
		return resolved{at: t.duration}, nil
	case positionAbsolute:
		if !finite(p.at) {
			return resolved{}, &ParseError{Input: p.String()}
		}
		return resolved{at: p.at}, nil
	}

	expr := strings.TrimSpace(p.expr)
	if expr == "" {
		return resolved{}, &ParseError{Input: p.expr}
	}
	switch expr[0] {
	case '>', '<':
		offset, err := parseOffset(expr[1:])
		if err != nil {
			return resolved{}, &ParseError{Input: p.expr}
		}
		ref := t.duration
		if expr[0] == '<' {
			ref = t.last
		}
		return resolved{at: ref + offset}, nil
	case '^':
		m := insertRE.FindStringSubmatch(expr)
		if m == nil {
			return resolved{}, &ParseError{Input: p.expr}
		}
		r := resolved{insert: true}
		var err error
		if m[1] != "" {
			if r.at, err = strconv.ParseFloat(m[1], 64); err != nil || !finite(r.at) {
				return resolved{}, &ParseError{Input: p.expr}
			}
		}
		if m[3] != "" {
			if r.shift, err = strconv.ParseFloat(m[3], 64); err != nil || !finite(r.shift) {
				return resolved{}, &ParseError{Input: p.expr}
			}
			r.hasShift = true
		} else if m[2] != "" {
			// "->" with no amount inserts without shifting.
			r.hasShift = true
		}
		return r, nil
	}
	return resolved{}, &ParseError{Input: p.expr}
}

func parseOffset(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !offsetRE.MatchString(s) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(s, 64)
}
