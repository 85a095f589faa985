package transform

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ajitpratap0/cura/pkg/errors"
)

// Params are the positional arguments of one edit, as written in the
// project configuration. Values come from YAML or JSON decoding.
type Params []interface{}

// Pair is a from/to replacement
type Pair struct {
	From string
	To   string
}

func paramError(i int, name, want string, got interface{}) error {
	return errors.Newf(errors.ErrorTypeConfig, "parameter %d (%s) must be %s, got %T", i, name, want, got).
		WithDetail("parameter", name)
}

// Len returns the number of parameters
func (p Params) Len() int { return len(p) }

// String returns parameter i as text. Numbers are accepted and formatted.
func (p Params) String(i int, name string) (string, error) {
	if i >= len(p) {
		return "", errors.Newf(errors.ErrorTypeConfig, "missing parameter %d (%s)", i, name)
	}
	switch v := p[i].(type) {
	case string:
		return v, nil
	case int, int64, uint64:
		return fmt.Sprint(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", paramError(i, name, "a string", p[i])
	}
}

// Int returns parameter i as an integer. Numeric strings are accepted.
func (p Params) Int(i int, name string) (int, error) {
	if i >= len(p) {
		return 0, errors.Newf(errors.ErrorTypeConfig, "missing parameter %d (%s)", i, name)
	}
	switch v := p[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, paramError(i, name, "a whole number", p[i])
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, paramError(i, name, "an integer", p[i])
		}
		return n, nil
	default:
		return 0, paramError(i, name, "an integer", p[i])
	}
}

// Pairs returns parameter i as a list of [from, to] pairs
func (p Params) Pairs(i int, name string) ([]Pair, error) {
	if i >= len(p) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "missing parameter %d (%s)", i, name)
	}
	list, ok := p[i].([]interface{})
	if !ok || len(list) == 0 {
		return nil, paramError(i, name, "a non-empty list of [from, to] pairs", p[i])
	}
	pairs := make([]Pair, 0, len(list))
	for _, item := range list {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, paramError(i, name, "a list of [from, to] pairs", item)
		}
		sub := Params(pair)
		from, err := sub.String(0, name+".from")
		if err != nil {
			return nil, err
		}
		to, err := sub.String(1, name+".to")
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{From: from, To: to})
	}
	return pairs, nil
}
