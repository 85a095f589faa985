package transform

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajitpratap0/cura/pkg/codebook"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/frame"
	"github.com/ajitpratap0/cura/pkg/logger"
)

// Edit names
const (
	AppendColumn      = "append_column"
	ApplyCase         = "apply_case"
	ApplyCharReplace  = "apply_char_replace"
	ApplyPadding      = "apply_padding"
	ApplyTokenReplace = "apply_token_replace"
	ApplyTrim         = "apply_trim"
)

// cellFunc builds the per-cell function of an edit from its params
type cellFunc func(p Params) (func(string) string, error)

// cellEdit applies the same string function to domain cells, codebook
// codes or codebook labels
type cellEdit struct {
	name  string
	build cellFunc
}

func newCellEdit(name string, build cellFunc) cellEdit {
	return cellEdit{name: name, build: build}
}

func (e cellEdit) Name() string { return e.name }

func (e cellEdit) Validate(p Params) error {
	_, err := e.fn(p)
	return err
}

func (e cellEdit) fn(p Params) (func(string) string, error) {
	fn, err := e.build(p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid parameters for "+e.name).
			WithDetail("transform", e.name)
	}
	return fn, nil
}

func (e cellEdit) ApplyDomain(lf *frame.LazyFrame, column string, p Params) (*frame.LazyFrame, error) {
	fn, err := e.fn(p)
	if err != nil {
		return nil, err
	}
	return lf.MapColumn(column, fn), nil
}

func (e cellEdit) ApplyCodebook(v *codebook.Values, targetValues bool, p Params) (*codebook.Values, error) {
	fn, err := e.fn(p)
	if err != nil {
		return nil, err
	}
	if targetValues {
		out, _ := codebook.RebuildValues(v, func(code, label string) (string, string) {
			return code, fn(label)
		})
		return out, nil
	}
	out, collisions := codebook.RebuildValues(v, func(code, label string) (string, string) {
		return fn(code), label
	})
	if len(collisions) > 0 {
		logger.Get().Warn("edited codes collide, keeping the last label",
			zap.String("transform", e.name),
			zap.Strings("codes", collisions))
	}
	return out, nil
}

func caseFunc(p Params) (func(string) string, error) {
	mode, err := p.String(0, "case")
	if err != nil {
		return nil, err
	}
	switch mode {
	case "upper":
		return strings.ToUpper, nil
	case "lower":
		return strings.ToLower, nil
	case "title":
		c := cases.Title(language.Und)
		return func(s string) string { return c.String(s) }, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "case must be upper, lower or title, got %q", mode)
	}
}

func charReplaceFunc(p Params) (func(string) string, error) {
	pairs, err := p.Pairs(0, "char_replace")
	if err != nil {
		return nil, err
	}
	for _, pr := range pairs {
		if pr.From == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "empty cells must be edited with apply_token_replace")
		}
	}
	return func(s string) string {
		for _, pr := range pairs {
			s = strings.ReplaceAll(s, pr.From, pr.To)
		}
		return s
	}, nil
}

func paddingFunc(p Params) (func(string) string, error) {
	length, err := p.Int(0, "length")
	if err != nil {
		return nil, err
	}
	token, err := p.String(1, "token")
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "padding token must not be empty")
	}
	return func(s string) string {
		n := length - utf8.RuneCountInString(s)
		if n <= 0 {
			return s
		}
		return strings.Repeat(token, n) + s
	}, nil
}

func tokenReplaceFunc(p Params) (func(string) string, error) {
	pairs, err := p.Pairs(0, "token_replace")
	if err != nil {
		return nil, err
	}
	return func(s string) string {
		for _, pr := range pairs {
			if s == pr.From {
				s = pr.To
			}
		}
		return s
	}, nil
}

func trimFunc(Params) (func(string) string, error) {
	return func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}, nil
}

// appendColumn derives a new column from the first capture group of a
// regular expression applied to a source column. Cells without a match get
// an empty string. Codebooks have no rows, so it leaves them unchanged.
type appendColumn struct{}

func (appendColumn) Name() string { return AppendColumn }

func (appendColumn) parse(p Params) (string, *regexp.Regexp, error) {
	source, err := p.String(0, "source_column")
	if err != nil {
		return "", nil, err
	}
	pattern, err := p.String(1, "regex_pattern")
	if err != nil {
		return "", nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid regex_pattern").
			WithDetail("pattern", pattern)
	}
	if re.NumSubexp() < 1 {
		return "", nil, errors.New(errors.ErrorTypeConfig, "regex_pattern needs a capture group").
			WithDetail("pattern", pattern)
	}
	return source, re, nil
}

func (a appendColumn) Validate(p Params) error {
	_, _, err := a.parse(p)
	return err
}

func (a appendColumn) ApplyDomain(lf *frame.LazyFrame, column string, p Params) (*frame.LazyFrame, error) {
	source, re, err := a.parse(p)
	if err != nil {
		return nil, err
	}
	return lf.Derive(column, source, func(s string) string {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return ""
		}
		return m[1]
	}), nil
}

func (a appendColumn) ApplyCodebook(v *codebook.Values, _ bool, p Params) (*codebook.Values, error) {
	if err := a.Validate(p); err != nil {
		return nil, err
	}
	return v, nil
}
