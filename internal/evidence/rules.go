package evidence

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/insurance-validator/constants"
)

// Rule checks a value against the snippet the model claims to have read.
// It returns the value to keep and whether the field survives.
type Rule func(value, evidence string) (string, bool)

// Registry maps fields to their evidence rule. Fields without a rule use
// the fallback.
type Registry struct {
	mu       sync.RWMutex
	rules    map[constants.FieldName]Rule
	fallback Rule
}

var reYear = regexp.MustCompile(`(19|20)\d{2}`)

// DefaultRegistry returns the stock rules for the closed field set.
func DefaultRegistry() *Registry {
	r := &Registry{
		rules:    make(map[constants.FieldName]Rule),
		fallback: MinLength(3),
	}
	r.Register(constants.FieldCPF, DigitCount(11, 11))
	r.Register(constants.FieldChassi, AlnumCount(11, 20))
	r.Register(constants.FieldAno, Matches(reYear))
	r.Register(constants.FieldEmail, Contains("@"))
	r.Register(constants.FieldTelefone, HasDigit())
	r.Register(constants.FieldPlaca, HasDigit())
	return r
}

// Register sets or replaces the rule for name.
func (r *Registry) Register(name constants.FieldName, rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[name] = rule
}

// SetFallback replaces the rule used for fields without one.
func (r *Registry) SetFallback(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = rule
}

// Rule returns the rule applied to name.
func (r *Registry) Rule(name constants.FieldName) Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rule, ok := r.rules[name]; ok {
		return rule
	}
	return r.fallback
}

// Validate applies the rule for name. Blank evidence never passes.
func (r *Registry) Validate(name constants.FieldName, value, evidence string) (string, bool) {
	if strings.TrimSpace(value) == "" || strings.TrimSpace(evidence) == "" {
		return "", false
	}
	return r.Rule(name)(value, evidence)
}

func count(s string, keep func(rune) bool) int {
	n := 0
	for _, c := range s {
		if keep(c) {
			n++
		}
	}
	return n
}

func isASCIIAlnum(c rune) bool {
	return c < utf8.RuneSelf && (unicode.IsLetter(c) || unicode.IsDigit(c))
}

// DigitCount passes when the evidence holds between lo and hi ASCII digits.
func DigitCount(lo, hi int) Rule {
	return func(value, evidence string) (string, bool) {
		n := count(evidence, func(c rune) bool { return c >= '0' && c <= '9' })
		return value, n >= lo && n <= hi
	}
}

// AlnumCount passes when the evidence, stripped of everything but ASCII
// letters and digits, has a length between lo and hi.
func AlnumCount(lo, hi int) Rule {
	return func(value, evidence string) (string, bool) {
		n := count(evidence, isASCIIAlnum)
		return value, n >= lo && n <= hi
	}
}

// Matches passes when re finds a match in the evidence.
func Matches(re *regexp.Regexp) Rule {
	return func(value, evidence string) (string, bool) {
		return value, re.MatchString(evidence)
	}
}

// Contains passes when the evidence contains sub.
func Contains(sub string) Rule {
	return func(value, evidence string) (string, bool) {
		return value, strings.Contains(evidence, sub)
	}
}

// HasDigit passes when the evidence has at least one ASCII digit.
func HasDigit() Rule {
	return DigitCount(1, int(^uint(0)>>1))
}

// MinLength passes when the trimmed evidence has at least n characters.
func MinLength(n int) Rule {
	return func(value, evidence string) (string, bool) {
		return value, utf8.RuneCountInString(strings.TrimSpace(evidence)) >= n
	}
}
