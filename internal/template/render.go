// Package template renders campaign message templates. Rendering runs in
// two phases, in this order: spintax variant groups ({Hi|Hello}) are
// resolved by uniform random selection, then {{field}} placeholders are
// substituted case-insensitively from the recipient's row. Variant
// resolution runs first so placeholders inside a chosen variant are still
// substituted.
package template

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

// variantRe matches a maximal non-nested brace span whose interior
// contains at least one | separator. A brace group without a | is
// ordinary literal text, braces included.
var variantRe = regexp.MustCompile(`\{[^{}]+\|[^{}]+\}`)

// Renderer resolves spintax and substitutes fields. The random source is
// injectable so tests can pin variant selection.
type Renderer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Renderer seeded from the wall clock.
func New() *Renderer {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource returns a Renderer drawing variant selections from src.
func NewWithSource(src rand.Source) *Renderer {
	return &Renderer{rng: rand.New(src)}
}

// Render produces the message body for one recipient. Keys in fields are
// matched case-insensitively against {{key}} placeholders; placeholders
// with no matching key are left as literal text. Re-rendering the same
// template may yield different output when it contains variant groups.
func (r *Renderer) Render(tpl string, fields map[string]string) string {
	msg := r.resolveVariants(tpl)

	for key, value := range fields {
		re, err := regexp.Compile(`(?i)\{\{` + regexp.QuoteMeta(key) + `\}\}`)
		if err != nil {
			continue
		}
		msg = re.ReplaceAllLiteralString(msg, value)
	}
	return msg
}

func (r *Renderer) resolveVariants(tpl string) string {
	return variantRe.ReplaceAllStringFunc(tpl, func(span string) string {
		options := strings.Split(span[1:len(span)-1], "|")
		r.mu.Lock()
		pick := r.rng.Intn(len(options))
		r.mu.Unlock()
		return options[pick]
	})
}
