package middleware

import "regexp"

// Patterns ordered most specific first so long digit runs are masked as
// account numbers before the phone pattern can match inside them.
var (
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	ssnRe     = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	accountRe = regexp.MustCompile(`\b\d{12,19}\b`)
	phoneRe   = regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)
)

// PIIScrubber masks identifiers in the input before anything downstream
// can log or store them. The masked text is what reaches the cascade,
// session records, and request logs.
type PIIScrubber struct{}

// NewPIIScrubber creates a PII scrubbing middleware
func NewPIIScrubber() *PIIScrubber {
	return &PIIScrubber{}
}

// Name returns the middleware name
func (m *PIIScrubber) Name() string {
	return "PIIScrubber"
}

// Execute masks PII in the input and records how much was masked
func (m *PIIScrubber) Execute(ctx *Context, next Handler) error {
	scrubbed, count := Scrub(ctx.Input)
	ctx.Input = scrubbed
	if count > 0 && ctx.Metadata != nil {
		ctx.Metadata["pii_scrubbed"] = count
	}
	return next(ctx)
}

// Scrub masks emails, SSNs, account numbers, and phone numbers in text.
// It returns the masked text and the number of replacements made.
func Scrub(text string) (string, int) {
	count := 0
	replace := func(re *regexp.Regexp, placeholder string) {
		text = re.ReplaceAllStringFunc(text, func(string) string {
			count++
			return placeholder
		})
	}

	replace(emailRe, "[email]")
	replace(ssnRe, "[ssn]")
	replace(accountRe, "[account]")
	replace(phoneRe, "[phone]")

	return text, count
}
