package emailcrawl

import (
	"regexp"
	"strings"
)

var (
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	mailtoRe = regexp.MustCompile(`(?i)mailto:([^"'?\s<>]+)`)
	digitsRe = regexp.MustCompile(`^[0-9.]+$`)
)

// Obfuscated spellings like "info (at) pearl (dot) com" are folded back to
// address form, surrounding whitespace included, before the regex pass.
var (
	obfsAtRe  = regexp.MustCompile(`(?i)\s*[(\[{]\s*at\s*[)\]}]\s*`)
	obfsDotRe = regexp.MustCompile(`(?i)\s*[(\[{]\s*dot\s*[)\]}]\s*`)
)

// artifactSuffixes are "emails" the regex finds inside asset paths and
// bundled javascript.
var artifactSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
	".js", ".css", ".min", ".map", ".woff", ".woff2",
}

// artifactDomains host addresses that are never a real contact.
var artifactDomains = []string{
	"example.com", "example.org", "domain.com", "email.com",
	"sentry.io", "wixpress.com", "sentry.wixpress.com", "sentry-next.wixpress.com",
}

var artifactLocalParts = []string{
	"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply",
	"mailer-daemon", "postmaster", "abuse", "spam",
}

// Extract pulls every plausible email address out of a page: plain text
// matches, mailto links and common obfuscated spellings. Results are
// lowercased and deduplicated, artifacts dropped.
func Extract(body string) []string {
	text := body
	lower := strings.ToLower(text)
	lower = obfsAtRe.ReplaceAllString(lower, "@")
	lower = obfsDotRe.ReplaceAllString(lower, ".")

	seen := make(map[string]bool)
	var out []string
	add := func(raw string) {
		e := strings.ToLower(strings.Trim(raw, ".,;:"))
		if seen[e] || !valid(e) {
			return
		}
		seen[e] = true
		out = append(out, e)
	}

	for _, m := range mailtoRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range emailRe.FindAllString(lower, -1) {
		add(m)
	}
	return out
}

// valid rejects extraction artifacts and service addresses.
func valid(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	local, domain := email[:at], email[at+1:]

	if !emailRe.MatchString(email) || strings.Count(email, "@") != 1 {
		return false
	}
	for _, suf := range artifactSuffixes {
		if strings.HasSuffix(domain, suf) {
			return false
		}
	}
	for _, d := range artifactDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return false
		}
	}
	for _, lp := range artifactLocalParts {
		if local == lp || strings.HasPrefix(local, lp+".") || strings.HasPrefix(local, lp+"+") {
			return false
		}
	}
	if digitsRe.MatchString(local) {
		return false
	}
	if len(local) > 64 || len(domain) > 255 {
		return false
	}
	return true
}

// preferredLocalParts are role addresses a lodging business actually
// answers, ranked above personal mailboxes.
var preferredLocalParts = []string{
	"info", "contact", "iletisim", "rezervasyon", "reservation",
	"reservations", "booking", "sales", "hello", "office",
}

var genericProviders = []string{
	"gmail.com", "hotmail.com", "outlook.com", "yahoo.com",
	"yandex.com", "mynet.com", "icloud.com",
}

// score ranks an extracted email for the site it was found on. Same-domain
// addresses dominate; preferred role prefixes come next; addresses at
// free-mail providers rank below everything else.
func score(email, siteDomain string, onContactPage bool) int {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return 0
	}
	local, domain := email[:at], email[at+1:]

	var s int
	if siteDomain != "" && (domain == siteDomain || strings.HasSuffix(domain, "."+siteDomain)) {
		s += 50
	}
	for _, p := range preferredLocalParts {
		if local == p || strings.HasPrefix(local, p+".") {
			s += 40
			break
		}
	}
	for _, g := range genericProviders {
		if domain == g {
			s -= 20
			break
		}
	}
	if onContactPage {
		s += 15
	}
	return s
}
