// Package extract pulls sender entities out of raw email header text.
//
// DESIGN: Extraction is pure and deterministic - no I/O, no errors. A message
// that yields nothing produces an empty slice, and malformed header lines are
// skipped rather than reported.
//
// Grammar (kept deliberately conservative):
//   - Only user-role message content is scanned, line by line.
//   - A header line matches `^\s*From:` case-insensitively.
//   - The line must then contain either `Display Name <local@domain>` or a
//     bare `local@domain`; anything else is skipped.
//   - The domain is the substring after the last '@' and must be a full match
//     for `(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}`.
//   - The display name is trimmed of whitespace and single/double quotes; an
//     empty result yields no name entity.
package extract

import (
	"regexp"
	"strings"
)

// Kind classifies an extracted entity.
type Kind string

const (
	// KindDomain is the domain portion of a sender address.
	KindDomain Kind = "domain"
	// KindName is a sender display name.
	KindName Kind = "name"
)

// Entity is one identifying token pulled from a message.
type Entity struct {
	Kind  Kind
	Value string
}

// Message is the role/content pair the extractor scans.
type Message struct {
	Role    string
	Content string
}

var (
	// fromLineRe matches "From:" header lines in their two accepted shapes:
	// a display name followed by <addr>, or a bare addr.
	fromLineRe = regexp.MustCompile(`(?i)^\s*from:\s*(?:([^<]*?)\s*<([^<>\s]+@[^<>\s]+)>|([^<\s]+@[^>\s]+))`)

	// domainRe validates the domain portion of an address.
	domainRe = regexp.MustCompile(`^(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)
)

// Extractor pulls sender entities from chat messages.
type Extractor struct {
	maxDomains int
}

// NewExtractor creates an extractor capping domain entities at maxDomains.
func NewExtractor(maxDomains int) *Extractor {
	return &Extractor{maxDomains: maxDomains}
}

// Extract returns the ordered, de-duplicated entities found in messages.
// Duplicates keep their first-seen position. Domain entities are capped at
// the configured maximum; name entities are not.
func (e *Extractor) Extract(messages []Message) []Entity {
	var (
		entities []Entity
		seen     = map[Entity]bool{}
		domains  int
	)

	add := func(ent Entity) {
		if seen[ent] {
			return
		}
		if ent.Kind == KindDomain {
			if e.maxDomains > 0 && domains >= e.maxDomains {
				return
			}
			domains++
		}
		seen[ent] = true
		entities = append(entities, ent)
	}

	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		for _, line := range strings.Split(msg.Content, "\n") {
			name, addr, ok := parseFromLine(line)
			if !ok {
				continue
			}
			if domain := addressDomain(addr); domain != "" {
				add(Entity{Kind: KindDomain, Value: domain})
			}
			if name != "" {
				add(Entity{Kind: KindName, Value: name})
			}
		}
	}
	return entities
}

// parseFromLine matches one line against the From: grammar. The returned name
// is already cleaned; ok is false for non-header or malformed lines.
func parseFromLine(line string) (name, addr string, ok bool) {
	m := fromLineRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	if m[2] != "" {
		addr = m[2]
	} else {
		addr = m[3]
	}
	name = strings.TrimSpace(m[1])
	name = strings.Trim(name, `"'`)
	name = strings.TrimSpace(name)
	return name, addr, true
}

// addressDomain returns the validated domain portion of addr, or "".
func addressDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	domain := addr[at+1:]
	if !domainRe.MatchString(domain) {
		return ""
	}
	return domain
}
