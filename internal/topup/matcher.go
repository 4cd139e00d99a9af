package topup

import (
	"strings"
	"unicode"

	errors "github.com/thaiGO2003/DigiGO-sub000/internal"
)

// NormalizeMemo uppercases the bank memo text and strips all whitespace, so
// gateway-mangled free text still contains the memo code verbatim.
func NormalizeMemo(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// MatchPending finds the unique pending top-up a notification memo satisfies.
// Two passes: exact equality first, then substring containment (gateways
// prepend and append their own text around the memo). Anything other than
// exactly one candidate is refused; silently crediting the wrong user is the
// one failure this subsystem must never allow.
func MatchPending(candidates []*Topup, memoText string) (*Topup, *errors.AppError) {
	normalized := NormalizeMemo(memoText)
	if normalized == "" {
		return nil, errors.ErrNoMatch
	}

	var exact []*Topup
	for _, t := range candidates {
		if t.MemoCode == normalized {
			exact = append(exact, t)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	if len(exact) > 1 {
		return nil, errors.ErrAmbiguousMatch
	}

	var contained []*Topup
	for _, t := range candidates {
		if t.MemoCode != "" && strings.Contains(normalized, t.MemoCode) {
			contained = append(contained, t)
		}
	}
	contained = dropShadowedMatches(normalized, contained)
	switch len(contained) {
	case 0:
		return nil, errors.ErrNoMatch
	case 1:
		return contained[0], nil
	default:
		return nil, errors.ErrAmbiguousMatch
	}
}

// dropShadowedMatches removes candidates whose code only appears inside the
// occurrence of a longer candidate code. Given pending codes "AB12" and
// "AB123", a memo carrying "AB123" satisfies only the longer one; "AB12" is
// a shadow. A memo carrying both standalone keeps both and stays ambiguous.
func dropShadowedMatches(normalized string, contained []*Topup) []*Topup {
	if len(contained) < 2 {
		return contained
	}
	genuine := make([]*Topup, 0, len(contained))
	for _, t := range contained {
		reduced := normalized
		for _, other := range contained {
			if other == t || len(other.MemoCode) <= len(t.MemoCode) {
				continue
			}
			if strings.Contains(other.MemoCode, t.MemoCode) {
				reduced = strings.ReplaceAll(reduced, other.MemoCode, "")
			}
		}
		if strings.Contains(reduced, t.MemoCode) {
			genuine = append(genuine, t)
		}
	}
	return genuine
}
