package patterns

import "strings"

// WeightedLength measures text the way the platform does: CJK and other
// wide runes count double, everything else counts one.
func WeightedLength(text string) int {
	n := 0
	for _, r := range text {
		if isWide(r) {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Truncate cuts text to at most limit weighted units, preserving the prefix
// and appending an ellipsis when something was dropped.
func Truncate(text string, limit int) string {
	if limit <= 0 || WeightedLength(text) <= limit {
		return text
	}
	const ellipsis = "…" // weight 2
	budget := limit - 2
	if budget < 0 {
		budget = 0
	}
	var b strings.Builder
	used := 0
	for _, r := range text {
		w := 1
		if isWide(r) {
			w = 2
		}
		if used+w > budget {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String() + ellipsis
}

// isWide reports whether a rune renders double-width: CJK ideographs, kana,
// hangul, and fullwidth forms.
func isWide(r rune) bool {
	switch {
	case r >= 0x1100 && r <= 0x115F: // hangul jamo
		return true
	case r >= 0x2E80 && r <= 0x303E: // CJK radicals, punctuation
		return true
	case r >= 0x3041 && r <= 0x33FF: // kana, CJK compat
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK ext A
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // hangul syllables
		return true
	case r >= 0xF900 && r <= 0xFAFF: // CJK compat ideographs
		return true
	case r >= 0xFF00 && r <= 0xFF60: // fullwidth forms
		return true
	case r >= 0x20000 && r <= 0x2FA1F: // CJK ext B+
		return true
	}
	return false
}

// ContainsForbidden reports whether text contains a character the persona
// must never emit (Han ideographs and kana). A hit forces regeneration.
func ContainsForbidden(text string) bool {
	for _, r := range text {
		if isForbidden(r) {
			return true
		}
	}
	return false
}

func isForbidden(r rune) bool {
	switch {
	case r >= 0x3041 && r <= 0x30FF: // hiragana, katakana
		return true
	case r >= 0x31F0 && r <= 0x31FF: // katakana phonetic extensions
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK ext A
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified
		return true
	case r >= 0xF900 && r <= 0xFAFF: // CJK compat ideographs
		return true
	case r >= 0x20000 && r <= 0x2FA1F: // CJK ext B+
		return true
	}
	return false
}
