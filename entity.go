package epubtext

import (
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// DecodeEntities returns text with every recognized character entity
// reference expanded. Named references come from the XHTML entity sets;
// numeric references decode "&#NNN;" as decimal and "&#xHH;" as hexadecimal
// (lowercase x only). Anything unrecognized passes through unchanged rather
// than failing: an unknown name, bad digits, a value that is not a Unicode
// scalar value, or an "&" with no following ";".
//
// Text containing no "&" is returned as-is without copying. Decoding is a
// single left-to-right pass: output that happens to spell a new reference
// is not decoded again.
func DecodeEntities(text string) string {
	if strings.IndexByte(text, '&') < 0 {
		return text
	}

	table := entityTable()
	var buf strings.Builder
	buf.Grow(len(text))

	cursor := text
	for {
		i := strings.IndexByte(cursor, '&')
		if i < 0 {
			break
		}
		buf.WriteString(cursor[:i])
		cursor = cursor[i:]
		end := strings.IndexByte(cursor, ';')
		if end < 0 {
			// Unterminated reference. Keep the rest verbatim.
			break
		}
		ref := cursor[:end+1]
		if repl, ok := table[ref]; ok {
			buf.WriteString(repl)
		} else if r, ok := decodeNumeric(ref); ok {
			buf.WriteRune(r)
		} else {
			buf.WriteString(ref)
		}
		cursor = cursor[end+1:]
	}

	buf.WriteString(cursor)
	return buf.String()
}

// decodeNumeric decodes a numeric character reference, delimiters included.
// It reports false for anything that does not parse cleanly to a valid
// Unicode scalar value; the caller keeps those as literal text.
func decodeNumeric(ref string) (rune, bool) {
	if len(ref) < 3 || ref[1] != '#' {
		return 0, false
	}
	digits := ref[2 : len(ref)-1]
	base := 10
	if strings.HasPrefix(digits, "x") {
		digits = digits[1:]
		base = 16
	}
	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, false
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return 0, false
	}
	return r, true
}

// entityTable returns the process-wide reference table, keyed by the full
// reference including its "&" and ";" delimiters. It is built once on first
// use and never mutated afterwards, so concurrent readers need no locking.
var entityTable = sync.OnceValue(func() map[string]string {
	m := make(map[string]string, len(entityRunes))
	for name, r := range entityRunes {
		m["&"+name+";"] = string(r)
	}
	return m
})

// entityRunes holds the named character references of the XHTML entity sets
// (Latin-1, special, and symbol blocks), which is the vocabulary e-book
// content documents draw from. Names are case-sensitive, as in the DTDs.
var entityRunes = map[string]rune{
	// Latin-1 characters.
	"nbsp": ' ', "iexcl": '¡', "cent": '¢', "pound": '£',
	"curren": '¤', "yen": '¥', "brvbar": '¦', "sect": '§',
	"uml": '¨', "copy": '©', "ordf": 'ª', "laquo": '«',
	"not": '¬', "shy": '­', "reg": '®', "macr": '¯',
	"deg": '°', "plusmn": '±', "sup2": '²', "sup3": '³',
	"acute": '´', "micro": 'µ', "para": '¶', "middot": '·',
	"cedil": '¸', "sup1": '¹', "ordm": 'º', "raquo": '»',
	"frac14": '¼', "frac12": '½', "frac34": '¾', "iquest": '¿',
	"Agrave": 'À', "Aacute": 'Á', "Acirc": 'Â', "Atilde": 'Ã',
	"Auml": 'Ä', "Aring": 'Å', "AElig": 'Æ', "Ccedil": 'Ç',
	"Egrave": 'È', "Eacute": 'É', "Ecirc": 'Ê', "Euml": 'Ë',
	"Igrave": 'Ì', "Iacute": 'Í', "Icirc": 'Î', "Iuml": 'Ï',
	"ETH": 'Ð', "Ntilde": 'Ñ', "Ograve": 'Ò', "Oacute": 'Ó',
	"Ocirc": 'Ô', "Otilde": 'Õ', "Ouml": 'Ö', "times": '×',
	"Oslash": 'Ø', "Ugrave": 'Ù', "Uacute": 'Ú', "Ucirc": 'Û',
	"Uuml": 'Ü', "Yacute": 'Ý', "THORN": 'Þ', "szlig": 'ß',
	"agrave": 'à', "aacute": 'á', "acirc": 'â', "atilde": 'ã',
	"auml": 'ä', "aring": 'å', "aelig": 'æ', "ccedil": 'ç',
	"egrave": 'è', "eacute": 'é', "ecirc": 'ê', "euml": 'ë',
	"igrave": 'ì', "iacute": 'í', "icirc": 'î', "iuml": 'ï',
	"eth": 'ð', "ntilde": 'ñ', "ograve": 'ò', "oacute": 'ó',
	"ocirc": 'ô', "otilde": 'õ', "ouml": 'ö', "divide": '÷',
	"oslash": 'ø', "ugrave": 'ù', "uacute": 'ú', "ucirc": 'û',
	"uuml": 'ü', "yacute": 'ý', "thorn": 'þ', "yuml": 'ÿ',

	// Special characters.
	"quot": '"', "amp": '&', "lt": '<', "gt": '>',
	"apos": '\'', "OElig": 'Œ', "oelig": 'œ', "Scaron": 'Š',
	"scaron": 'š', "Yuml": 'Ÿ', "circ": 'ˆ', "tilde": '˜',
	"ensp": ' ', "emsp": ' ', "thinsp": ' ', "zwnj": '‌',
	"zwj": '‍', "lrm": '‎', "rlm": '‏', "ndash": '–',
	"mdash": '—', "lsquo": '‘', "rsquo": '’', "sbquo": '‚',
	"ldquo": '“', "rdquo": '”', "bdquo": '„', "dagger": '†',
	"Dagger": '‡', "permil": '‰', "lsaquo": '‹', "rsaquo": '›',
	"euro": '€',

	// Symbols, Greek letters, and mathematical operators.
	"fnof": 'ƒ', "Alpha": 'Α', "Beta": 'Β', "Gamma": 'Γ',
	"Delta": 'Δ', "Epsilon": 'Ε', "Zeta": 'Ζ', "Eta": 'Η',
	"Theta": 'Θ', "Iota": 'Ι', "Kappa": 'Κ', "Lambda": 'Λ',
	"Mu": 'Μ', "Nu": 'Ν', "Xi": 'Ξ', "Omicron": 'Ο',
	"Pi": 'Π', "Rho": 'Ρ', "Sigma": 'Σ', "Tau": 'Τ',
	"Upsilon": 'Υ', "Phi": 'Φ', "Chi": 'Χ', "Psi": 'Ψ',
	"Omega": 'Ω', "alpha": 'α', "beta": 'β', "gamma": 'γ',
	"delta": 'δ', "epsilon": 'ε', "zeta": 'ζ', "eta": 'η',
	"theta": 'θ', "iota": 'ι', "kappa": 'κ', "lambda": 'λ',
	"mu": 'μ', "nu": 'ν', "xi": 'ξ', "omicron": 'ο',
	"pi": 'π', "rho": 'ρ', "sigmaf": 'ς', "sigma": 'σ',
	"tau": 'τ', "upsilon": 'υ', "phi": 'φ', "chi": 'χ',
	"psi": 'ψ', "omega": 'ω', "thetasym": 'ϑ', "upsih": 'ϒ',
	"piv": 'ϖ', "bull": '•', "hellip": '…', "prime": '′',
	"Prime": '″', "oline": '‾', "frasl": '⁄', "weierp": '℘',
	"image": 'ℑ', "real": 'ℜ', "trade": '™', "alefsym": 'ℵ',
	"larr": '←', "uarr": '↑', "rarr": '→', "darr": '↓',
	"harr": '↔', "crarr": '↵', "lArr": '⇐', "uArr": '⇑',
	"rArr": '⇒', "dArr": '⇓', "hArr": '⇔', "forall": '∀',
	"part": '∂', "exist": '∃', "empty": '∅', "nabla": '∇',
	"isin": '∈', "notin": '∉', "ni": '∋', "prod": '∏',
	"sum": '∑', "minus": '−', "lowast": '∗', "radic": '√',
	"prop": '∝', "infin": '∞', "ang": '∠', "and": '∧',
	"or": '∨', "cap": '∩', "cup": '∪', "int": '∫',
	"there4": '∴', "sim": '∼', "cong": '≅', "asymp": '≈',
	"ne": '≠', "equiv": '≡', "le": '≤', "ge": '≥',
	"sub": '⊂', "sup": '⊃', "nsub": '⊄', "sube": '⊆',
	"supe": '⊇', "oplus": '⊕', "otimes": '⊗', "perp": '⊥',
	"sdot": '⋅', "lceil": '⌈', "rceil": '⌉', "lfloor": '⌊',
	"rfloor": '⌋', "lang": '〈', "rang": '〉', "loz": '◊',
	"spades": '♠', "clubs": '♣', "hearts": '♥', "diams": '♦',
}
