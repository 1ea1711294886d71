package voice

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind tells how a number word combines with the words before it.
type Kind int

const (
	// Additive words add their value to the accumulator.
	Additive Kind = iota
	// Multiplier words multiply the accumulator (1 when empty) and add the
	// product to the running total.
	Multiplier
)

// Word is one vocabulary entry.
type Word struct {
	Value int64
	Kind  Kind
}

// Vocabulary maps spoken number words to values. Keys are matched after
// normalisation, so spelling variants that differ only in case, diacritics
// or hamza need a single entry.
type Vocabulary map[string]Word

// DefaultVocabulary returns the Arabic and English number words.
func DefaultVocabulary() Vocabulary {
	v := Vocabulary{}
	add := func(kind Kind, value int64, words ...string) {
		for _, w := range words {
			v[w] = Word{Value: value, Kind: kind}
		}
	}

	add(Additive, 0, "zero", "صفر")
	add(Additive, 1, "one", "واحد", "واحده")
	add(Additive, 2, "two", "اثنين", "اثنان", "ثنين")
	add(Additive, 3, "three", "ثلاثة", "ثلاث", "تلاتة")
	add(Additive, 4, "four", "أربعة", "اربع")
	add(Additive, 5, "five", "خمسة", "خمس")
	add(Additive, 6, "six", "ستة", "ست")
	add(Additive, 7, "seven", "سبعة", "سبع")
	add(Additive, 8, "eight", "ثمانية", "ثمان")
	add(Additive, 9, "nine", "تسعة", "تسع")
	add(Additive, 10, "ten", "عشرة", "عشر")
	add(Additive, 11, "eleven", "أحد عشر")
	add(Additive, 12, "twelve")
	add(Additive, 15, "fifteen")
	add(Additive, 20, "twenty", "عشرين", "عشرون")
	add(Additive, 30, "thirty", "ثلاثين", "ثلاثون")
	add(Additive, 40, "forty", "أربعين", "أربعون")
	add(Additive, 50, "fifty", "خمسين", "خمسون")
	add(Additive, 60, "sixty", "ستين", "ستون")
	add(Additive, 70, "seventy", "سبعين", "سبعون")
	add(Additive, 80, "eighty", "ثمانين", "ثمانون")
	add(Additive, 90, "ninety", "تسعين", "تسعون")

	// Dual forms already carry their count, so they add like a plain number
	// and can still be scaled by a following multiplier ("مئتين ألف").
	add(Additive, 200, "مئتين", "ميتين", "مائتين")
	add(Additive, 2000, "ألفين")

	add(Multiplier, 100, "hundred", "مية", "مئة", "مائة", "ميه")
	add(Multiplier, 1000, "thousand", "ألف", "آلاف", "الاف")
	return v
}

// fillers are skipped while decoding.
var fillers = map[string]bool{
	"and": true,
	"a":   true,
	"و":   true,
}

// normalize folds case, drops diacritics and tatweel, unifies hamza forms
// of alef, waw and yeh, and maps teh marbuta and alef maqsura to heh and yeh.
func normalize(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			switch r {
			case 'ة':
				return 'ه'
			case 'ى':
				return 'ي'
			case 'ـ':
				return -1
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(strings.TrimSpace(out))
}

// normalized returns a copy of v keyed by normalised words.
func (v Vocabulary) normalized() Vocabulary {
	out := make(Vocabulary, len(v))
	for w, entry := range v {
		out[normalize(w)] = entry
	}
	return out
}

// lookup resolves one normalised word, accepting a leading Arabic "و"
// conjunction glued to a number word.
func (v Vocabulary) lookup(word string) (Word, bool) {
	if entry, ok := v[word]; ok {
		return entry, true
	}
	if rest, ok := strings.CutPrefix(word, "و"); ok && rest != "" {
		entry, ok := v[rest]
		return entry, ok
	}
	return Word{}, false
}

// decode turns normalised number words into an amount. Unknown words make
// the whole amount zero. Multi-word entries are matched greedily.
func (v Vocabulary) decode(words []string) decimal.Decimal {
	var total, acc int64
	seen := false
	for i := 0; i < len(words); i++ {
		w := words[i]
		if fillers[w] {
			continue
		}
		entry, ok := Word{}, false
		if i+1 < len(words) {
			if entry, ok = v[w+" "+words[i+1]]; ok {
				i++
			}
		}
		if !ok {
			entry, ok = v.lookup(w)
		}
		if !ok {
			return decimal.Zero
		}
		seen = true

		switch entry.Kind {
		case Additive:
			acc += entry.Value
		case Multiplier:
			base := acc
			if base == 0 {
				base = 1
			}
			total += base * entry.Value
			acc = 0
		}
	}
	if !seen {
		return decimal.Zero
	}
	return decimal.NewFromInt(total + acc)
}

// arabicDigits maps Arabic-Indic and extended Arabic-Indic digits and
// separators to ASCII.
var arabicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٫", ".", "٬", "", ",", "",
)

// digitsAmount parses the first run of digits in s. ok is false when s has
// no digits at all.
func digitsAmount(s string) (amount decimal.Decimal, ok bool) {
	s = arabicDigits.Replace(s)
	begin := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if begin < 0 {
		return decimal.Zero, false
	}
	end := begin
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	d, err := decimal.NewFromString(strings.TrimRight(s[begin:end], "."))
	if err != nil {
		return decimal.Zero, true
	}
	return d, true
}
