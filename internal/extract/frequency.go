package extract

import (
	"regexp"
	"strings"
)

// Frequency maps a dosing frequency phrase to default clock times.
type Frequency struct {
	Phrase string
	Times  []string
	re     *regexp.Regexp
}

// Frequencies is matched in order. Each entry claims the text it matches,
// so more specific phrases come before "once daily" and "twice daily" is
// never also read as "daily".
var Frequencies = []Frequency{
	freq("four times daily", `four times (a|per|each) day|four times daily|4 times (a|per|each) day|4 times daily|\bq\.?i\.?d\b`,
		"08:00", "12:00", "16:00", "20:00"),
	freq("three times daily", `three times (a|per|each) day|three times daily|3 times (a|per|each) day|3 times daily|\bt\.?i\.?d\b`,
		"08:00", "14:00", "20:00"),
	freq("every 8 hours", `every (8|eight) hours|\bq8h\b`,
		"06:00", "14:00", "22:00"),
	freq("every 6 hours", `every (6|six) hours|\bq6h\b`,
		"06:00", "12:00", "18:00", "00:00"),
	freq("twice daily", `twice (a|per|each) day|twice daily|two times (a|per|each) day|2 times (a|per|each) day|2 times daily|every (12|twelve) hours|\bb\.?i\.?d\b|\bq12h\b`,
		"09:00", "21:00"),
	freq("at bedtime", `(at|before) bedtime|at night|before (sleep|bed)|\bq\.?h\.?s\b`,
		"22:00"),
	freq("every morning", `every morning|in the morning|each morning`,
		"08:00"),
	freq("once daily", `once (a|per|each) day|once daily|one time (a|per|each) day|every day|\bdaily\b|every 24 hours|\bq\.?d\b`,
		"09:00"),
}

func freq(phrase, pattern string, times ...string) Frequency {
	return Frequency{Phrase: phrase, Times: times, re: regexp.MustCompile(`(?i)` + pattern)}
}

var clockTimeRe = regexp.MustCompile(`(?i)\b([01]?\d|2[0-3]):[0-5]\d\b|\b(1[0-2]|0?[1-9])\s*(a\.?m\.?|p\.?m\.?)(\s|$|[,.;])|\bnoon\b|\bmidnight\b`)

// otherDosingRe finds dosing clauses the table cannot express: a second
// dose, an unlisted interval or a daily limit.
var otherDosingRe = regexp.MustCompile(`(?i)\b(and|then|plus|followed by|alternating|alternate)\b|` +
	`\bnot\s+(to\s+)?exceed\b|\bno more than\b|\bup to\b|\bmaximum\b|\bmax\b|` +
	`\bevery\s+(\d+|other|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\b|\bq\d+h\b|` +
	`\btimes\b|\bweekly\b|\bmonthly\b`)

// matchedFrequencies returns the table entries named in text and the text
// with their phrases blanked out.
func matchedFrequencies(text string) ([]Frequency, string) {
	rest := []byte(text)
	var found []Frequency
	for _, f := range Frequencies {
		locs := f.re.FindAllIndex(rest, -1)
		if len(locs) == 0 {
			continue
		}
		found = append(found, f)
		for _, loc := range locs {
			for i := loc[0]; i < loc[1]; i++ {
				rest[i] = ' '
			}
		}
	}
	return found, string(rest)
}

// HasClockTime reports whether text names an explicit time of day.
func HasClockTime(text string) bool {
	return clockTimeRe.MatchString(text)
}

// DefaultTimes returns the table times for text when a single known
// frequency is the only schedule it states. Texts with clock times,
// several frequencies or any other dosing clause report false so the
// model's times are kept.
func DefaultTimes(text string) ([]string, bool) {
	if HasClockTime(text) {
		return nil, false
	}
	found, rest := matchedFrequencies(text)
	if len(found) != 1 || otherDosingRe.MatchString(rest) {
		return nil, false
	}
	return append([]string(nil), found[0].Times...), true
}

// frequencyRules renders the table for the prompt.
func frequencyRules() string {
	var sb strings.Builder
	for _, f := range Frequencies {
		sb.WriteString("- \"")
		sb.WriteString(f.Phrase)
		sb.WriteString("\" -> ")
		sb.WriteString(strings.Join(f.Times, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}
