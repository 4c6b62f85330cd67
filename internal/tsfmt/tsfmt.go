// Package tsfmt implements the two leaf primitives the rest of the pipeline
// builds on: nanosecond-to-ISO8601-microsecond timestamp formatting, and
// byte-wise string escaping for structured record output (spec section 4.B).
package tsfmt

import "strings"

const nsPerUs = int64(1000)
const usPerSec = int64(1_000_000)

// FormatTimestamp renders nanoseconds since the Unix epoch as
// YYYY-MM-DDTHH:MM:SS.µµµµµµZ in UTC. Truncation from nanoseconds to
// microseconds is by integer division, never rounding, so the function is
// monotone and idempotent across equal inputs.
func FormatTimestamp(nanoseconds int64) string {
	totalUs := nanoseconds / nsPerUs
	sec := totalUs / usPerSec
	us := totalUs % usPerSec
	if us < 0 {
		us += usPerSec
		sec--
	}

	year, month, day, hour, min, second := civilFromUnix(sec)

	var b strings.Builder
	b.Grow(27)
	writePad(&b, year, 4)
	b.WriteByte('-')
	writePad(&b, month, 2)
	b.WriteByte('-')
	writePad(&b, day, 2)
	b.WriteByte('T')
	writePad(&b, hour, 2)
	b.WriteByte(':')
	writePad(&b, min, 2)
	b.WriteByte(':')
	writePad(&b, second, 2)
	b.WriteByte('.')
	writePad(&b, int(us), 6)
	b.WriteByte('Z')
	return b.String()
}

func writePad(b *strings.Builder, v int, width int) {
	s := itoa(v)
	for i := len(s); i < width; i++ {
		b.WriteByte('0')
	}
	b.WriteString(s)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// civilFromUnix converts a Unix second count (may be negative) into a civil
// calendar date and time of day, using Howard Hinnant's civil_from_days
// algorithm so the conversion is allocation-free and branch-light.
func civilFromUnix(sec int64) (year, month, day, hour, min, second int) {
	days := sec / 86400
	rem := sec % 86400
	if rem < 0 {
		rem += 86400
		days--
	}
	hour = int(rem / 3600)
	min = int((rem % 3600) / 60)
	second = int(rem % 60)

	z := days + 719468
	era := z
	if z < 0 {
		era = z - 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	var m int64
	if mp < 10 {
		m = mp + 3
	} else {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d), hour, min, second
}

// Escape produces a string safe for embedding in a double-quoted structured
// record field: the eight standard JSON escapes (\" \\ \/ \b \f \n \r \t),
// plus any other byte below 0x20 as
// a lowercase \u00XX sequence. It operates byte-wise; input validity as
// UTF-8 is the producer's responsibility (spec section 4.B). The worst case
// blows input up 6x (every byte becomes \u00XX), so callers that pre-size
// buffers should budget for that.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '/':
			b.WriteString(`\/`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigit(c >> 4))
				b.WriteByte(hexDigit(c & 0xf))
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + (n - 10)
}
