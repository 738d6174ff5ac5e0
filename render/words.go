package render

import "strings"

var ones = [...]string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tens = [...]string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

// NumberToWords spells n using the Indian numbering system (Thousand, Lakh,
// Crore). Crore groups recurse, so 10^9 is "One Hundred Crore".
func NumberToWords(n int64) string {
	if n == 0 {
		return "Zero"
	}
	if n < 0 {
		// -n overflows for MinInt64; spell it through uint64.
		return "Minus " + spell(uint64(-(n+1))+1)
	}
	return spell(uint64(n))
}

// AmountInWords spells the whole-rupee part of amount.
func AmountInWords(amount float64) string {
	return NumberToWords(int64(amount))
}

func spell(n uint64) string {
	var b strings.Builder
	writeWords(&b, n)
	return b.String()
}

func writeWords(b *strings.Builder, n uint64) {
	switch {
	case n < 20:
		b.WriteString(ones[n])
	case n < 100:
		b.WriteString(tens[n/10])
		if n%10 > 0 {
			b.WriteByte(' ')
			b.WriteString(ones[n%10])
		}
	case n < 1000:
		b.WriteString(ones[n/100])
		b.WriteString(" Hundred")
		writeRemainder(b, n%100)
	case n < 100_000:
		writeWords(b, n/1000)
		b.WriteString(" Thousand")
		writeRemainder(b, n%1000)
	case n < 10_000_000:
		writeWords(b, n/100_000)
		b.WriteString(" Lakh")
		writeRemainder(b, n%100_000)
	default:
		writeWords(b, n/10_000_000)
		b.WriteString(" Crore")
		writeRemainder(b, n%10_000_000)
	}
}

func writeRemainder(b *strings.Builder, rem uint64) {
	if rem > 0 {
		b.WriteByte(' ')
		writeWords(b, rem)
	}
}
