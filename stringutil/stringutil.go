package stringutil

const ShortenLogLength = 16

// ShortenLog keeps the head and tail of a hash or wallet address for log lines.
// It counts runes so a multi-byte address is never split inside a character.
func ShortenLog(s string) string {
	runes := []rune(s)
	if len(runes) <= ShortenLogLength {
		return s
	}
	half := ShortenLogLength / 2
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}
