package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mezonai/starchain/errors"
	"golang.org/x/text/unicode/norm"
)

var InjectionRegexp = BuildInjectionPatterns()

// BuildInjectionPatterns builds regexp for injection detection (case-insensitive)
func BuildInjectionPatterns() *regexp.Regexp {
	parts := make([]string, 0, len(InjectionPatterns))
	for _, pattern := range InjectionPatterns {
		pNorm := norm.NFC.String(pattern)
		parts = append(parts, regexp.QuoteMeta(pNorm))
	}
	// (?i) for case-insensitive
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}

// ValidateRequired rejects values that are empty after trimming whitespace
func ValidateRequired(fieldName, fieldValue string) error {
	if strings.TrimSpace(fieldValue) == "" {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgRequiredField, fieldName),
		)
	}
	return nil
}

// ValidateShortTextLength validates short text field length
func ValidateShortTextLength(fieldName, fieldValue string) error {
	normalized := norm.NFC.String(fieldValue)

	if utf8.RuneCountInString(normalized) > MaxShortTextLength {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgShortTextTooLong, MaxShortTextLength, fieldName),
		)
	}

	if InjectionRegexp.MatchString(normalized) {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, fieldName),
		)
	}
	return nil
}

// ValidateLongTextLength validates long text field length
func ValidateLongTextLength(fieldName, fieldValue string) error {
	normalized := norm.NFC.String(fieldValue)

	if utf8.RuneCountInString(normalized) > MaxLongTextLength {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgLongTextTooLong, MaxLongTextLength, fieldName),
		)
	}

	if InjectionRegexp.MatchString(normalized) {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, fieldName),
		)
	}

	return nil
}

// ValidateStory enforces the registry story rule: at most MaxStoryBytes of ASCII text.
func ValidateStory(story string) error {
	if len(story) > MaxStoryBytes {
		return errors.NewError(
			errors.ErrCodeInvalidStar,
			fmt.Sprintf(errors.ErrMsgLongTextTooLong, MaxStoryBytes, StoryField),
		)
	}

	for i := 0; i < len(story); i++ {
		if story[i] > unicode.MaxASCII {
			return errors.NewError(
				errors.ErrCodeInvalidStar,
				fmt.Sprintf(errors.ErrMsgNonASCII, StoryField),
			)
		}
	}

	return ValidateLongTextLength(StoryField, story)
}
