package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/templui/twinboard/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrDisplayNameRequired = errors.New("display name is required")
	ErrDisplayNameTooLong  = errors.New("display name is too long (max 100 characters)")
	ErrBioTooLong          = errors.New("bio is too long (max 2000 characters)")
	ErrTooManyTraits       = errors.New("too many traits (max 12)")
)

// NormalizePersonality trims and NFC-normalizes all text fields, drops empty
// traits and canonicalizes language tags. Unknown language tags are an error.
func NormalizePersonality(p model.Personality) (model.Personality, error) {
	out := model.Personality{
		DisplayName: cleanText(p.DisplayName),
		Bio:         cleanText(p.Bio),
		Tone:        strings.ToLower(cleanText(p.Tone)),
	}

	seen := make(map[string]bool)
	for _, t := range p.Traits {
		t = strings.ToLower(cleanText(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out.Traits = append(out.Traits, t)
	}

	for _, l := range p.Languages {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		tag, err := language.Parse(l)
		if err != nil {
			return model.Personality{}, fmt.Errorf("invalid language %q: %w", l, err)
		}
		out.Languages = append(out.Languages, tag.String())
	}

	return out, nil
}

// ValidatePersonality validates already normalized personality fields
func ValidatePersonality(p model.Personality) error {
	if p.DisplayName == "" {
		return ErrDisplayNameRequired
	}
	if utf8.RuneCountInString(p.DisplayName) > 100 {
		return ErrDisplayNameTooLong
	}
	if utf8.RuneCountInString(p.Bio) > 2000 {
		return ErrBioTooLong
	}
	if len(p.Traits) > 12 {
		return ErrTooManyTraits
	}
	return nil
}

func cleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
