package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	ProfileStatusDraft     = "draft"
	ProfileStatusCommitted = "committed"
)

// Personality holds the free-form fields collected on the personality step.
type Personality struct {
	DisplayName string     `json:"displayName"`
	Bio         string     `json:"bio,omitempty"`
	Tone        string     `json:"tone,omitempty"`
	Traits      StringList `json:"traits,omitempty"`
	Languages   StringList `json:"languages,omitempty"`
}

type Profile struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	DisplayName    string     `db:"display_name"`
	Bio            string     `db:"bio"`
	Tone           string     `db:"tone"`
	Traits         StringList `db:"traits"`
	Languages      StringList `db:"languages"`
	ConsentVersion string     `db:"consent_version"`
	Status         string     `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (p *Profile) Personality() Personality {
	return Personality{
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		Tone:        p.Tone,
		Traits:      p.Traits,
		Languages:   p.Languages,
	}
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}
