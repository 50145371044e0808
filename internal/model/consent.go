package model

// ConsentDocument is the rendered consent text the user agrees to.
type ConsentDocument struct {
	Version string `json:"version"`
	Title   string `json:"title"`
	HTML    string `json:"html"`
}

// SavePersonalityRequest is the body of POST /api/onboarding/personality.
type SavePersonalityRequest struct {
	Personality
	ConsentVersion string `json:"consentVersion"`
}
