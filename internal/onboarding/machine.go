package onboarding

import (
	"errors"
	"fmt"

	"github.com/templui/twinboard/internal/model"
)

type Step string

const (
	StepConsent     Step = "consent"
	StepPersonality Step = "personality"
	StepVoice       Step = "voice"
	StepVideo       Step = "video"
	StepReview      Step = "review"
)

type Event string

const (
	EventNext Event = "next"
	EventBack Event = "back"
)

var (
	ErrUnknownStep   = errors.New("step is not part of this wizard")
	ErrVideoDisabled = errors.New("video step is disabled")
	ErrWrongKind     = errors.New("artifact kind does not match the step")
	ErrUnknownAction = errors.New("unknown action")
)

// Draft is the in-progress onboarding pass. Artifacts are shared by pointer
// and never modified after validation.
type Draft struct {
	Step           Step
	Consent        bool
	ConsentVersion string
	Personality    model.Personality
	VoiceSample    *model.MediaArtifact
	VideoSample    *model.MediaArtifact
	Busy           bool
	Error          string
}

func NewDraft() Draft {
	return Draft{Step: StepConsent}
}

// Action is a named draft transition.
type Action interface {
	action()
}

type (
	Next             struct{}
	Back             struct{}
	AcceptConsent    struct{ Version string }
	SetPersonality   struct{ Personality model.Personality }
	SetVoiceSample   struct{ Artifact *model.MediaArtifact }
	SetVideoSample   struct{ Artifact *model.MediaArtifact }
	ClearVoiceSample struct{}
	ClearVideoSample struct{}
	SetBusy          struct{ Busy bool }
	Fail             struct{ Message string }
	ResetError       struct{}
)

func (Next) action()             {}
func (Back) action()             {}
func (AcceptConsent) action()    {}
func (SetPersonality) action()   {}
func (SetVoiceSample) action()   {}
func (SetVideoSample) action()   {}
func (ClearVoiceSample) action() {}
func (ClearVideoSample) action() {}
func (SetBusy) action()          {}
func (Fail) action()             {}
func (ResetError) action()       {}

// Machine holds the step transition table. It is immutable after construction.
type Machine struct {
	steps        []Step
	table        map[Step]map[Event]Step
	videoEnabled bool
}

// NewMachine builds the linear table. Without video, voice leads straight to review.
func NewMachine(videoEnabled bool) *Machine {
	steps := []Step{StepConsent, StepPersonality, StepVoice}
	if videoEnabled {
		steps = append(steps, StepVideo)
	}
	steps = append(steps, StepReview)

	table := make(map[Step]map[Event]Step, len(steps))
	for i, s := range steps {
		next, back := s, s
		if i+1 < len(steps) {
			next = steps[i+1]
		}
		if i > 0 {
			back = steps[i-1]
		}
		table[s] = map[Event]Step{EventNext: next, EventBack: back}
	}

	return &Machine{steps: steps, table: table, videoEnabled: videoEnabled}
}

func (m *Machine) Steps() []Step {
	return append([]Step(nil), m.steps...)
}

func (m *Machine) VideoEnabled() bool { return m.videoEnabled }

// Transition looks up the table.
func (m *Machine) Transition(from Step, ev Event) (Step, error) {
	row, ok := m.table[from]
	if !ok {
		return from, fmt.Errorf("%w: %s", ErrUnknownStep, from)
	}
	to, ok := row[ev]
	if !ok {
		return from, fmt.Errorf("no %s transition from %s", ev, from)
	}
	return to, nil
}

// Apply returns the draft that results from a. The input draft is not modified.
func (m *Machine) Apply(d Draft, a Action) (Draft, error) {
	switch a := a.(type) {
	case Next:
		step, err := m.Transition(d.Step, EventNext)
		if err != nil {
			return d, err
		}
		d.Step = step
	case Back:
		step, err := m.Transition(d.Step, EventBack)
		if err != nil {
			return d, err
		}
		d.Step = step
	case AcceptConsent:
		d.Consent = true
		d.ConsentVersion = a.Version
	case SetPersonality:
		d.Personality = a.Personality
	case SetVoiceSample:
		if a.Artifact != nil && a.Artifact.Kind != model.MediaKindVoice {
			return d, ErrWrongKind
		}
		d.VoiceSample = a.Artifact
	case SetVideoSample:
		if !m.videoEnabled {
			return d, ErrVideoDisabled
		}
		if a.Artifact != nil && a.Artifact.Kind != model.MediaKindVideo {
			return d, ErrWrongKind
		}
		d.VideoSample = a.Artifact
	case ClearVoiceSample:
		d.VoiceSample = nil
	case ClearVideoSample:
		d.VideoSample = nil
	case SetBusy:
		d.Busy = a.Busy
	case Fail:
		d.Error = a.Message
	case ResetError:
		d.Error = ""
	default:
		return d, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
	return d, nil
}
