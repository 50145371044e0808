package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/templui/twinboard/internal/capture"
	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/onboarding"
	"github.com/templui/twinboard/internal/validation"
)

var (
	errConsentDeclined = errors.New("consent declined, nothing was submitted")
	errAborted         = errors.New("onboarding aborted, nothing was submitted")
)

type onboardOptions struct {
	voiceFile string
	videoFile string
	skipVideo bool
}

func newOnboardCommand(ctx *commandContext) *cobra.Command {
	var opts onboardOptions

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Walk through consent, personality, samples and commit",
		Long: "Runs the onboarding wizard interactively. Samples are recorded with ffmpeg " +
			"unless --voice-file or --video-file point at existing recordings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.voiceFile, "voice-file", "", "Use this recording for the voice step")
	cmd.Flags().StringVar(&opts.videoFile, "video-file", "", "Use this recording for the video step")
	cmd.Flags().BoolVar(&opts.skipVideo, "skip-video", false, "Leave the optional video step empty")
	return cmd
}

type onboardSession struct {
	ctx     context.Context
	out     io.Writer
	prompt  *prompter
	wizard  *onboarding.Wizard
	consent model.ConsentDocument
	voice   *capture.Controller
	video   *capture.Controller
}

func runOnboard(cmd *cobra.Command, cc *commandContext, opts onboardOptions) error {
	ctx := cmd.Context()
	client, err := cc.client()
	if err != nil {
		return err
	}

	policy, captureCfg, err := capturePolicy(ctx, client)
	if err != nil {
		return err
	}
	doc, err := client.Consent(ctx)
	if err != nil {
		return fmt.Errorf("fetch consent: %w", err)
	}

	uploader := cc.coordinator(client, progressPrinter(cmd.ErrOrStderr(), "uploading"))
	machine := onboarding.NewMachine(captureCfg.VideoStepEnabled)
	device := cc.captureDevice()
	prober := cc.mediaProber()

	s := &onboardSession{
		ctx:     ctx,
		out:     cmd.OutOrStdout(),
		prompt:  newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		wizard:  onboarding.NewWizard(machine, client, uploader, client),
		consent: doc,
		voice:   capture.NewController(model.MediaKindVoice, policy, device, prober),
		video:   capture.NewController(model.MediaKindVideo, policy, device, prober),
	}

	for {
		if err := ctx.Err(); err != nil {
			s.wizard.Abandon()
			return err
		}

		d := s.wizard.Draft()
		var done bool
		switch d.Step {
		case onboarding.StepConsent:
			err = s.consentStep()
		case onboarding.StepPersonality:
			err = s.personalityStep()
		case onboarding.StepVoice:
			err = s.sampleStep(s.voice, opts.voiceFile, false)
		case onboarding.StepVideo:
			err = s.sampleStep(s.video, opts.videoFile, opts.skipVideo)
		case onboarding.StepReview:
			done, err = s.reviewStep()
		default:
			err = fmt.Errorf("unexpected wizard step %q", d.Step)
		}
		if err != nil {
			s.wizard.Abandon()
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *onboardSession) dispatch(actions ...onboarding.Action) error {
	for _, a := range actions {
		if _, err := s.wizard.Dispatch(a); err != nil {
			return err
		}
	}
	return nil
}

func (s *onboardSession) consentStep() error {
	fmt.Fprintf(s.out, "\n%s (version %s)\n\n%s\n\n", s.consent.Title, s.consent.Version, plainText(s.consent.HTML))
	ok, err := s.prompt.confirm("Do you consent")
	if err != nil {
		return err
	}
	if !ok {
		return errConsentDeclined
	}
	return s.dispatch(onboarding.AcceptConsent{Version: s.consent.Version}, onboarding.Next{})
}

func (s *onboardSession) personalityStep() error {
	fmt.Fprintln(s.out, "\nPersonality")
	for {
		var p model.Personality
		var err error
		if p.DisplayName, err = s.prompt.ask("Display name"); err != nil {
			return err
		}
		if p.Bio, err = s.prompt.ask("Short bio"); err != nil {
			return err
		}
		if p.Tone, err = s.prompt.ask("Tone of voice"); err != nil {
			return err
		}
		traits, err := s.prompt.ask("Traits (comma separated)")
		if err != nil {
			return err
		}
		languages, err := s.prompt.ask("Languages (comma separated)")
		if err != nil {
			return err
		}
		p.Traits = splitList(traits)
		p.Languages = splitList(languages)

		normalized, err := validation.NormalizePersonality(p)
		if err == nil {
			err = validation.ValidatePersonality(normalized)
		}
		if err != nil {
			fmt.Fprintf(s.out, "  %v, please try again\n", err)
			continue
		}
		return s.dispatch(onboarding.SetPersonality{Personality: normalized}, onboarding.Next{})
	}
}

// sampleStep fills the voice or video step from a file or a live recording,
// asking again until the sample passes the capture policy.
func (s *onboardSession) sampleStep(ctrl *capture.Controller, file string, skip bool) error {
	kind := ctrl.Kind()
	fmt.Fprintf(s.out, "\n%s sample\n", titleKind(kind))
	if skip {
		return s.dispatch(onboarding.Next{})
	}

	for {
		var artifact *model.MediaArtifact
		var err error
		if file != "" {
			artifact, err = acceptFile(s.ctx, ctrl, file)
		} else {
			artifact, err = s.record(ctrl)
		}
		if err == nil {
			fmt.Fprintf(s.out, "  accepted %s (%s, %s)\n", artifact.FileName, formatSeconds(artifact.DurationSeconds), formatBytes(artifact.Size()))
			set := onboarding.Action(onboarding.SetVoiceSample{Artifact: artifact})
			if kind == model.MediaKindVideo {
				set = onboarding.SetVideoSample{Artifact: artifact}
			}
			return s.dispatch(set, onboarding.Next{})
		}

		fmt.Fprintf(s.out, "  %v\n", err)

		var violation *validation.Violation
		switch {
		case errors.As(err, &violation) && file == "":
			again, perr := s.prompt.confirm("Record again")
			if perr != nil {
				return perr
			}
			if !again {
				return errAborted
			}
		case file == "" && ctrl.State() == capture.StateRejected:
			// the device could not be opened, offer a recording from disk
			path, perr := s.prompt.ask("Path to an existing recording (empty to give up)")
			if perr != nil {
				return perr
			}
			if path == "" {
				return err
			}
			file = path
		default:
			return err
		}
		ctrl.Reset()
	}
}

func (s *onboardSession) record(ctrl *capture.Controller) (*model.MediaArtifact, error) {
	if _, err := s.prompt.ask("Press Enter to start recording"); err != nil {
		return nil, err
	}
	if err := ctrl.StartCapture(s.ctx); err != nil {
		return nil, err
	}

	fmt.Fprintln(s.out, "  Recording, press Enter to stop")
	stopMeter := make(chan struct{})
	meterDone := make(chan struct{})
	go func() {
		defer close(meterDone)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopMeter:
				return
			case <-ticker.C:
				fmt.Fprintf(s.out, "\r  level %-20s", strings.Repeat("#", int(ctrl.Level()*20)))
			}
		}
	}()

	err := s.prompt.wait()
	close(stopMeter)
	<-meterDone
	fmt.Fprintln(s.out)
	if err != nil {
		ctrl.Reset()
		return nil, err
	}
	return ctrl.StopCapture(s.ctx)
}

func (s *onboardSession) reviewStep() (bool, error) {
	d := s.wizard.Draft()
	rows := [][]string{
		{"Consent", d.ConsentVersion},
		{"Display name", d.Personality.DisplayName},
		{"Tone", d.Personality.Tone},
		{"Traits", strings.Join(d.Personality.Traits, ", ")},
		{"Languages", strings.Join(d.Personality.Languages, ", ")},
		{"Voice", sampleSummary(d.VoiceSample)},
	}
	if s.wizard.Machine().VideoEnabled() {
		rows = append(rows, []string{"Video", sampleSummary(d.VideoSample)})
	}
	fmt.Fprintf(s.out, "\nReview\n%s\n", renderTable([]string{"Field", "Value"}, rows, nil))

	for {
		ok, err := s.prompt.confirm("Submit")
		if err != nil {
			return false, err
		}
		if !ok {
			return false, errAborted
		}

		status, err := s.wizard.Commit(s.ctx)
		if err == nil {
			fmt.Fprintln(s.out, renderTable([]string{"Job", "Status"}, [][]string{{status.JobID, status.Status}}, nil))
			return true, nil
		}
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		fmt.Fprintf(s.out, "  submit failed: %v\n", err)
	}
}

func acceptFile(ctx context.Context, ctrl *capture.Controller, path string) (*model.MediaArtifact, error) {
	f, err := readMediaFile(ctrl.Kind(), path, "")
	if err != nil {
		return nil, err
	}
	return ctrl.AcceptFile(ctx, f)
}

func sampleSummary(a *model.MediaArtifact) string {
	if a == nil {
		return "none"
	}
	return fmt.Sprintf("%s, %s, %s", a.FileName, formatSeconds(a.DurationSeconds), formatBytes(a.Size()))
}

func titleKind(kind model.MediaKind) string {
	return cases.Title(language.English).String(kind.String())
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// plainText strips markup from the rendered consent document for the terminal.
func plainText(h string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(h, "")))
}
