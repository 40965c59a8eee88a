package upload

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/workflow"
)

// controller is the part of *workflow.Controller the prompt drives.
type controller interface {
	SelectFile(img backend.Image) error
	Upload(ctx context.Context) error
	Confirm(ctx context.Context) error
	Correct(ctx context.Context, name string) error
	Cancel() error
	PickLocation(lat, lng float64) error
	ConfirmLocation(ctx context.Context) error
	RequestInsights(ctx context.Context) error
	Snapshot() workflow.Snapshot
}

// errCancelled is returned when the user cancels at the confirmation prompt.
var errCancelled = errors.NewStd("cancelled")

type promptOptions struct {
	location bool // coordinates given on the command line
	lat, lng float64
	insights bool
}

type prompter struct {
	ctrl controller
	in   *bufio.Scanner
	out  io.Writer
	opts promptOptions
}

func newPrompter(ctrl controller, in io.Reader, out io.Writer, opts promptOptions) *prompter {
	return &prompter{ctrl: ctrl, in: bufio.NewScanner(in), out: out, opts: opts}
}

// readLine returns the next trimmed line, or io.EOF when input is closed.
func (p *prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// failed prints the user-facing message of the current snapshot and returns err.
func (p *prompter) failed(err error) error {
	if msg := p.ctrl.Snapshot().Error; msg != "" {
		fmt.Fprintln(p.out, msg)
	}
	return err
}

func (p *prompter) run(ctx context.Context, img backend.Image) error {
	if err := p.ctrl.SelectFile(img); err != nil {
		return p.failed(err)
	}
	if err := p.ctrl.Upload(ctx); err != nil {
		return p.failed(err)
	}
	fmt.Fprintln(p.out, p.ctrl.Snapshot().Success)

	if err := p.confirmSpecies(ctx); err != nil {
		return err
	}
	p.printSpecies()

	if p.opts.insights {
		p.printInsights(ctx)
	}

	if err := p.chooseLocation(); err != nil {
		return err
	}
	if err := p.ctrl.ConfirmLocation(ctx); err != nil {
		return p.failed(err)
	}

	snap := p.ctrl.Snapshot()
	fmt.Fprintf(p.out, "Country: %s\n", snap.Location.Country)
	fmt.Fprintln(p.out, snap.Success)
	return nil
}

func (p *prompter) confirmSpecies(ctx context.Context) error {
	for {
		snap := p.ctrl.Snapshot()
		if snap.Classification == nil {
			return p.failed(errors.Newf("no classification available").
				Component("cli").
				Category(errors.CategoryState).
				Build())
		}

		answer, err := p.readLine(fmt.Sprintf("Is this a %s? [y]es/[n]o/[c]ancel: ", snap.Classification.ParsedName))
		if err != nil {
			_ = p.ctrl.Cancel()
			return err
		}

		switch strings.ToLower(answer) {
		case "y", "yes":
			if err := p.ctrl.Confirm(ctx); err != nil {
				return p.failed(err)
			}
			return nil
		case "n", "no":
			return p.correct(ctx)
		case "c", "cancel":
			if err := p.ctrl.Cancel(); err != nil {
				return err
			}
			fmt.Fprintln(p.out, "Cancelled.")
			return errCancelled
		default:
			fmt.Fprintln(p.out, "Please answer y, n or c.")
		}
	}
}

func (p *prompter) correct(ctx context.Context) error {
	for {
		name, err := p.readLine("Correct species name: ")
		if err != nil {
			_ = p.ctrl.Cancel()
			return err
		}
		err = p.ctrl.Correct(ctx, name)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, workflow.ErrEmptyCorrection):
			fmt.Fprintln(p.out, workflow.MsgEmptyCorrection)
		default:
			return p.failed(err)
		}
	}
}

func (p *prompter) printSpecies() {
	rec := p.ctrl.Snapshot().Species
	if rec == nil {
		return
	}
	fmt.Fprintf(p.out, "\nSpecies: %s\n", rec.Name)
	if sci := rec.ScientificName(); sci != "" {
		fmt.Fprintf(p.out, "Scientific name: %s\n", sci)
	}
	if len(rec.Locations) > 0 {
		fmt.Fprintf(p.out, "Found in: %s\n", strings.Join(rec.Locations, ", "))
	}
}

// printInsights never fails the workflow; the message is shown instead.
func (p *prompter) printInsights(ctx context.Context) {
	if err := p.ctrl.RequestInsights(ctx); err != nil {
		fmt.Fprintln(p.out, p.ctrl.Snapshot().InsightsError)
		return
	}
	snap := p.ctrl.Snapshot()
	if snap.Insights == nil {
		return
	}
	fmt.Fprintln(p.out, "\nConservation insights")
	for _, section := range snap.Insights.Sections() {
		fmt.Fprintf(p.out, "  %s: %s\n", section.Name, section.Content)
	}
}

// chooseLocation picks the command-line coordinate or prompts for one. A
// blank answer keeps the fallback coordinate.
func (p *prompter) chooseLocation() error {
	if p.opts.location {
		if err := p.ctrl.PickLocation(p.opts.lat, p.opts.lng); err != nil {
			return p.failed(err)
		}
		return nil
	}

	fallback := p.ctrl.Snapshot().Location
	for {
		answer, err := p.readLine(fmt.Sprintf("Location as lat,lng (blank for %.4f,%.4f): ", fallback.Latitude, fallback.Longitude))
		if err != nil {
			return err
		}
		if answer == "" {
			return nil
		}
		lat, lng, err := parseCoordinates(answer)
		if err != nil {
			fmt.Fprintln(p.out, err)
			continue
		}
		if err := p.ctrl.PickLocation(lat, lng); err != nil {
			fmt.Fprintln(p.out, "Coordinates out of range.")
			continue
		}
		return nil
	}
}

func parseCoordinates(s string) (lat, lng float64, err error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, errors.ValidationError("expected lat,lng")
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if errLat != nil || errLng != nil {
		return 0, 0, errors.ValidationError("coordinates must be numbers")
	}
	return lat, lng, nil
}
