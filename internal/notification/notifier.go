// Package notification sends a push message for each saved observation
// through shoutrrr service URLs (ntfy, telegram, discord, smtp, ...).
package notification

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"regexp"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/events"
	"github.com/birdo-app/birdo/internal/logger"
)

const defaultTitle = "Birdo"

// Sender is satisfied by *router.ServiceRouter.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Notifier is the push event consumer.
type Notifier struct {
	sender Sender
	title  string
	log    logger.Logger
}

// credentials embedded in service URLs, e.g. telegram://token@telegram
var urlCredentials = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^@/\s]+@`)

func scrub(s string) string {
	return logger.RedactSensitiveData(urlCredentials.ReplaceAllString(s, "${1}[REDACTED]@"))
}

// New builds one router for all urls.
func New(urls []string, timeout time.Duration, log logger.Logger) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(slices.Clone(urls)...)
	if err != nil {
		return nil, errors.Newf("%s", scrub(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(stdlog.New(io.Discard, "", 0))
	return NewWithSender(sender, log), nil
}

// NewWithSender wraps an existing sender.
func NewWithSender(sender Sender, log logger.Logger) *Notifier {
	return &Notifier{sender: sender, title: defaultTitle, log: log.Module("notification")}
}

func (n *Notifier) Name() string { return "push" }

// ProcessEvent implements events.EventConsumer. The router applies its own
// timeout so ctx is not consulted.
func (n *Notifier) ProcessEvent(_ context.Context, e events.ObservationSaved) error {
	params := stypes.Params{}
	params.SetTitle(n.title)

	var firstErr error
	for _, err := range n.sender.Send(FormatMessage(e), &params) {
		if err != nil {
			firstErr = err
			break
		}
	}
	if firstErr == nil {
		return nil
	}
	n.log.Warn("push notification failed", logger.String("error", scrub(firstErr.Error())))
	return errors.Newf("%s", scrub(firstErr.Error())).
		Component("notification").
		Category(errors.CategoryNetwork).
		Context("observation_id", e.ID).
		Build()
}

// FormatMessage renders the notification body:
// "New observation: elephant (African Bush elephant) x1 in Kenya at 10.0000,20.0000".
func FormatMessage(e events.ObservationSaved) string {
	name := e.Animal
	if e.Species != "" && e.Species != e.Animal {
		name = fmt.Sprintf("%s (%s)", e.Animal, e.Species)
	}
	msg := fmt.Sprintf("New observation: %s x%d", name, e.Quantity)
	if e.Country != "" {
		msg += " in " + e.Country
	}
	return msg + fmt.Sprintf(" at %.4f,%.4f", e.Latitude, e.Longitude)
}
