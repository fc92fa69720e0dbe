package notify

import (
	"context"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/resonantfield/tapedeck/internal/errors"
)

// ShoutrrrProvider sends notifications through one or more shoutrrr
// service URLs (slack://, smtp://, generic webhooks, ...).
type ShoutrrrProvider struct {
	name    string
	urls    []string
	enabled bool
	types   map[Type]bool
	sender  *router.ServiceRouter
}

// NewShoutrrrProvider builds a provider named name, sending to every URL in
// urls, accepting the given notification types (all types if none given).
func NewShoutrrrProvider(name string, urls []string, acceptedTypes ...Type) (*ShoutrrrProvider, error) {
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("provider", name).
			Build()
	}

	typeSet := make(map[Type]bool, len(acceptedTypes))
	for _, t := range acceptedTypes {
		typeSet[t] = true
	}
	if len(typeSet) == 0 {
		for _, t := range []Type{TypeError, TypeWarning, TypeInfo, TypeTransport, TypeDevice, TypeBackup} {
			typeSet[t] = true
		}
	}

	return &ShoutrrrProvider{
		name:    name,
		urls:    urls,
		enabled: len(urls) > 0,
		types:   typeSet,
		sender:  sender,
	}, nil
}

func (p *ShoutrrrProvider) GetName() string { return p.name }

func (p *ShoutrrrProvider) ValidateConfig() error {
	if len(p.urls) == 0 {
		return errors.New(errors.NewStd("no service URLs configured")).
			Component("notify").
			Category(errors.CategoryValidation).
			Context("provider", p.name).
			Build()
	}
	return nil
}

func (p *ShoutrrrProvider) SupportsType(t Type) bool { return p.types[t] }

func (p *ShoutrrrProvider) IsEnabled() bool { return p.enabled }

// Send delivers n through shoutrrr, returning the first reported error (if
// any) so the caller's circuit breaker can count it as a single failure
// rather than one per configured URL.
func (p *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	body := fmt.Sprintf("[%s] %s: %s", n.Type, n.Title, n.Message)
	errs := p.sender.Send(body, &types.Params{})
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err).
				Component("notify").
				Category(errors.CategoryNotification).
				Context("provider", p.name).
				Build()
		}
	}
	return nil
}
