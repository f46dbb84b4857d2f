package provider

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

var order = []string{NameMock, NameTwilio, NameMessageCentral, NameOTPless}

// Selector owns one instance of every backend and resolves them by name.
type Selector struct {
	providers map[string]entity.Provider
}

// NewSelector builds every backend once. Remote backends without credentials
// are replaced by an Unconfigured stand-in.
func NewSelector(opts Options) *Selector {
	s := &Selector{providers: make(map[string]entity.Provider, len(order))}

	s.providers[NameMock] = NewMock(opts)

	if missing := opts.Twilio.missing(); len(missing) > 0 {
		s.providers[NameTwilio] = newUnconfigured(NameTwilio, missing)
	} else {
		s.providers[NameTwilio] = NewTwilio(opts)
	}

	if missing := opts.MessageCentral.missing(); len(missing) > 0 {
		s.providers[NameMessageCentral] = newUnconfigured(NameMessageCentral, missing)
	} else {
		s.providers[NameMessageCentral] = NewMessageCentral(opts)
	}

	if missing := opts.OTPless.missing(); len(missing) > 0 {
		s.providers[NameOTPless] = newUnconfigured(NameOTPless, missing)
	} else {
		s.providers[NameOTPless] = NewOTPless(opts)
	}

	return s
}

// Select returns the backend registered under name.
func (s *Selector) Select(name string) (entity.Provider, error) {
	p, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, entity.NewError(entity.KindConfiguration, fmt.Sprintf("unknown delivery provider %q", name))
	}
	return p, nil
}

// Catalog lists every backend in a stable order.
func (s *Selector) Catalog() []entity.ProviderInfo {
	return lo.FilterMap(order, func(name string, _ int) (entity.ProviderInfo, bool) {
		p, ok := s.providers[name]
		if !ok {
			return entity.ProviderInfo{}, false
		}
		return p.Info(), true
	})
}
