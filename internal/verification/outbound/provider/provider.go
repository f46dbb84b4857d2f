// Package provider holds the delivery backends that send and check one-time codes.
package provider

import (
	"net/http"
	"sync"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/hash"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/otp"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/store"
	"go.opentelemetry.io/otel/trace"
)

// Backend names accepted by Selector.Select.
const (
	NameMock           = "mock"
	NameTwilio         = "twilio"
	NameMessageCentral = "messagecentral"
	NameOTPless        = "otpless"
)

// HTTPConfig tunes the client shared by the remote backends.
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries uint64
	RetryBase  time.Duration
}

// Options carries everything NewSelector needs to build every backend.
type Options struct {
	Clock      clock.Clocker
	Instrument instrument.Instrumentation
	IDs        uid.NumberID
	Tokens     uid.StringID
	Hash       hash.Hash
	OTP        otp.Generator
	Store      store.CodeStore
	Client     *http.Client
	HTTP       HTTPConfig

	Mock           MockConfig
	Twilio         TwilioConfig
	MessageCentral MessageCentralConfig
	OTPless        OTPlessConfig
}

func tracerOf(opts Options) trace.Tracer {
	ins := opts.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}
	return ins.Tracer("verification.outbound.provider")
}

func catalogEntry(name string) entity.ProviderInfo {
	both := []entity.Channel{entity.ChannelSMS, entity.ChannelWhatsApp}

	switch name {
	case NameTwilio:
		return entity.ProviderInfo{
			Name:        NameTwilio,
			DisplayName: "Twilio Verify",
			Description: "Industry-leading platform with 99.95% uptime",
			CodeLength:  6,
			Channels:    both,
			Voice:       true,
			Cost:        "$$",
			Reliability: "Excellent",
		}
	case NameMessageCentral:
		return entity.ProviderInfo{
			Name:        NameMessageCentral,
			DisplayName: "Message Central",
			Description: "Cost-effective with good delivery rates",
			CodeLength:  4,
			Channels:    both,
			Cost:        "$",
			Reliability: "Very Good",
		}
	case NameOTPless:
		return entity.ProviderInfo{
			Name:        NameOTPless,
			DisplayName: "OTPless",
			Description: "WhatsApp-focused authentication platform",
			CodeLength:  6,
			Channels:    both,
			Cost:        "$",
			Reliability: "Good",
		}
	default:
		return entity.ProviderInfo{
			Name:        NameMock,
			DisplayName: "Mock Service (Demo)",
			Description: "For testing and development purposes",
			CodeLength:  6,
			Channels:    both,
			Cost:        "Free",
			Reliability: "Demo Only",
		}
	}
}

// subjectLocks serializes work per subject. Entries are dropped once unused.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[string]*subjectLock)}
}

func (s *subjectLocks) lock(subject string) func() {
	s.mu.Lock()
	l, ok := s.locks[subject]
	if !ok {
		l = &subjectLock{}
		s.locks[subject] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, subject)
		}
		s.mu.Unlock()
	}
}

// handle is the backend-issued id of an outstanding code.
type handle struct {
	id      string
	channel entity.Channel
}

// handles remembers the outstanding handle per subject.
type handles struct {
	mu   sync.Mutex
	byID map[string]handle
}

func newHandles() *handles {
	return &handles{byID: make(map[string]handle)}
}

func (h *handles) get(subject string) (handle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.byID[subject]
	return v, ok
}

func (h *handles) set(subject, id string, channel entity.Channel) {
	h.mu.Lock()
	h.byID[subject] = handle{id: id, channel: channel}
	h.mu.Unlock()
}

func (h *handles) forget(subject string) {
	h.mu.Lock()
	delete(h.byID, subject)
	h.mu.Unlock()
}
