package verification

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/phoneauth/internal/pkg/hash"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/jwt"
	"github.com/shandysiswandi/phoneauth/internal/pkg/messaging"
	"github.com/shandysiswandi/phoneauth/internal/pkg/otp"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/pkg/router"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/pkg/validator"
	"github.com/shandysiswandi/phoneauth/internal/verification/inbound"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/mq"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/provider"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/store"
	"github.com/shandysiswandi/phoneauth/internal/verification/usecase"
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	HMAC       hash.Hash                  `validate:"required"`
	OTP        otp.Generator              `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
	// CacheConn backs the redis code store; nil when redis is disabled.
	CacheConn *redis.Client
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	cfg := dep.Config

	var rdb redis.Cmdable
	if dep.CacheConn != nil {
		rdb = dep.CacheConn
	}

	codes, err := store.New(cfg.GetString("modules.verification.store.driver"), store.Options{
		Retention: cfg.GetSecond("modules.verification.store.retention_seconds"),
		Clock:     dep.Clock,
		Redis:     rdb,
	})
	if err != nil {
		return err
	}

	httpTimeout := cfg.GetSecond("modules.verification.http.timeout_seconds")
	selector := provider.NewSelector(provider.Options{
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
		IDs:        dep.UID,
		Tokens:     dep.UUID,
		Hash:       dep.HMAC,
		OTP:        dep.OTP,
		Store:      codes,
		Client:     &http.Client{Timeout: httpTimeout},
		HTTP: provider.HTTPConfig{
			Timeout:    httpTimeout,
			MaxRetries: cfg.GetUint64("modules.verification.http.max_retries"),
			RetryBase:  cfg.GetMillisecond("modules.verification.http.retry_base_millis"),
		},
		Mock: provider.MockConfig{
			CodeLength:  cfg.GetInt("modules.verification.mock.code_length"),
			Expiry:      cfg.GetSecond("modules.verification.mock.expiry_seconds"),
			FailureRate: cfg.GetFloat64("modules.verification.mock.failure_rate"),
			FixedCode:   cfg.GetString("modules.verification.mock.fixed_code"),
		},
		Twilio: provider.TwilioConfig{
			BaseURL:    cfg.GetString("modules.verification.twilio.base_url"),
			AccountSID: cfg.GetString("modules.verification.twilio.account_sid"),
			AuthToken:  cfg.GetString("modules.verification.twilio.auth_token"),
			ServiceSID: cfg.GetString("modules.verification.twilio.verify_service_sid"),
			CodeLength: cfg.GetInt("modules.verification.twilio.code_length"),
		},
		MessageCentral: provider.MessageCentralConfig{
			BaseURL:    cfg.GetString("modules.verification.messagecentral.base_url"),
			AuthToken:  cfg.GetString("modules.verification.messagecentral.auth_token"),
			CustomerID: cfg.GetString("modules.verification.messagecentral.customer_id"),
			CodeLength: cfg.GetInt("modules.verification.messagecentral.code_length"),
		},
		OTPless: provider.OTPlessConfig{
			BaseURL:      cfg.GetString("modules.verification.otpless.base_url"),
			ClientID:     cfg.GetString("modules.verification.otpless.client_id"),
			ClientSecret: cfg.GetString("modules.verification.otpless.client_secret"),
			CodeLength:   cfg.GetInt("modules.verification.otpless.code_length"),
			Expiry:       cfg.GetSecond("modules.verification.otpless.expiry_seconds"),
		},
	})

	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	var sweeper interface{ Sweep() int }
	if mem, ok := codes.(*store.Memory); ok {
		sweeper = mem
	}

	uc := usecase.New(usecase.Dependency{
		Ctx:           dep.Ctx,
		Selector:      selector,
		RepoMessaging: repoMsg,
		Validator:     dep.Validator,
		Config:        cfg,
		Normalizer: phone.NewNormalizer(
			cfg.GetString("modules.verification.phone.default_region"),
			cfg.GetBool("modules.verification.phone.strict"),
		),
		UUID:       dep.UUID,
		Clock:      dep.Clock,
		JWT:        dep.JWT,
		Instrument: dep.Instrument,
		Goroutine:  dep.Goroutine,

		CodeSweeper: sweeper,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	dep.Goroutine.Go(dep.Ctx, uc.RunJanitor)

	return nil
}
