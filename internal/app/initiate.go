package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/phoneauth/internal/pkg/hash"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/jwt"
	"github.com/shandysiswandi/phoneauth/internal/pkg/mail"
	"github.com/shandysiswandi/phoneauth/internal/pkg/messaging"
	"github.com/shandysiswandi/phoneauth/internal/pkg/otp"
	"github.com/shandysiswandi/phoneauth/internal/pkg/router"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/pkg/validator"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// configPath prefers CONFIG_PATH, then the repo-relative file when LOCAL=true,
// then the container mount.
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if os.Getenv("LOCAL") == "true" {
		return "./config/config.yaml"
	}
	return "/config/config.yaml"
}

func (a *App) initConfig() error {
	cfg, err := config.NewViper(configPath())
	if err != nil {
		return err
	}
	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })

	if tz := cfg.GetString("app.tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("app.tz: %w", err)
		}
		time.Local = loc
	}
	return nil
}

func (a *App) initInstrument() error {
	c := a.config
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          c.GetBool("instrument.enabled"),
		ServiceName:      c.GetString("instrument.service_name"),
		ServiceVersion:   c.GetString("instrument.service_version"),
		Environment:      c.GetString("instrument.env"),
		OTLPEndpoint:     c.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       c.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: c.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  c.GetSecond("instrument.metric_interval_seconds"),
		LogLevel:         c.GetString("instrument.log_level"),
		MaskFields:       c.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		return err
	}
	a.ins = ins
	a.onClose("instrument", ins.Shutdown)
	return nil
}

func (a *App) initLibraries() error {
	v, err := validator.NewV10Validator()
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	snow, err := uid.NewSnowflake(a.config.GetInt64("app.node_id"))
	if err != nil {
		return fmt.Errorf("snowflake: %w", err)
	}

	a.validator = v
	a.uid = snow
	a.uuid = uid.NewUUID()
	a.clock = clock.New()
	a.otp = otp.NewHOTP()
	a.hmac = hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	return nil
}

func (a *App) initJWT() (err error) {
	a.jwt, err = jwt.NewHS512(jwt.Config{
		Secret:    []byte(a.config.GetString("jwt.secret")),
		Issuer:    a.config.GetString("jwt.issuer"),
		Audiences: a.config.GetArray("jwt.audiences"),
		TTL:       a.config.GetMinute("jwt.ttl_minutes"),
		Clock:     a.clock,
		UUID:      a.uuid,
	})
	return err
}

// initCache leaves cacheConn nil when redis is disabled; modules fall back to
// in-process state.
func (a *App) initCache() error {
	if !a.config.GetBool("redis.enabled") {
		return nil
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opt)
	a.onClose("redis", func(context.Context) error { return rdb.Close() })

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping %s: %w", opt.Addr, err)
	}
	a.cacheConn = rdb
	return nil
}

func (a *App) initMail() error {
	m, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
	})
	if err != nil {
		return err
	}
	a.mail = m
	a.onClose("mail", func(context.Context) error { return m.Close() })
	return nil
}

func (a *App) initMessaging() error {
	driver := a.config.GetString("messaging.driver")
	opts := a.brokerOptions()
	if strings.EqualFold(strings.TrimSpace(driver), messaging.DriverGooglePubSub) {
		clientOpts, err := a.pubsubClientOptions()
		if err != nil {
			return err
		}
		opts.PubSub = messaging.PubSubConfig{
			ProjectID: a.config.GetString("messaging.pubsub.project_id"),
			Options:   clientOpts,
		}
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, opts)
	if err != nil {
		return fmt.Errorf("driver %q: %w", driver, err)
	}
	a.messaging = client
	a.onClose("messaging", func(context.Context) error { return client.Close() })
	return nil
}

func (a *App) brokerOptions() messaging.FactoryOptions {
	c := a.config

	producer := nsq.NewConfig()
	producer.DialTimeout = c.GetSecond("messaging.nsq.producer_config.dial_timeout_seconds")
	producer.WriteTimeout = c.GetSecond("messaging.nsq.producer_config.write_timeout_seconds")

	consumer := nsq.NewConfig()
	consumer.MaxInFlight = c.GetInt("messaging.nsq.consumer_config.max_in_flight")
	consumer.MaxAttempts = c.GetUint16("messaging.nsq.consumer_config.max_attempts")
	consumer.LookupdPollInterval = c.GetSecond("messaging.nsq.consumer_config.lookupd_poll_interval_seconds")
	consumer.DefaultRequeueDelay = c.GetSecond("messaging.nsq.consumer_config.default_requeue_delay_seconds")

	return messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:         c.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    c.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: c.GetArray("messaging.nsq.consumer_lookupd_addrs"),
			ProducerConfig:       producer,
			ConsumerConfig:       consumer,
		},
		NATS: messaging.NATSConfig{
			URL: c.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(c.GetString("messaging.nats.name")),
				nats.MaxReconnects(c.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(c.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(c.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.RetryOnFailedConnect(c.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
		Kafka: messaging.KafkaConfig{
			Brokers:     c.GetArray("messaging.kafka.brokers"),
			ClientID:    c.GetString("messaging.kafka.client_id"),
			DialTimeout: c.GetSecond("messaging.kafka.dial_timeout_seconds"),
		},
		Memory: messaging.MemoryConfig{
			Buffer:      c.GetInt("messaging.memory.buffer"),
			MaxAttempts: c.GetInt("messaging.memory.max_attempts"),
		},
	}
}

// pubsubScope lets the credentials publish and pull.
const pubsubScope = "https://www.googleapis.com/auth/pubsub"

// pubsubClientOptions reads credentials from a key file when one is set and
// otherwise leaves the client on application default credentials. The client
// also honors PUBSUB_EMULATOR_HOST.
func (a *App) pubsubClientOptions() ([]option.ClientOption, error) {
	c := a.config

	var opts []option.ClientOption
	if c.GetBool("messaging.pubsub.without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}
	if path := strings.TrimSpace(c.GetString("messaging.pubsub.credentials_file")); path != "" {
		// #nosec G304 -- path is from trusted config file.
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("pubsub credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(a.ctx, raw, pubsubScope)
		if err != nil {
			return nil, fmt.Errorf("pubsub credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if endpoint := strings.TrimSpace(c.GetString("messaging.pubsub.endpoint")); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts, nil
}

// initHTTPServer builds the API listener and the event stream listener. Both
// serve the same router; the stream listener has no write timeout.
func (a *App) initHTTPServer() error {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		JWT:        a.jwt,
		Instrument: a.ins,
	})
	a.router.GET("/health", a.health)

	handler := cors.New(cors.Options{
		AllowedOrigins:   a.config.GetArray("app.server.cors"),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	c := a.config
	a.listeners = []listener{
		{
			name: "http",
			srv: &http.Server{
				Addr:              c.GetString("app.server.http.address"),
				Handler:           handler,
				ReadTimeout:       c.GetSecond("app.server.http.read_timeout_seconds"),
				ReadHeaderTimeout: c.GetSecond("app.server.http.read_header_timeout_seconds"),
				WriteTimeout:      c.GetSecond("app.server.http.write_timeout_seconds"),
				IdleTimeout:       c.GetSecond("app.server.http.idle_timeout_seconds"),
			},
		},
		{
			name: "sse",
			srv: &http.Server{
				Addr:              c.GetString("app.server.sse.address"),
				Handler:           handler,
				ReadHeaderTimeout: c.GetSecond("app.server.sse.read_header_timeout_seconds"),
			},
		},
	}
	return nil
}
