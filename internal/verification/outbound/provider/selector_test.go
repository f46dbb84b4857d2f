package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

func TestSelectorFailsClosed(t *testing.T) {
	// Arrange
	s := NewSelector(newTestOptions(t, clock.NewManual(time.Unix(0, 0))))

	// Act
	_, unknownErr := s.Select("carrier-pigeon")
	tw, err := s.Select("Twilio")

	// Assert
	if !errors.Is(unknownErr, entity.ErrConfiguration) {
		t.Fatalf("Select(unknown) error = %v, want configuration", unknownErr)
	}
	if err != nil {
		t.Fatalf("Select(twilio) error = %v", err)
	}
	if tw.Info().Configured {
		t.Errorf("twilio should report unconfigured")
	}
	if _, err := tw.Send(context.Background(), entity.ChannelSMS, testSubject); !errors.Is(err, entity.ErrConfiguration) {
		t.Errorf("Send() error = %v, want configuration", err)
	}
	if _, err := tw.Verify(context.Background(), testSubject, "123456"); !errors.Is(err, entity.ErrConfiguration) {
		t.Errorf("Verify() error = %v, want configuration", err)
	}
}

func TestSelectorCatalog(t *testing.T) {
	opts := newTestOptions(t, clock.NewManual(time.Unix(0, 0)))
	opts.OTPless = OTPlessConfig{ClientID: "cid", ClientSecret: "secret"}
	s := NewSelector(opts)

	catalog := s.Catalog()

	if len(catalog) != 4 {
		t.Fatalf("len(catalog) = %d", len(catalog))
	}
	want := []string{NameMock, NameTwilio, NameMessageCentral, NameOTPless}
	for i, info := range catalog {
		if info.Name != want[i] {
			t.Errorf("catalog[%d] = %s, want %s", i, info.Name, want[i])
		}
	}
	if !catalog[0].Configured || catalog[1].Configured || !catalog[3].Configured {
		t.Errorf("unexpected configured flags %+v", catalog)
	}
}

func TestAPIClientRetriesOnlyDeclinedRequests(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{name: "503 then ok", statuses: []int{503, 200}, wantCalls: 2},
		{name: "429 exhausts retries", statuses: []int{429, 429, 429}, wantCalls: 3, wantErr: true},
		{name: "500 is not retried", statuses: []int{500, 200}, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[min(int(n), len(tt.statuses))-1])
			}))
			defer srv.Close()

			opts := newTestOptions(t, clock.NewManual(time.Unix(0, 0)))
			opts.HTTP = HTTPConfig{MaxRetries: 2, RetryBase: time.Millisecond}
			c := newAPIClient("test", opts)

			// Act
			_, err := c.do(context.Background(), apiRequest{Op: "Call", Method: http.MethodGet, URL: srv.URL})

			// Assert
			if (err != nil) != tt.wantErr {
				t.Fatalf("do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}
