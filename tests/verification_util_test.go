package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

// fixedCode matches modules.verification.mock.fixed_code in config/config.yaml.
const fixedCode = "246810"

type sessionData struct {
	ID              string   `json:"id"`
	Step            string   `json:"step"`
	Provider        string   `json:"provider"`
	PhoneNumber     string   `json:"phone_number"`
	Channel         string   `json:"channel"`
	CodeLength      int      `json:"code_length"`
	Digits          []string `json:"digits"`
	Focus           int      `json:"focus"`
	ResendInSeconds int      `json:"resend_in_seconds"`
	CanResend       bool     `json:"can_resend"`
	AccessToken     string   `json:"access_token"`
	Identity        *struct {
		IdentityID  string `json:"identity_id"`
		PhoneNumber string `json:"phone_number"`
		Channel     string `json:"channel"`
	} `json:"identity"`
}

// uniquePhone returns a distinct valid US number per call.
func uniquePhone() string {
	return fmt.Sprintf("+1202555%04d", time.Now().UnixNano()%10000)
}

func sessionPath(id, suffix string) string {
	return "/api/v1/verification/sessions/" + id + suffix
}

func startSession(t *testing.T) sessionData {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, "/api/v1/verification/sessions", nil, "")
	if status != http.StatusCreated {
		errEnv := decodeError(t, body)
		t.Fatalf("start session failed: status=%d message=%q", status, errEnv.Message)
	}

	var data sessionData
	decodeSuccess(t, body, &data)

	return data
}

func submitSubject(t *testing.T, id, phone, channel string) sessionData {
	t.Helper()

	payload := map[string]string{"phone_number": phone, "channel": channel}
	status, body := doJSON(t, http.MethodPost, sessionPath(id, "/subject"), payload, "")
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("submit subject failed: status=%d message=%q", status, errEnv.Message)
	}

	var data sessionData
	decodeSuccess(t, body, &data)

	return data
}

func verifiedSession(t *testing.T) sessionData {
	t.Helper()

	sess := startSession(t)
	submitSubject(t, sess.ID, uniquePhone(), "SMS")

	status, body := doJSON(t, http.MethodPost, sessionPath(sess.ID, "/code"), map[string]string{"code": fixedCode}, "")
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("submit code failed: status=%d message=%q", status, errEnv.Message)
	}

	var data sessionData
	decodeSuccess(t, body, &data)

	return data
}
