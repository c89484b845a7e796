package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPClient_Timeout(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		guard := NewSSRFGuard(enabled)
		client := guard.NewHTTPClient(5 * time.Second)
		if client == nil {
			t.Fatalf("NewHTTPClient() returned nil (enabled=%v)", enabled)
		}
		if client.Timeout != 5*time.Second {
			t.Errorf("enabled=%v: expected timeout %v, got %v", enabled, 5*time.Second, client.Timeout)
		}
	}
}

// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewHTTPClient_EnabledHasCustomTransport(t *testing.T) {
	client := NewSSRFGuard(true).NewHTTPClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、有効時はsafeurlがブロックする。
func TestNewHTTPClient_EnabledBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard(true).NewHTTPClient(5 * time.Second)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestNewHTTPClient_DisabledAllowsLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard(false).NewHTTPClient(5 * time.Second)

	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestValidateEndpoints_PublicURL(t *testing.T) {
	guard := NewSSRFGuard(true)

	err := guard.ValidateEndpoints(
		"https://api.spacexdata.com/v5/launches",
		"https://api.spacexdata.com/v4/rockets",
		"http://mirror.example.org/launches",
	)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateEndpoints_BlockedHosts(t *testing.T) {
	guard := NewSSRFGuard(true)

	tests := []struct {
		name string
		url  string
	}{
		{"private 10.x", "http://10.0.0.1/launches"},
		{"private 172.16.x", "http://172.16.0.1/launches"},
		{"private 192.168.x", "http://192.168.1.1/launches"},
		{"loopback", "http://127.0.0.1:8080/launches"},
		{"localhost", "http://localhost/launches"},
		{"link local", "http://169.254.1.1/"},
		{"metadata", "http://169.254.169.254/latest/meta-data/"},
		{"zero address", "http://0.0.0.0/"},
		{"ipv6 loopback", "http://[::1]/launches"},
		{"ipv6 unique local", "http://[fd00::1]/launches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateEndpoints(tt.url); err == nil {
				t.Errorf("expected error for %s, got nil", tt.url)
			}
		})
	}
}

func TestValidateEndpoints_InvalidURL(t *testing.T) {
	tests := []string{
		"",
		"ftp://example.com/launches",
		"file:///etc/passwd",
		"://missing-scheme",
		"https://",
	}

	// 形式の検証は無効時も行われる
	for _, enabled := range []bool{true, false} {
		guard := NewSSRFGuard(enabled)
		for _, u := range tests {
			if err := guard.ValidateEndpoints(u); err == nil {
				t.Errorf("enabled=%v: expected error for %q, got nil", enabled, u)
			}
		}
	}
}

func TestValidateEndpoints_DisabledAllowsPrivate(t *testing.T) {
	guard := NewSSRFGuard(false)

	if err := guard.ValidateEndpoints("http://127.0.0.1:8080/launches", "http://localhost/rockets"); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestValidateEndpoints_ErrorNamesURL(t *testing.T) {
	guard := NewSSRFGuard(true)

	err := guard.ValidateEndpoints("https://api.spacexdata.com/v5/launches", "http://10.0.0.1/rockets")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "10.0.0.1") {
		t.Errorf("error should name the offending URL, got %q", err.Error())
	}
}
