// Package security は上流API呼び出しと表示テキストの安全性を担保する機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は上流APIとして許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は上流APIとして許可しないネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// SSRFGuard は上流APIのURL検証とSSRF防止付きHTTPクライアントの生成を行う。
// 打ち上げ一覧APIとロケット詳細APIのURLは環境変数で差し替え可能なため、
// 内部ネットワークへの誤設定を起動時と接続時の両方で防ぐ。
type SSRFGuard struct {
	enabled bool
}

// NewSSRFGuard はSSRFGuardを生成する。
// enabledがfalseの場合は検証を行わず、通常のHTTPクライアントを返す（ローカル検証用）。
func NewSSRFGuard(enabled bool) *SSRFGuard {
	return &SSRFGuard{enabled: enabled}
}

// Enabled はSSRF防止が有効かどうかを返す。
func (g *SSRFGuard) Enabled() bool {
	return g.enabled
}

// NewHTTPClient は上流API呼び出し用のHTTPクライアントを生成する。
// 有効時はsafeurlにより、プライベートIP・ループバック・リンクローカル・
// メタデータIPへの接続がDNS解決後のDialerレベルでブロックされる。
func (g *SSRFGuard) NewHTTPClient(timeout time.Duration) *http.Client {
	if !g.enabled {
		return &http.Client{Timeout: timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoints は上流APIのURLを静的に検証する。
// 無効時もURLとしての形式（スキームとホスト）は検証する。
func (g *SSRFGuard) ValidateEndpoints(rawURLs ...string) error {
	for _, rawURL := range rawURLs {
		if err := g.validate(rawURL); err != nil {
			return fmt.Errorf("invalid upstream endpoint %q: %w", rawURL, err)
		}
	}
	return nil
}

func (g *SSRFGuard) validate(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host")
	}

	if !g.enabled {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
