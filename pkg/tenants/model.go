package tenants

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Credential is one stored platform access grant. AccessToken never leaves the store except through Store.Get.
type Credential struct {
	Shop        string // tenant identity, primary key
	AccessToken string
	Scope       string
	InstalledAt time.Time
}

// Installation is the secret-free view of a Credential used for enumeration.
type Installation struct {
	Shop        string    `json:"shop"`
	InstalledAt time.Time `json:"installed_at"`
}

var hostLabels = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// NormalizeShop canonicalises a user-supplied tenant identity into a bare lowercase host name.
// Schemes, ports and trailing slashes are stripped; paths, credentials and single-label names are rejected.
// When suffix is non-empty the host must end with it.
func NormalizeShop(raw, suffix string) (string, error) {
	v := strings.TrimSpace(strings.ToLower(raw))
	if v == "" {
		return "", fmt.Errorf("shop domain is required")
	}
	if strings.Contains(v, "://") {
		u, err := url.Parse(v)
		if err != nil || u.User != nil {
			return "", fmt.Errorf("invalid shop domain")
		}
		if p := strings.TrimSuffix(u.Path, "/"); p != "" || u.RawQuery != "" {
			return "", fmt.Errorf("shop domain must not include a path")
		}
		v = u.Host
	}
	if host, _, err := net.SplitHostPort(v); err == nil {
		v = host
	}
	v = strings.TrimSuffix(v, "/")
	if !hostLabels.MatchString(v) {
		return "", fmt.Errorf("invalid shop domain")
	}
	if suffix = strings.TrimSpace(strings.ToLower(suffix)); suffix != "" && !strings.HasSuffix(v, suffix) {
		return "", fmt.Errorf("shop domain must end with %q", suffix)
	}
	return v, nil
}
