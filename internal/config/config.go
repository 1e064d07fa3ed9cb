package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// Config holds runtime settings for the lounge server. All values come
// from the environment and are read exactly once at process startup;
// there is no hot-reload.
type Config struct {
	// Addr is the TCP listen address for the WebSocket endpoint.
	Addr string

	// Secret is the HMAC key shared with the web tier that issues the
	// signed connection credentials. Required — there is deliberately no
	// default.
	Secret string

	// DirectoryURL optionally points at an external directory backend
	// for multi-process deployments. Accepted and validated, but the
	// baseline build always runs the in-memory directory.
	DirectoryURL string

	TURN TURN
}

// TURN configures the optional TURN entry appended to the ICE server
// list handed to call parties. Username and Credential are static
// values; time-limited credential generation is not implemented.
type TURN struct {
	URL        string
	Username   string
	Credential string
}

// Enabled reports whether a TURN server is configured at all.
func (t TURN) Enabled() bool { return t.URL != "" }

// FromEnv builds a validated Config from LOUNGE_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:         envOr("LOUNGE_ADDR", ":8443"),
		Secret:       os.Getenv("LOUNGE_SECRET"),
		DirectoryURL: strings.TrimSpace(os.Getenv("LOUNGE_DIRECTORY_URL")),
		TURN: TURN{
			URL:        strings.TrimSpace(os.Getenv("LOUNGE_TURN_URL")),
			Username:   os.Getenv("LOUNGE_TURN_USERNAME"),
			Credential: os.Getenv("LOUNGE_TURN_CREDENTIAL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	// Listen address
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("listen address is required")
	}
	if _, port, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("LOUNGE_ADDR: %w", err)
	} else if port == "" {
		return errors.New("LOUNGE_ADDR: missing port")
	}

	// Signing secret — fail closed. A hardcoded fallback here would let
	// anyone mint valid connection credentials.
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("LOUNGE_SECRET is required")
	}

	// Directory backend
	if c.DirectoryURL != "" {
		if err := validateBackendURL(c.DirectoryURL); err != nil {
			return fmt.Errorf("LOUNGE_DIRECTORY_URL: %w", err)
		}
	}

	// TURN: URL, username and credential travel together.
	if c.TURN.Enabled() {
		if !strings.HasPrefix(c.TURN.URL, "turn:") && !strings.HasPrefix(c.TURN.URL, "turns:") {
			return errors.New("LOUNGE_TURN_URL: scheme must be turn or turns")
		}
		if c.TURN.Username == "" || c.TURN.Credential == "" {
			return errors.New("LOUNGE_TURN_USERNAME and LOUNGE_TURN_CREDENTIAL are required when LOUNGE_TURN_URL is set")
		}
	} else if c.TURN.Username != "" || c.TURN.Credential != "" {
		return errors.New("LOUNGE_TURN_URL is required when TURN credentials are set")
	}

	return nil
}

func validateBackendURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "redis" && u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be redis, http or https")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	host := u.Hostname()
	if host == "0.0.0.0" {
		return errors.New("host must not be 0.0.0.0")
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return errors.New("host must not be unspecified")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
