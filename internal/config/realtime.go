package config

import (
	"fmt"
	"net/url"
)

// DeriveRealtimeURL maps the API base URL to its notification endpoint:
// http becomes ws, https becomes wss and "/realtime" is appended to the path.
func DeriveRealtimeURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("api url must use http or https, got %q", u.Scheme)
	}
	return u.JoinPath("realtime").String(), nil
}
