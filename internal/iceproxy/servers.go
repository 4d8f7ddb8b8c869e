// Package iceproxy hands browsers the ICE server list they need before they
// create a peer connection: static STUN plus short-lived TURN credentials.
package iceproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

type iceServerJSON struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   string              `json:"username,omitempty"`
	Credential string              `json:"credential,omitempty"`
}

type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// parseServers accepts a bare array, {"iceServers":[...]} or
// {"iceServers":{...}} and validates every entry.
func parseServers(raw []byte) ([]webrtc.ICEServer, error) {
	var list []iceServerJSON
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			ICEServers json.RawMessage `json:"iceServers"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil || len(wrapped.ICEServers) == 0 {
			return nil, fmt.Errorf("iceproxy: unrecognized ice server payload: %w", err)
		}
		if err := json.Unmarshal(wrapped.ICEServers, &list); err != nil {
			var one iceServerJSON
			if err := json.Unmarshal(wrapped.ICEServers, &one); err != nil {
				return nil, fmt.Errorf("iceproxy: iceServers: %w", err)
			}
			list = []iceServerJSON{one}
		}
	}

	out := make([]webrtc.ICEServer, 0, len(list))
	for i, s := range list {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		srv := webrtc.ICEServer{URLs: urls, Username: strings.TrimSpace(s.Username)}
		if strings.TrimSpace(s.Credential) != "" {
			srv.Credential = s.Credential
		}
		if err := validateServer(srv); err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, srv)
	}
	return out, nil
}

func validateServer(s webrtc.ICEServer) error {
	if len(s.URLs) == 0 {
		return errors.New("missing urls")
	}
	if hasTURNURL(s) {
		if strings.TrimSpace(s.Username) == "" {
			return errors.New("turn urls require username")
		}
		cred, ok := s.Credential.(string)
		if !ok || strings.TrimSpace(cred) == "" {
			return errors.New("turn urls require credential")
		}
	}
	for _, u := range s.URLs {
		if !allowedScheme(u) {
			return fmt.Errorf("unsupported url scheme: %q", u)
		}
	}
	return nil
}

func allowedScheme(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	for _, p := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

func hasTURNURL(s webrtc.ICEServer) bool {
	for _, u := range s.URLs {
		u = strings.ToLower(strings.TrimSpace(u))
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}
