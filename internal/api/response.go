package api

import "github.com/stupside/thumbmark/internal/component"

// Response is the body returned by the scoring API.
type Response struct {
	Version    string           `json:"version,omitempty"`
	Components component.Record `json:"components,omitempty"`
	VisitorID  string           `json:"visitorId,omitempty"`
	Thumbmark  string           `json:"thumbmark,omitempty"`
	Info       *Info            `json:"info,omitempty"`
}

// Info is what the API knows about the caller beyond the fingerprint.
type Info struct {
	IPAddress      *IPAddress      `json:"ip_address,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Uniqueness     *Uniqueness     `json:"uniqueness,omitempty"`
	TimedOut       bool            `json:"timed_out,omitempty"`
}

type IPAddress struct {
	IPAddress              string `json:"ip_address"`
	IPIdentifier           string `json:"ip_identifier"`
	AutonomousSystemNumber int64  `json:"autonomous_system_number"`
	IPVersion              string `json:"ip_version"`
}

// Classification flags the network the caller comes from. DangerLevel ranges
// from 0 to 5; 5 should be blocked.
type Classification struct {
	Tor         bool `json:"tor"`
	VPN         bool `json:"vpn"`
	Bot         bool `json:"bot"`
	Datacenter  bool `json:"datacenter"`
	DangerLevel int  `json:"danger_level"`
}

// Uniqueness carries a numeric score, or a string such as "api only".
type Uniqueness struct {
	Score any `json:"score"`
}

// APIOnly is the info reported when no API response is available.
func APIOnly() *Info {
	return &Info{Uniqueness: &Uniqueness{Score: "api only"}}
}
