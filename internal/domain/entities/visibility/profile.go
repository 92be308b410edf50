// Package visibility provides domain entities for per-viewer content
// visibility: the viewer profile, the declarative rule attached to pages
// and blocks, and the device classification both of them share.
package visibility

import (
	"encoding/json"
	"sort"
	"strings"
)

// DeviceClass is the coarse viewport classification used by rules.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
)

// MobileBreakpoint is the widest viewport, in logical pixels, still treated as mobile.
const MobileBreakpoint = 768

// ClassifyDevice maps a viewport width to a device class.
func ClassifyDevice(width int) DeviceClass {
	if width <= MobileBreakpoint {
		return DeviceMobile
	}
	return DeviceDesktop
}

// ParseDeviceClass normalizes a device class name. Unknown names are
// returned verbatim so they never match a real class.
func ParseDeviceClass(value string) DeviceClass {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch DeviceClass(normalized) {
	case DeviceMobile, DeviceDesktop:
		return DeviceClass(normalized)
	}
	return DeviceClass(value)
}

// IsValid reports whether d is one of the known device classes.
func (d DeviceClass) IsValid() bool {
	return d == DeviceMobile || d == DeviceDesktop
}

// Profile holds what is known about the viewer at evaluation time.
// A profile is never modified after construction; a change in the
// underlying data produces a new profile.
type Profile struct {
	IsAuthenticated  bool
	TokenBalance     int
	UsedAnalyzerIDs  map[string]struct{}
	JoinedContestIDs map[string]struct{}
	DeviceClass      DeviceClass
}

// NewProfile builds a fully populated profile from raw facts.
func NewProfile(authenticated bool, tokenBalance int, usedAnalyzerIDs, joinedContestIDs []string, device DeviceClass) Profile {
	if tokenBalance < 0 {
		tokenBalance = 0
	}
	if !device.IsValid() {
		device = DeviceDesktop
	}
	return Profile{
		IsAuthenticated:  authenticated,
		TokenBalance:     tokenBalance,
		UsedAnalyzerIDs:  toSet(usedAnalyzerIDs),
		JoinedContestIDs: toSet(joinedContestIDs),
		DeviceClass:      device,
	}
}

// FailClosedProfile is the most restrictive profile: unauthenticated,
// no tokens, no history. It stands in whenever the real profile cannot be loaded.
func FailClosedProfile(device DeviceClass) Profile {
	return NewProfile(false, 0, nil, nil, device)
}

// WithDevice returns a copy of the profile classified for another device.
// The id sets are shared, which is safe because profiles are read-only.
func (p Profile) WithDevice(device DeviceClass) Profile {
	if !device.IsValid() {
		device = DeviceDesktop
	}
	p.DeviceClass = device
	return p
}

func (p Profile) HasUsedAnalyzer(id string) bool {
	_, ok := p.UsedAnalyzerIDs[id]
	return ok
}

func (p Profile) HasUsedAnyAnalyzer() bool {
	return len(p.UsedAnalyzerIDs) > 0
}

func (p Profile) HasJoinedContest(id string) bool {
	_, ok := p.JoinedContestIDs[id]
	return ok
}

func (p Profile) HasJoinedAnyContest() bool {
	return len(p.JoinedContestIDs) > 0
}

// UsedAnalyzerList returns the used analyzer ids sorted.
func (p Profile) UsedAnalyzerList() []string {
	return fromSet(p.UsedAnalyzerIDs)
}

// JoinedContestList returns the joined contest ids sorted.
func (p Profile) JoinedContestList() []string {
	return fromSet(p.JoinedContestIDs)
}

type profileJSON struct {
	IsAuthenticated  bool        `json:"isAuthenticated"`
	TokenBalance     int         `json:"tokenBalance"`
	UsedAnalyzerIDs  []string    `json:"usedAnalyzerIds"`
	JoinedContestIDs []string    `json:"joinedContestIds"`
	DeviceClass      DeviceClass `json:"deviceClass"`
}

// MarshalJSON renders the id sets as sorted arrays.
func (p Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(profileJSON{
		IsAuthenticated:  p.IsAuthenticated,
		TokenBalance:     p.TokenBalance,
		UsedAnalyzerIDs:  p.UsedAnalyzerList(),
		JoinedContestIDs: p.JoinedContestList(),
		DeviceClass:      p.DeviceClass,
	})
}

// UnmarshalJSON decodes a profile and normalizes it through NewProfile,
// so missing fields take the fail-closed defaults.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewProfile(raw.IsAuthenticated, raw.TokenBalance, raw.UsedAnalyzerIDs, raw.JoinedContestIDs, ParseDeviceClass(string(raw.DeviceClass)))
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func fromSet(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
