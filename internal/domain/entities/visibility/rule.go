package visibility

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Rule is the declarative predicate attached to a page or block.
// Every field is optional; a rule passes when all present conditions pass.
type Rule struct {
	RequiresAuth        *bool        `json:"requiresAuth,omitempty"`
	LoggedIn            *bool        `json:"loggedIn,omitempty"` // alias of RequiresAuth
	MinTokens           *int         `json:"minTokens,omitempty"`
	HasUsedAnalyzer     *string      `json:"hasUsedAnalyzer,omitempty"`
	HasUsedAnyAnalyzer  *bool        `json:"hasUsedAnyAnalyzer,omitempty"`
	JoinedContest       *string      `json:"joinedContest,omitempty"`
	HasJoinedAnyContest *bool        `json:"hasJoinedAnyContest,omitempty"`
	Device              *DeviceClass `json:"device,omitempty"`

	// Role and Roles are kept for stored rules that carry them. Profiles
	// have no role, so they take no part in evaluation.
	Role  *string  `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// IsEmpty reports whether the rule imposes no evaluated condition.
func (r *Rule) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.RequiresAuth == nil &&
		r.LoggedIn == nil &&
		r.MinTokens == nil &&
		r.HasUsedAnalyzer == nil &&
		r.HasUsedAnyAnalyzer == nil &&
		r.JoinedContest == nil &&
		r.HasJoinedAnyContest == nil &&
		r.Device == nil
}

// NeedsAuth reports whether requiresAuth or its loggedIn alias is set to true.
func (r *Rule) NeedsAuth() bool {
	if r == nil {
		return false
	}
	return isTrue(r.RequiresAuth) || isTrue(r.LoggedIn)
}

// ParseRule decodes stored rule JSON. Empty input and null yield nil,
// which means "always visible".
func ParseRule(data []byte) *Rule {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var rule Rule
	_ = rule.UnmarshalJSON(trimmed)
	return &rule
}

// UnmarshalJSON decodes a rule permissively. Unknown keys, values of the
// wrong type, and non-object documents are ignored; it never fails.
func (r *Rule) UnmarshalJSON(data []byte) error {
	*r = Rule{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	r.RequiresAuth = decodeBool(fields["requiresAuth"])
	r.LoggedIn = decodeBool(fields["loggedIn"])
	r.MinTokens = decodeInt(fields["minTokens"])
	r.HasUsedAnalyzer = decodeID(fields["hasUsedAnalyzer"])
	r.HasUsedAnyAnalyzer = decodeBool(fields["hasUsedAnyAnalyzer"])
	r.JoinedContest = decodeID(fields["joinedContest"])
	r.HasJoinedAnyContest = decodeBool(fields["hasJoinedAnyContest"])
	if device := decodeID(fields["device"]); device != nil {
		class := ParseDeviceClass(*device)
		r.Device = &class
	}
	r.Role = decodeString(fields["role"])
	r.Roles = decodeStrings(fields["roles"])

	return nil
}

func absent(raw json.RawMessage) bool {
	return raw == nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func decodeBool(raw json.RawMessage) *bool {
	if absent(raw) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func decodeString(raw json.RawMessage) *string {
	if absent(raw) {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// decodeID treats a blank string as absent, since no profile id or device
// class can match it.
func decodeID(raw json.RawMessage) *string {
	v := decodeString(raw)
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

func decodeStrings(raw json.RawMessage) []string {
	if absent(raw) {
		return nil
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// decodeInt accepts JSON numbers and numeric strings. Fractional
// thresholds round up and values outside the int32 range saturate.
func decodeInt(raw json.RawMessage) *int {
	if absent(raw) {
		return nil
	}

	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
		text = strings.TrimSpace(text)
	}

	// ParseFloat reports ErrRange with a usable ±Inf for overflowing input.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil
	}

	if math.IsNaN(f) {
		return nil
	}
	var v int
	switch {
	case f >= math.MaxInt32:
		v = math.MaxInt32
	case f <= math.MinInt32:
		v = math.MinInt32
	default:
		v = int(math.Ceil(f))
	}
	return &v
}
