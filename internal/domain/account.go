package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProviderKind identifies the brokerage behind an account.
type ProviderKind string

const (
	// ProviderTrading212 is the only supported provider.
	ProviderTrading212 ProviderKind = "trading_212"
)

// Account is a user's brokerage account as stored by the store API
type Account struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"userId"`
	Name     string          `json:"name"`
	Provider ProviderKind    `json:"provider"`
	Token    string          `json:"token"`
	Metadata AccountMetadata `json:"metadata"`
}

// AccountMetadata holds per-account sync bookkeeping.
// Keys the sync engine does not know about are kept in Extra and written back untouched.
type AccountMetadata struct {
	CurrencyCode            string     `json:"currencyCode,omitempty"`
	DividendsSyncedOn       *time.Time `json:"dividendsSyncedOn,omitempty"`
	AccountSnapshotSyncedOn *time.Time `json:"accountSnapshotSyncedOn,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownMetadataKeys = map[string]bool{
	"currencyCode":            true,
	"dividendsSyncedOn":       true,
	"accountSnapshotSyncedOn": true,
}

type accountMetadataAlias AccountMetadata

// MarshalJSON merges the known fields over Extra.
func (m AccountMetadata) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(accountMetadataAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(m.Extra)+len(knownMetadataKeys))
	for k, v := range m.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON keeps unknown keys in Extra. Empty sync timestamps are treated as absent.
func (m *AccountMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode account metadata: %w", err)
	}

	*m = AccountMetadata{}
	for k, v := range raw {
		if knownMetadataKeys[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}

	if v, ok := raw["currencyCode"]; ok {
		_ = json.Unmarshal(v, &m.CurrencyCode)
	}

	var err error
	if m.DividendsSyncedOn, err = parseOptionalTime(raw["dividendsSyncedOn"]); err != nil {
		return fmt.Errorf("invalid dividendsSyncedOn: %w", err)
	}
	if m.AccountSnapshotSyncedOn, err = parseOptionalTime(raw["accountSnapshotSyncedOn"]); err != nil {
		return fmt.Errorf("invalid accountSnapshotSyncedOn: %w", err)
	}
	return nil
}

func parseOptionalTime(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MetadataPatch describes a partial update of AccountMetadata. Nil fields are left as they are.
type MetadataPatch struct {
	DividendsSyncedOn       *time.Time
	AccountSnapshotSyncedOn *time.Time
}

// Apply returns a copy of m with the patch applied.
func (m AccountMetadata) Apply(p MetadataPatch) AccountMetadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	if p.DividendsSyncedOn != nil {
		t := *p.DividendsSyncedOn
		out.DividendsSyncedOn = &t
	}
	if p.AccountSnapshotSyncedOn != nil {
		t := *p.AccountSnapshotSyncedOn
		out.AccountSnapshotSyncedOn = &t
	}
	return out
}
