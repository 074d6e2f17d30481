// Package asset defines the asset record shared between storage, the
// application layer and the plugin event payloads.
package asset

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Type is the category of an asset.
type Type string

// Asset types.
const (
	TypeCash          Type = "cash"
	TypeBankDeposit   Type = "bank_deposit"
	TypeStock         Type = "stock"
	TypeFund          Type = "fund"
	TypeBond          Type = "bond"
	TypeRealEstate    Type = "real_estate"
	TypeVehicle       Type = "vehicle"
	TypeCrypto        Type = "crypto"
	TypePreciousMetal Type = "precious_metal"
	TypeOther         Type = "other"
)

// Types lists every known asset type.
var Types = []Type{
	TypeCash,
	TypeBankDeposit,
	TypeStock,
	TypeFund,
	TypeBond,
	TypeRealEstate,
	TypeVehicle,
	TypeCrypto,
	TypePreciousMetal,
	TypeOther,
}

var typeAliases = map[string]Type{
	"bank":           TypeBankDeposit,
	"property":       TypeRealEstate,
	"car":            TypeVehicle,
	"cryptocurrency": TypeCrypto,
	"gold":           TypePreciousMetal,
	"silver":         TypePreciousMetal,
}

// ParseType parses a user supplied type name. Matching is case-insensitive,
// common aliases are accepted and unknown names map to TypeOther.
func ParseType(s string) Type {
	name := strings.ToLower(strings.TrimSpace(s))
	if t, ok := typeAliases[name]; ok {
		return t
	}
	for _, t := range Types {
		if string(t) == name {
			return t
		}
	}
	return TypeOther
}

// TypeLabelKey is the metadata key holding the name an "other" asset was
// created with.
const TypeLabelKey = "type_label"

// CustomTypeLabel returns the trimmed input when ParseType would fold it
// into TypeOther, and "" for known names, aliases and "other" itself.
func CustomTypeLabel(s string) string {
	label := strings.TrimSpace(s)
	if label == "" || ParseType(label) != TypeOther || strings.EqualFold(label, string(TypeOther)) {
		return ""
	}
	return label
}

// Currency is an upper-case currency code.
type Currency string

// Known currencies.
const (
	CurrencyCNY Currency = "CNY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyHKD Currency = "HKD"
)

// DefaultCurrency is used when none is given.
const DefaultCurrency = CurrencyCNY

// ParseCurrency normalizes a currency code. RMB is an alias of CNY and an
// empty code yields DefaultCurrency. Unknown codes are kept upper-cased.
func ParseCurrency(s string) Currency {
	code := strings.ToUpper(strings.TrimSpace(s))
	switch code {
	case "":
		return DefaultCurrency
	case "RMB":
		return CurrencyCNY
	default:
		return Currency(code)
	}
}

// Asset is a single tracked holding.
type Asset struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Type        Type            `json:"asset_type"`
	Value       float64         `json:"value"`
	Currency    Currency        `json:"currency"`
	Description *string         `json:"description"`
	Tags        []string        `json:"tags"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EmptyMetadata is the metadata document of a new asset.
var EmptyMetadata = json.RawMessage(`{}`)

// New creates an asset with a fresh id, the default currency and empty
// tags and metadata.
func New(name string, t Type, value float64) *Asset {
	now := time.Now().UTC()
	return &Asset{
		ID:        uuid.New(),
		Name:      name,
		Type:      t,
		Value:     value,
		Currency:  DefaultCurrency,
		Tags:      []string{},
		Metadata:  append(json.RawMessage(nil), EmptyMetadata...),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithCurrency sets the currency.
func (a *Asset) WithCurrency(c Currency) *Asset {
	a.Currency = c
	return a
}

// WithDescription sets the description.
func (a *Asset) WithDescription(desc string) *Asset {
	a.Description = &desc
	return a
}

// WithTags replaces the tags.
func (a *Asset) WithTags(tags []string) *Asset {
	if tags == nil {
		tags = []string{}
	}
	a.Tags = tags
	return a
}

// WithMetadata replaces the metadata document. Empty input resets it to {}.
func (a *Asset) WithMetadata(meta json.RawMessage) *Asset {
	if len(meta) == 0 {
		meta = EmptyMetadata
	}
	a.Metadata = append(json.RawMessage(nil), meta...)
	return a
}

// WithTypeLabel records a custom type name in the metadata. An empty label
// is ignored.
func (a *Asset) WithTypeLabel(label string) *Asset {
	if label == "" {
		return a
	}
	doc := a.Metadata
	if len(doc) == 0 {
		doc = EmptyMetadata
	}
	if out, err := sjson.SetBytes(doc, TypeLabelKey, label); err == nil {
		a.Metadata = out
	}
	return a
}

// TypeLabel returns the custom type name, falling back to the type itself.
func (a *Asset) TypeLabel() string {
	if a.Type == TypeOther {
		if v := gjson.GetBytes(a.Metadata, TypeLabelKey); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return string(a.Type)
}

// SetValue updates the value and the modification time.
func (a *Asset) SetValue(value float64) {
	a.Value = value
	a.Touch()
}

// Touch sets UpdatedAt to now.
func (a *Asset) Touch() {
	a.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy.
func (a *Asset) Clone() *Asset {
	cp := *a
	if a.Description != nil {
		d := *a.Description
		cp.Description = &d
	}
	cp.Tags = append([]string{}, a.Tags...)
	cp.Metadata = append(json.RawMessage(nil), a.Metadata...)
	return &cp
}
