package domain

import (
	"strings"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
)

// ProcessorKind separates payout processors from transfer processors.
type ProcessorKind string

const (
	ProcessorKindPayout   ProcessorKind = "payout"
	ProcessorKindTransfer ProcessorKind = "transfer"
)

// ProcessorName is the closed set of processor implementations.
type ProcessorName string

const (
	ProcessorOnChainPayout     ProcessorName = "OnChainAutomatedPayoutSenderFactory"
	ProcessorLightningPayout   ProcessorName = "LightningAutomatedPayoutSenderFactory"
	ProcessorOnChainTransfer   ProcessorName = "OnChainAutomatedTransferSenderFactory"
	ProcessorLightningTransfer ProcessorName = "LightningAutomatedTransferSenderFactory"
)

type processorSpec struct {
	kind     ProcessorKind
	payments []PaymentType
}

var processorSpecs = map[ProcessorName]processorSpec{
	ProcessorOnChainPayout:     {kind: ProcessorKindPayout, payments: []PaymentType{PaymentTypeChain}},
	ProcessorLightningPayout:   {kind: ProcessorKindPayout, payments: []PaymentType{PaymentTypeLightning, PaymentTypeLNURL}},
	ProcessorOnChainTransfer:   {kind: ProcessorKindTransfer, payments: []PaymentType{PaymentTypeChain}},
	ProcessorLightningTransfer: {kind: ProcessorKindTransfer, payments: []PaymentType{PaymentTypeLightning}},
}

// IsKnownProcessorName reports whether name is one of the processor implementations, of any kind.
func IsKnownProcessorName(name string) bool {
	_, ok := processorSpecs[ProcessorName(name)]
	return ok
}

// ParseProcessorName validates name against the processors of the given kind.
// A name that exists but belongs to another kind is reported as not found.
func ParseProcessorName(kind ProcessorKind, name string) (ProcessorName, error) {
	spec, ok := processorSpecs[ProcessorName(name)]
	if !ok {
		return "", apperrors.NewInvalidTokenError(name, "unknown processor")
	}
	if spec.kind != kind {
		return "", apperrors.ErrNotFound
	}
	return ProcessorName(name), nil
}

// Kind returns the kind the processor belongs to.
func (n ProcessorName) Kind() ProcessorKind {
	return processorSpecs[n].kind
}

// Supports reports whether the processor can handle the payment method's type.
func (n ProcessorName) Supports(pm PaymentMethodID) bool {
	for _, t := range processorSpecs[n].payments {
		if t == pm.Type {
			return true
		}
	}
	return false
}

// PaymentType is the rail a payment method settles on.
type PaymentType string

const (
	PaymentTypeChain     PaymentType = "CHAIN"
	PaymentTypeLightning PaymentType = "LN"
	PaymentTypeLNURL     PaymentType = "LNURL"
)

// legacy spellings still accepted on input
var paymentTypeAliases = map[string]PaymentType{
	"CHAIN":            PaymentTypeChain,
	"ONCHAIN":          PaymentTypeChain,
	"LN":               PaymentTypeLightning,
	"LIGHTNING":        PaymentTypeLightning,
	"LIGHTNINGNETWORK": PaymentTypeLightning,
	"LNURL":            PaymentTypeLNURL,
	"LNURLPAY":         PaymentTypeLNURL,
}

// PaymentMethodID identifies a payment method, e.g. BTC-CHAIN.
type PaymentMethodID struct {
	CryptoCode string
	Type       PaymentType
}

// ParsePaymentMethodID accepts "BTC-CHAIN", "BTC-LN", "BTC-LNURL", "BTC" (on-chain)
// and the legacy "BTC-LightningNetwork"/"BTC-OnChain" forms.
func ParsePaymentMethodID(raw string) (PaymentMethodID, error) {
	s := strings.TrimSpace(raw)
	code, typ, hasType := strings.Cut(s, "-")
	if !isAssetCode(code) {
		return PaymentMethodID{}, apperrors.NewInvalidTokenError(raw, "invalid crypto code")
	}
	pm := PaymentMethodID{CryptoCode: strings.ToUpper(code), Type: PaymentTypeChain}
	if hasType {
		t, ok := paymentTypeAliases[strings.ToUpper(typ)]
		if !ok {
			return PaymentMethodID{}, apperrors.NewInvalidTokenError(raw, "unknown payment type")
		}
		pm.Type = t
	}
	return pm, nil
}

// String returns the canonical CODE-TYPE form.
func (p PaymentMethodID) String() string {
	return p.CryptoCode + "-" + string(p.Type)
}

// MarshalText implements encoding.TextMarshaler.
func (p PaymentMethodID) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ProcessorState is the lifecycle of a running processor.
type ProcessorState string

const (
	ProcessorStateRunning       ProcessorState = "Running"
	ProcessorStateStopRequested ProcessorState = "StopRequested"
	ProcessorStateStopped       ProcessorState = "Stopped"
)

// ProcessorRecord describes one processor instance owned by the processor host.
type ProcessorRecord struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"storeId"`
	Kind          ProcessorKind   `json:"kind"`
	Name          ProcessorName   `json:"processor"`
	PaymentMethod PaymentMethodID `json:"paymentMethod"`
	State         ProcessorState  `json:"state"`
	StartedAt     time.Time       `json:"startedAt"`
}

// ProcessorQuery selects at most one processor.
type ProcessorQuery struct {
	StoreID       string
	Kind          ProcessorKind
	Name          ProcessorName
	PaymentMethod PaymentMethodID
}
