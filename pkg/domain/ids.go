// Package domain holds typed identifiers shared across exchange, verification
// and transport layers. Parsing happens at trust boundaries; everything past
// a Parse call can assume a well-formed value.
package domain

import (
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "trustex/pkg/domain-errors"
)

type (
	CompanyID  uuid.UUID
	JobID      uuid.UUID
	TransferID uuid.UUID
)

func NewCompanyID() CompanyID   { return CompanyID(uuid.New()) }
func NewJobID() JobID           { return JobID(uuid.New()) }
func NewTransferID() TransferID { return TransferID(uuid.New()) }

func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID(s, "company ID")
	return CompanyID(u), err
}

func ParseJobID(s string) (JobID, error) {
	u, err := parseUUID(s, "job ID")
	return JobID(u), err
}

func ParseTransferID(s string) (TransferID, error) {
	u, err := parseUUID(s, "transfer ID")
	return TransferID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func (id CompanyID) String() string  { return uuid.UUID(id).String() }
func (id JobID) String() string      { return uuid.UUID(id).String() }
func (id TransferID) String() string { return uuid.UUID(id).String() }

func (id CompanyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id JobID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func (id CompanyID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id JobID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id TransferID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CompanyID) UnmarshalText(b []byte) error {
	parsed, err := ParseCompanyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *JobID) UnmarshalText(b []byte) error {
	parsed, err := ParseJobID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TransferID) UnmarshalText(b []byte) error {
	parsed, err := ParseTransferID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Principal is an authenticated caller identity (the JWT subject).
type Principal string

const maxPrincipalLength = 128

// ParsePrincipal rejects empty, oversized, non-UTF8 and whitespace/control
// containing identities.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(s) > maxPrincipalLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "principal contains invalid characters")
		}
	}
	return Principal(s), nil
}

func (p Principal) String() string { return string(p) }
func (p Principal) IsZero() bool   { return p == "" }

// Symbol is an uppercase ticker of 3 to 5 letters or digits.
type Symbol string

const (
	MinSymbolLength = 3
	MaxSymbolLength = 5
)

func ParseSymbol(s string) (Symbol, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < MinSymbolLength || len(s) > MaxSymbolLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "symbol must be 3 to 5 characters")
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "symbol must contain only letters and digits")
		}
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }

// Subaccount optionally partitions a principal's holdings. The zero value is
// the default subaccount.
type Subaccount string

const maxSubaccountBytes = 32

// ParseSubaccount accepts an empty string or up to 32 hex-encoded bytes.
func ParseSubaccount(s string) (Subaccount, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "subaccount must be hex encoded")
	}
	if len(b) > maxSubaccountBytes {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subaccount exceeds 32 bytes")
	}
	return Subaccount(s), nil
}

func (s Subaccount) String() string { return string(s) }
