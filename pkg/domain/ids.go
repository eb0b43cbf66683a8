package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "corretaje/pkg/domain-errors"
)

// ClientID is the UUID primary key of a client. Clients are only ever
// addressed by this identifier; client_number is display-only.
type ClientID uuid.UUID

// NewClientID returns a fresh random ClientID.
func NewClientID() ClientID {
	return ClientID(uuid.New())
}

// ParseClientID parses a UUID string, rejecting empty, malformed and nil values.
func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s, "client id")
	if err != nil {
		return ClientID{}, err
	}
	return ClientID(u), nil
}

func (c ClientID) String() string { return uuid.UUID(c).String() }

func (c ClientID) IsNil() bool { return uuid.UUID(c) == uuid.Nil }

func (c ClientID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClientID) UnmarshalText(b []byte) error {
	parsed, err := ParseClientID(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan implements sql.Scanner.
func (c *ClientID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*c = ClientID(u)
	return nil
}

// Value implements driver.Valuer.
func (c ClientID) Value() (driver.Value, error) {
	return c.String(), nil
}

// OperatorID is the surrogate key of a system user.
type OperatorID int64

// ParseOperatorID parses a positive integer id.
func ParseOperatorID(s string) (OperatorID, error) {
	n, err := parsePositiveInt(s, "user id")
	if err != nil {
		return 0, err
	}
	return OperatorID(n), nil
}

func (o OperatorID) String() string { return strconv.FormatInt(int64(o), 10) }

// BrokerNumber is the business-visible broker identifier. Operators, links
// and policy movements reference brokers by number, never by surrogate id.
type BrokerNumber int

const (
	MinBrokerNumber BrokerNumber = 1000
	MaxBrokerNumber BrokerNumber = 9999
)

// Validate enforces the four-digit range.
func (n BrokerNumber) Validate() error {
	if n < MinBrokerNumber || n > MaxBrokerNumber {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("broker number must be between %d and %d", MinBrokerNumber, MaxBrokerNumber)).
			WithField("numero")
	}
	return nil
}

// ParseBrokerNumber parses and range-checks a broker number.
func ParseBrokerNumber(s string) (BrokerNumber, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "broker number must be an integer")
	}
	bn := BrokerNumber(n)
	if err := bn.Validate(); err != nil {
		return 0, err
	}
	return bn, nil
}

func (n BrokerNumber) String() string { return strconv.Itoa(int(n)) }

// ParseID parses a positive surrogate key for catalog, broker and policy rows.
func ParseID(s string) (int64, error) {
	return parsePositiveInt(s, "id")
}

func parseUUID(s, label string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be the nil UUID")
	}
	return u, nil
}

func parsePositiveInt(s, label string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" must be a positive integer")
	}
	return n, nil
}
