// Package counter holds the on-chain layout, addresses and instruction
// builders of the bankrun-counter program. The runtime and off-chain callers
// both derive addresses through this package.
package counter

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
	"github.com/near/borsh-go"
)

var ProgramID = solana.MustPublicKeyFromBase58("65sUaBRwnyJfhdd5gA3wJWZicfeGqe7RXvRY5Bg1hhJt")

var (
	SeedCounter   = []byte("counter")
	SeedAuthority = []byte("pda_auth")
)

// CooldownSeconds is the minimum distance between two accepted mutations
// gated by the same timestamp.
const CooldownSeconds = 300

const discriminatorSize = 8

// AccountSize is discriminator + owner + counter + last_updated + last_transfer + bump.
const AccountSize = discriminatorSize + 32 + 8 + 8 + 8 + 1

const (
	ErrorCodeCannotAddYet      = 6000
	ErrorCodeCannotTransferYet = 6001
)

var (
	AccountDiscriminator          = sha256First8("account:Counter")
	InitializeDiscriminator       = sha256First8("global:initialize")
	AddOneDiscriminator           = sha256First8("global:add_one")
	TransferOneTokenDiscriminator = sha256First8("global:transfer_one_token")

	ErrInvalidDiscriminator = errors.New("invalid account discriminator")
	ErrAccountTooSmall      = errors.New("counter account data too small")
)

type Counter struct {
	Owner        solana.PublicKey
	Counter      uint64
	LastUpdated  int64
	LastTransfer int64
	Bump         uint8
}

func sha256First8(s string) [8]byte {
	h := sha256.Sum256([]byte(s))
	var disc [8]byte
	copy(disc[:], h[:8])
	return disc
}

func validateDiscriminator(data []byte, expected [8]byte) error {
	if len(data) < discriminatorSize {
		return fmt.Errorf("%w: data too short", ErrInvalidDiscriminator)
	}
	var got [8]byte
	copy(got[:], data[:8])
	if got != expected {
		return fmt.Errorf("%w: got %x, want %x", ErrInvalidDiscriminator, got, expected)
	}
	return nil
}

func (c *Counter) Marshal() ([]byte, error) {
	body, err := borsh.Serialize(*c)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize counter: %w", err)
	}
	data := make([]byte, 0, AccountSize)
	data = append(data, AccountDiscriminator[:]...)
	data = append(data, body...)
	return data, nil
}

func Unmarshal(data []byte) (*Counter, error) {
	if err := validateDiscriminator(data, AccountDiscriminator); err != nil {
		return nil, err
	}
	if len(data) < AccountSize {
		return nil, ErrAccountTooSmall
	}
	c := new(Counter)
	if err := borsh.Deserialize(c, data[discriminatorSize:AccountSize]); err != nil {
		return nil, fmt.Errorf("failed to deserialize counter: %w", err)
	}
	return c, nil
}

// CooldownElapsed reports whether a mutation gated by lastUpdated may run at
// now. A zero timestamp means the gate was never used.
func CooldownElapsed(lastUpdated int64, now int64) bool {
	if lastUpdated == 0 {
		return true
	}
	return now-lastUpdated >= CooldownSeconds
}
