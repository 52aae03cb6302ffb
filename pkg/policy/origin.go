package policy

import (
	"net/mail"
)

// Origin is the sender of an outgoing form mail.
type Origin struct {
	mail.Address
}

// NewOrigin builds an Origin from the primary admin address and an optional display name.
func NewOrigin(address, name string) Origin {
	return Origin{mail.Address{Name: name, Address: address}}
}

// Valid returns true if the origin address can be used as a sender.
func (o Origin) Valid() bool {
	return ValidEmail(o.Address.Address)
}
