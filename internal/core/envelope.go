package core

import (
	"errors"
	"strings"
)

// MaxNameLength bounds envelope names, counted in runes.
const MaxNameLength = 200

type (
	// EnvelopeID identifies an envelope for the lifetime of a ledger.
	EnvelopeID uint64

	// Envelope is a named allocation carved out of the total budget.
	Envelope struct {
		ID     EnvelopeID `json:"id"`
		Name   string     `json:"name"`
		Budget Money      `json:"budget"`
	}
)

var (
	ErrEmptyName   = errors.New("empty envelope name")
	ErrNameTooLong = errors.New("envelope name too long (max 200 characters)")
)

// NormalizeName trims the name and checks it is usable as a label.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if len([]rune(name)) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}
