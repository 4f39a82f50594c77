// Package addrbook manages the self address, known stations, and known
// nets for an ALE station, including '@' wildcard matching.
//
// Grounded on original_source/include/ale_word.h's AddressBook class.
package addrbook

import (
	"fmt"
	"strings"

	"github.com/n0call/ale1052/internal/wordcodec"
)

const (
	MinAddressLen = 3
	MaxAddressLen = 15
)

// Book holds the self address plus known stations and nets.
type Book struct {
	self     string
	stations map[string]string
	nets     map[string]string
}

// New returns an empty address Book.
func New() *Book {
	return &Book{
		stations: make(map[string]string),
		nets:     make(map[string]string),
	}
}

func validAddress(address string) bool {
	if len(address) < MinAddressLen || len(address) > MaxAddressLen {
		return false
	}
	for i := 0; i < len(address); i++ {
		if !wordcodec.IsValidALEChar(address[i]) {
			return false
		}
	}
	return true
}

// SetSelfAddress validates and sets the station's own address.
func (b *Book) SetSelfAddress(address string) error {
	if !validAddress(address) {
		return fmt.Errorf("addrbook: address %q must be %d-%d restricted-ASCII characters", address, MinAddressLen, MaxAddressLen)
	}
	b.self = address
	return nil
}

// SelfAddress returns the currently configured self address.
func (b *Book) SelfAddress() string {
	return b.self
}

// AddStation records a known station address with an optional friendly
// name.
func (b *Book) AddStation(address, name string) {
	b.stations[address] = name
}

// AddNet records a known net/group address with an optional description.
func (b *Book) AddNet(netAddress, description string) {
	b.nets[netAddress] = description
}

// IsSelf reports whether address matches the configured self address.
func (b *Book) IsSelf(address string) bool {
	return b.self != "" && address == b.self
}

// IsKnownStation reports whether address is a recorded station.
func (b *Book) IsKnownStation(address string) bool {
	_, ok := b.stations[address]
	return ok
}

// IsKnownNet reports whether address is a recorded net.
func (b *Book) IsKnownNet(address string) bool {
	_, ok := b.nets[address]
	return ok
}

// MatchWildcard reports whether address matches pattern, where '@' in
// pattern matches any single character. Pattern and address must have
// equal length.
func MatchWildcard(pattern, address string) bool {
	if len(pattern) != len(address) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '@' {
			continue
		}
		if pattern[i] != address[i] {
			return false
		}
	}
	return true
}

// TrimTrailingSpaces trims trailing ASCII space padding from a
// fixed-width ALE address, as used when splitting word addresses out of
// TO/TWS/FROM/TIS words.
func TrimTrailingSpaces(address string) string {
	return strings.TrimRight(address, " ")
}
