package effects

import (
	"github.com/google/uuid"
)

// idAlphabet is URL safe and 64 symbols long, so the low six bits of a
// random byte select one symbol.
const idAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

// IDLength is the number of symbols in a batch id.
const IDLength = 8

// idBytes skips byte 6, whose low bits carry part of the UUID version.
var idBytes = [IDLength]int{0, 1, 2, 3, 4, 5, 7, 8}

// NewID returns a random batch id drawn from a version 4 UUID.
func NewID() string {
	raw := uuid.New()
	var id [IDLength]byte
	for i, at := range idBytes {
		id[i] = idAlphabet[raw[at]&63]
	}
	return string(id[:])
}
