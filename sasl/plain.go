// Package sasl holds the client's SASL credential variants. spec.md's
// source keeps credentials as a vararg list keyed by mechanism name;
// DESIGN NOTES §9 calls for re-architecting that as a tagged variant
// instead, which is what Credentials/Plain below provide.
package sasl

// Credentials is implemented by each supported SASL mechanism. Only
// PLAIN is implemented (spec.md §4.5 step 3: "other mechanisms are not
// implemented; selecting one is a fatal assertion").
type Credentials interface {
	// Mechanism is the SASL mechanism name sent in Connection.StartOk.
	Mechanism() string

	// Response builds the mechanism-specific response blob.
	Response() []byte
}

// Plain implements SASL PLAIN: the response is 0x00 ‖ user ‖ 0x00 ‖ pass,
// with no trailing NUL (spec.md §4.5 step 3, tested by spec.md §8's
// "SASL PLAIN encoding" property).
type Plain struct {
	User string
	Pass string
}

func (Plain) Mechanism() string { return "PLAIN" }

func (p Plain) Response() []byte {
	out := make([]byte, 0, len(p.User)+len(p.Pass)+2)
	out = append(out, 0)
	out = append(out, p.User...)
	out = append(out, 0)
	out = append(out, p.Pass...)
	return out
}
