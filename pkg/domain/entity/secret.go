package entity

// SecretParams are the values needed to sign detail requests.
// They are derived from the provider's application bundle and live in memory only.
type SecretParams struct {
	Multiplier uint32
	Increment  uint32
	Salt       string
}

// Complete reports whether all three values are populated
func (p SecretParams) Complete() bool {
	return p.Multiplier != 0 && p.Increment != 0 && p.Salt != ""
}
