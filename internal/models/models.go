package models

// RecordKindUser is the only record kind the directory currently stores.
const RecordKindUser = "User"

// TokenGrant is one issued, still-trusted session token. The grant list on a
// record is what strict verification consults for revocation.
type TokenGrant struct {
	TokenID   string `json:"token_id"`
	ExpiresAt int64  `json:"expires_at"` // unix milliseconds
}

// PasswordHistoryEntry is kept in the schema for password-history enforcement
// but no operation populates it yet.
type PasswordHistoryEntry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// UserRecord is the canonical stored form of one (tenant, identity) pair.
// Tenant, ID, Login and Email are immutable once the record is created.
type UserRecord struct {
	Tenant       string                 `json:"tenant"`
	ID           string                 `json:"id"`
	Login        string                 `json:"login"`
	Email        string                 `json:"email"`
	PasswordHash string                 `json:"password_hash,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Surname      string                 `json:"surname,omitempty"`
	RecordKind   string                 `json:"record_kind"`
	Tokens       []TokenGrant           `json:"tokens,omitempty"`
	OldPasswords []PasswordHistoryEntry `json:"old_passwords,omitempty"`
}

// PublicProfile is the externally visible subset of a UserRecord. Password
// material never appears here.
type PublicProfile struct {
	Tenant     string       `json:"tenant"`
	ID         string       `json:"id"`
	Login      string       `json:"login"`
	Email      string       `json:"email"`
	Name       string       `json:"name,omitempty"`
	Surname    string       `json:"surname,omitempty"`
	RecordKind string       `json:"record_kind"`
	Tokens     []TokenGrant `json:"tokens,omitempty"`
}

// HasToken reports whether the record holds an active grant with the given id.
func (u *UserRecord) HasToken(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	for _, g := range u.Tokens {
		if g.TokenID == tokenID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record so stores never hand out aliased
// token or history slices.
func (u *UserRecord) Clone() UserRecord {
	c := *u
	if u.Tokens != nil {
		c.Tokens = make([]TokenGrant, len(u.Tokens))
		copy(c.Tokens, u.Tokens)
	}
	if u.OldPasswords != nil {
		c.OldPasswords = make([]PasswordHistoryEntry, len(u.OldPasswords))
		copy(c.OldPasswords, u.OldPasswords)
	}
	return c
}
