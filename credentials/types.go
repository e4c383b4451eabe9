package credentials

import "time"

// Names of the two credential slots.
const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
)

// SetOptions control how a credential is persisted. A zero TTL never expires.
type SetOptions struct {
	TTL    time.Duration
	Secure bool
}

// Entry is a stored credential. ExpiresAt is zero for entries without TTL.
type Entry struct {
	Value     string    `json:"value"`
	Secure    bool      `json:"secure"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store is the durable key/value storage for the credential slots. Get, Set and Remove never fail: backend
// errors are logged and an unreadable entry is reported as absent.
type Store interface {
	Get(name string) (string, bool)
	Lookup(name string) (Entry, bool)
	Set(name, value string, opts SetOptions)
	Remove(name string)
	Close() error
}

func newEntry(value string, opts SetOptions, now time.Time) Entry {
	e := Entry{Value: value, Secure: opts.Secure}
	if opts.TTL > 0 {
		e.ExpiresAt = now.Add(opts.TTL)
	}
	return e
}
