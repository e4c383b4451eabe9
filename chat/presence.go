package chat

import (
	"time"

	"github.com/folkengine/goname"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/neowatch/types"
)

const guestLabelCacheSize = 256

type presenceEntry struct {
	types.TypingUser
	expires time.Time
}

// presence is the typing set of the current room in arrival order. Entries expire after ttl unless refreshed.
type presence struct {
	ttl     time.Duration
	entries []presenceEntry
	guests  *lru.Cache
}

func newPresence(ttl time.Duration) *presence {
	guests, err := lru.New(guestLabelCacheSize)
	if err != nil {
		panic(err)
	}
	return &presence{ttl: ttl, guests: guests}
}

// label is the email, or a generated name that stays stable per user id.
func (p *presence) label(userId, email string) string {
	if email != "" {
		return email
	}
	if v, ok := p.guests.Get(userId); ok {
		return v.(string)
	}
	name := goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	p.guests.Add(userId, name)
	return name
}

func (p *presence) add(userId, email string, now time.Time) {
	if userId == "" {
		return
	}
	expires := now.Add(p.ttl)
	for i := range p.entries {
		if p.entries[i].UserId == userId {
			p.entries[i].expires = expires
			if email != "" {
				p.entries[i].Label = email
			}
			return
		}
	}
	p.entries = append(p.entries, presenceEntry{
		TypingUser: types.TypingUser{UserId: userId, Label: p.label(userId, email)},
		expires:    expires,
	})
}

func (p *presence) remove(userId string) {
	for i := range p.entries {
		if p.entries[i].UserId == userId {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

func (p *presence) clear() {
	p.entries = nil
}

// snapshot drops expired entries and returns a copy of the rest.
func (p *presence) snapshot(now time.Time) []types.TypingUser {
	keep := p.entries[:0]
	for _, e := range p.entries {
		if now.Before(e.expires) {
			keep = append(keep, e)
		}
	}
	for i := len(keep); i < len(p.entries); i++ {
		p.entries[i] = presenceEntry{}
	}
	p.entries = keep
	res := make([]types.TypingUser, len(keep))
	for i, e := range keep {
		res[i] = e.TypingUser
	}
	return res
}
