package session

import "conclave/internal/domain"

// memberRecord ties one present room member to its contact and identity.
type memberRecord struct {
	identity domain.Identity
	contact  domain.Contact
	member   domain.Member
}

// memberIndex holds one record per present member, reachable by nickname,
// identity or contact address. Every mutation updates all three lookups.
type memberIndex struct {
	byNickname map[string]*memberRecord
	byIdentity map[domain.Identity]*memberRecord
	byAddress  map[domain.Address]*memberRecord
}

func newMemberIndex() *memberIndex {
	return &memberIndex{
		byNickname: make(map[string]*memberRecord),
		byIdentity: make(map[domain.Identity]*memberRecord),
		byAddress:  make(map[domain.Address]*memberRecord),
	}
}

// insert adds rec unless its nickname or identity is already indexed.
func (ix *memberIndex) insert(rec memberRecord) bool {
	if _, ok := ix.byNickname[rec.member.Nickname]; ok {
		return false
	}
	if _, ok := ix.byIdentity[rec.identity]; ok {
		return false
	}
	r := &rec
	ix.byNickname[rec.member.Nickname] = r
	ix.byIdentity[rec.identity] = r
	ix.byAddress[rec.contact.Address] = r
	return true
}

func (ix *memberIndex) remove(nickname string) (memberRecord, bool) {
	r, ok := ix.byNickname[nickname]
	if !ok {
		return memberRecord{}, false
	}
	delete(ix.byNickname, nickname)
	delete(ix.byIdentity, r.identity)
	delete(ix.byAddress, r.contact.Address)
	return *r, true
}

func (ix *memberIndex) nickname(n string) (memberRecord, bool) {
	r, ok := ix.byNickname[n]
	if !ok {
		return memberRecord{}, false
	}
	return *r, true
}

func (ix *memberIndex) identity(id domain.Identity) (memberRecord, bool) {
	r, ok := ix.byIdentity[id]
	if !ok {
		return memberRecord{}, false
	}
	return *r, true
}

func (ix *memberIndex) address(a domain.Address) (memberRecord, bool) {
	r, ok := ix.byAddress[a]
	if !ok {
		return memberRecord{}, false
	}
	return *r, true
}

func (ix *memberIndex) len() int { return len(ix.byNickname) }

func (ix *memberIndex) records() []memberRecord {
	out := make([]memberRecord, 0, len(ix.byNickname))
	for _, r := range ix.byNickname {
		out = append(out, *r)
	}
	return out
}

// consistent reports whether the three lookups describe the same records.
func (ix *memberIndex) consistent() bool {
	if len(ix.byIdentity) != len(ix.byNickname) || len(ix.byAddress) != len(ix.byNickname) {
		return false
	}
	for n, r := range ix.byNickname {
		if r.member.Nickname != n || ix.byIdentity[r.identity] != r || ix.byAddress[r.contact.Address] != r {
			return false
		}
	}
	return true
}
