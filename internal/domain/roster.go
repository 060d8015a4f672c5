package domain

// Roster is the ordered-by-arrival set of players in a game, keyed by id.
// Add and Remove are idempotent so duplicate or out-of-band event delivery
// cannot corrupt it.
type Roster struct {
	players []Player
}

func NewRoster(players []Player) *Roster {
	r := &Roster{}
	r.Replace(players)
	return r
}

// Add appends p unless a player with the same id is already present.
// Reports whether the roster changed.
func (r *Roster) Add(p Player) bool {
	if _, ok := r.Get(p.ID); ok {
		return false
	}
	r.players = append(r.players, p)
	return true
}

// Remove deletes the player with the given id. Removing an absent id is a
// no-op. Reports whether the roster changed.
func (r *Roster) Remove(id string) bool {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return true
		}
	}
	return false
}

// Update replaces the stored player with the same id, keeping its slot in
// the arrival order. Reports whether a matching player was found.
func (r *Roster) Update(p Player) bool {
	for i := range r.players {
		if r.players[i].ID == p.ID {
			r.players[i] = p
			return true
		}
	}
	return false
}

func (r *Roster) Get(id string) (Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Replace swaps the whole roster for a fresh snapshot, dropping any
// duplicate ids after their first occurrence.
func (r *Roster) Replace(players []Player) {
	seen := make(map[string]bool, len(players))
	r.players = r.players[:0]
	for _, p := range players {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		r.players = append(r.players, p)
	}
}

func (r *Roster) Len() int { return len(r.players) }

// Players returns a copy of the roster in arrival order.
func (r *Roster) Players() []Player {
	out := make([]Player, len(r.players))
	copy(out, r.players)
	return out
}
