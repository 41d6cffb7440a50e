package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Role is one of the fixed werewolf roles.
type Role string

const (
	RoleWolf     Role = "wolf"
	RoleSeer     Role = "seer"
	RoleWitch    Role = "witch"
	RoleHunter   Role = "hunter"
	RoleVillager Role = "villager"
)

// Faction is the coalition a role belongs to. The empty faction means "no winner yet".
type Faction string

const (
	FactionNone    Faction = ""
	FactionWolf    Faction = "wolf"
	FactionVillage Faction = "village"
)

func (r Role) Faction() Faction {
	switch r {
	case RoleWolf:
		return FactionWolf
	case RoleSeer, RoleWitch, RoleHunter, RoleVillager:
		return FactionVillage
	}
	return FactionNone
}

func (r Role) Valid() bool {
	return r.Faction() != FactionNone
}

// SeerResult is one inspection remembered by the seer.
type SeerResult struct {
	TargetID   string  `json:"target_id"`
	TargetName string  `json:"target_name"`
	Faction    Faction `json:"faction"`
}

// Memory is the role-scoped knowledge a participant keeps for the whole game.
type Memory struct {
	SeerResults []SeerResult `json:"seer_results,omitempty"`
	Antidote    bool         `json:"antidote"`
	Poison      bool         `json:"poison"`
}

type Participant struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Seat   int    `json:"seat" db:"seat"`
	Role   Role   `json:"role" db:"role"`
	Alive  bool   `json:"alive" db:"alive"`
	Human  bool   `json:"human" db:"human"`
	Memory Memory `json:"-" db:"-"`
}

func (p Participant) Faction() Faction {
	return p.Role.Faction()
}

// PlayerRef is the public view of a participant; it never carries the role.
type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Seat int    `json:"seat"`
}

func (p Participant) Ref() PlayerRef {
	return PlayerRef{ID: p.ID, Name: p.Name, Seat: p.Seat}
}

const minPlayers = 6

// rolePool returns the role multiset for a table of n players:
// one wolf per three seats, one seer, one witch, one hunter, villagers for the rest.
func rolePool(n int) ([]Role, error) {
	if n < minPlayers {
		return nil, fmt.Errorf("need at least %d players, got %d", minPlayers, n)
	}
	wolves := n / 3
	roles := make([]Role, 0, n)
	for range wolves {
		roles = append(roles, RoleWolf)
	}
	roles = append(roles, RoleSeer, RoleWitch, RoleHunter)
	for len(roles) < n {
		roles = append(roles, RoleVillager)
	}
	return roles, nil
}

// shuffleRoles shuffles roles in place using crypto/rand (Fisher-Yates)
func shuffleRoles(roles []Role) {
	for i := len(roles) - 1; i > 0; i-- {
		j := cryptoIntn(i + 1)
		roles[i], roles[j] = roles[j], roles[i]
	}
}

// cryptoIntn returns a uniform int in [0, n). It returns 0 if the system source fails.
func cryptoIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

var aiNames = []string{
	"Ada", "Bram", "Cleo", "Dorian", "Edda", "Finn", "Greta", "Hugo",
	"Ilse", "Jonas", "Kira", "Lars", "Mara", "Nils", "Oona", "Piet",
}

// newParticipants seats n players with a shuffled role pool. The first humans seats
// are human-controlled.
func newParticipants(n, humans int, humanName string) ([]Participant, error) {
	roles, err := rolePool(n)
	if err != nil {
		return nil, err
	}
	if humans < 0 || humans > n {
		return nil, fmt.Errorf("human seats %d out of range for %d players", humans, n)
	}
	shuffleRoles(roles)

	players := make([]Participant, n)
	for i := range players {
		p := Participant{
			ID:    fmt.Sprintf("player_%d", i),
			Seat:  i,
			Role:  roles[i],
			Alive: true,
			Human: i < humans,
		}
		switch {
		case p.Human && humans == 1 && humanName != "":
			p.Name = humanName
		case p.Human:
			p.Name = fmt.Sprintf("Player %d", i+1)
		default:
			p.Name = aiNames[i%len(aiNames)]
		}
		if p.Role == RoleWitch {
			p.Memory.Antidote = true
			p.Memory.Poison = true
		}
		players[i] = p
	}
	return players, nil
}
