package main

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
)

const joinCodeHeader = "X-Join-Code"

var (
	errNoJoinCode      = errors.New("join code required")
	errUnknownJoinCode = errors.New("unknown join code")
)

func generateSecretCode() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// assignJoinCodes gives every human seat a code, keeping the codes in prev for seats that had one.
func assignJoinCodes(players []Participant, prev map[string]string) (map[string]string, error) {
	codes := make(map[string]string)
	for _, p := range players {
		if !p.Human {
			continue
		}
		if code, ok := prev[p.ID]; ok {
			codes[p.ID] = code
			continue
		}
		code, err := generateSecretCode()
		if err != nil {
			return nil, fmt.Errorf("join code for %s: %w", p.ID, err)
		}
		codes[p.ID] = code
	}
	return codes, nil
}

// joinCode reads the code from the X-Join-Code header or the code query parameter.
func joinCode(r *http.Request) string {
	if code := r.Header.Get(joinCodeHeader); code != "" {
		return code
	}
	return r.URL.Query().Get("code")
}

// authenticate resolves the request's join code to a seat of the current game.
func (s *Server) authenticate(r *http.Request) (ParticipantRecord, error) {
	code := joinCode(r)
	if code == "" {
		return ParticipantRecord{}, errNoJoinCode
	}
	g := s.currentGame()
	if g == nil {
		return ParticipantRecord{}, errUnknownJoinCode
	}
	p, err := findParticipantByCode(s.db, g.ID, code)
	if errors.Is(err, sql.ErrNoRows) {
		DebugLog("authenticate", "Rejected join code for game %s", g.ID)
		return ParticipantRecord{}, errUnknownJoinCode
	}
	if err != nil {
		logError("authenticate: findParticipantByCode", err)
		return ParticipantRecord{}, err
	}
	DebugLog("authenticate", "Join code accepted for %s (%s)", p.Name, p.ID)
	return p, nil
}
