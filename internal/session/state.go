// Package session tracks which client identifiers and confirmation codes a
// conversation has proven ownership of.
package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
)

var (
	ErrBlankClientID = fmt.Errorf("session: client id required: %w", apperr.ErrInvalidArgument)
	ErrBlankCode     = fmt.Errorf("session: confirmation code required: %w", apperr.ErrInvalidArgument)
)

// State is the ownership state of one conversation. Validation is monotonic
// and case-insensitive. The mutex only covers concurrent tool calls within a
// single turn; a State is never shared across sessions.
type State struct {
	mu      sync.Mutex
	clients map[string]struct{}
	codes   map[string]struct{}
}

// NewState returns an empty session state.
func NewState() *State {
	return &State{
		clients: make(map[string]struct{}),
		codes:   make(map[string]struct{}),
	}
}

func normalize(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// ValidateClient marks a client identifier as proven for this session.
func (s *State) ValidateClient(clientID string) error {
	key := normalize(clientID)
	if key == "" {
		return ErrBlankClientID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[key] = struct{}{}
	return nil
}

// ValidateCode marks a confirmation code as proven for this session.
func (s *State) ValidateCode(code string) error {
	key := normalize(code)
	if key == "" {
		return ErrBlankCode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[key] = struct{}{}
	return nil
}

func (s *State) IsClientValidated(clientID string) bool {
	key := normalize(clientID)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clients[key]
	return ok
}

func (s *State) IsCodeValidated(code string) bool {
	key := normalize(code)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.codes[key]
	return ok
}

type stateDoc struct {
	Clients []string `json:"validated_clients"`
	Codes   []string `json:"validated_codes"`
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *State) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(stateDoc{Clients: sortedKeys(s.clients), Codes: sortedKeys(s.codes)})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = make(map[string]struct{}, len(doc.Clients))
	s.codes = make(map[string]struct{}, len(doc.Codes))
	for _, c := range doc.Clients {
		if key := normalize(c); key != "" {
			s.clients[key] = struct{}{}
		}
	}
	for _, c := range doc.Codes {
		if key := normalize(c); key != "" {
			s.codes[key] = struct{}{}
		}
	}
	return nil
}
