package vote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/threadly/backend/internal/apperrors"
	"github.com/threadly/backend/internal/models"
)

type pairKey struct {
	VoterID  int
	TargetID int
	Kind     TargetKind
}

// MemoryLedger keeps votes in process memory. Used for tests and local
// development; the uniqueness invariant is enforced the same way the
// database does it, so the engine's conflict path is exercised for real.
type MemoryLedger struct {
	mu     sync.Mutex
	nextID int
	votes  map[int]models.Vote
	byPair map[pairKey]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		nextID: 1,
		votes:  make(map[int]models.Vote),
		byPair: make(map[pairKey]int),
	}
}

func (l *MemoryLedger) Find(_ context.Context, voterID, targetID int, kind TargetKind) (*models.Vote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byPair[pairKey{VoterID: voterID, TargetID: targetID, Kind: kind}]
	if !ok {
		return nil, nil
	}
	vote := l.votes[id]
	return &vote, nil
}

func (l *MemoryLedger) Create(_ context.Context, voterID, targetID int, kind TargetKind, direction int) (*models.Vote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := pairKey{VoterID: voterID, TargetID: targetID, Kind: kind}
	if _, exists := l.byPair[key]; exists {
		return nil, apperrors.Conflict("vote already exists for voter and target", nil)
	}
	vote := models.Vote{
		ID:         l.nextID,
		UserID:     voterID,
		TargetID:   targetID,
		TargetKind: string(kind),
		Direction:  direction,
		CreatedAt:  time.Now().UTC(),
	}
	l.nextID++
	l.votes[vote.ID] = vote
	l.byPair[key] = vote.ID
	return &vote, nil
}

func (l *MemoryLedger) SetDirection(_ context.Context, voteID, direction int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	vote, ok := l.votes[voteID]
	if !ok {
		return fmt.Errorf("vote %d not found", voteID)
	}
	vote.Direction = direction
	l.votes[voteID] = vote
	return nil
}

func (l *MemoryLedger) Delete(_ context.Context, voteID int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	vote, ok := l.votes[voteID]
	if !ok {
		return nil
	}
	delete(l.byPair, pairKey{VoterID: vote.UserID, TargetID: vote.TargetID, Kind: TargetKind(vote.TargetKind)})
	delete(l.votes, voteID)
	return nil
}

// Len reports the number of stored votes.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.votes)
}

// MemoryScores holds target scores in memory, one instance per target kind.
type MemoryScores struct {
	mu     sync.Mutex
	kind   TargetKind
	scores map[int]int
}

func NewMemoryScores(kind TargetKind) *MemoryScores {
	return &MemoryScores{
		kind:   kind,
		scores: make(map[int]int),
	}
}

// Seed registers a target with a starting score.
func (s *MemoryScores) Seed(targetID, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[targetID] = score
}

// Score returns the current score and whether the target exists.
func (s *MemoryScores) Score(targetID int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[targetID]
	return score, ok
}

func (s *MemoryScores) AddScoreDelta(_ context.Context, targetID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[targetID]
	if !ok {
		return 0, apperrors.NotFound(fmt.Sprintf("%s not found", s.kind))
	}
	score += delta
	s.scores[targetID] = score
	return score, nil
}
