// Package scheduler implements spaced-repetition review scheduling for
// knowledge nodes with an FSRS-style memory model. Each scheduled node
// carries a stability and difficulty; review grades update both and push
// the next due time out to where predicted retrievability falls to the
// configured target.
package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/knowledge"
)

// Grade is the outcome of one review.
type Grade string

const (
	GradeAgain Grade = "again"
	GradeHard  Grade = "hard"
	GradeGood  Grade = "good"
	GradeEasy  Grade = "easy"
)

// Valid reports whether the grade is one of the known values.
func (g Grade) Valid() bool {
	switch g {
	case GradeAgain, GradeHard, GradeGood, GradeEasy:
		return true
	}
	return false
}

const (
	minDifficulty = 1.0
	maxDifficulty = 10.0

	// Stability floor so repeated lapses cannot collapse the interval to zero.
	minStability = 0.01

	// Difficulty increase applied on a lapse.
	lapsePenalty = 0.5
)

// gradeBonus scales stability growth on a successful review.
func gradeBonus(g Grade) float64 {
	switch g {
	case GradeHard:
		return 1.2
	case GradeGood:
		return 1.6
	default: // easy
		return 2.2
	}
}

// gradeAdjust is subtracted from difficulty on a successful review; hard
// reviews make the node harder, easy ones make it easier.
func gradeAdjust(g Grade) float64 {
	switch g {
	case GradeHard:
		return -0.2
	case GradeGood:
		return 0.0
	default: // easy
		return 0.3
	}
}

// Graph is the slice of the knowledge store the scheduler needs.
type Graph interface {
	Node(id string) (knowledge.Node, error)
	Nodes() []knowledge.Node
	SetSchedule(id string, sched *knowledge.Schedule, reviewedAt time.Time) error
}

// Scheduler drives review scheduling over a knowledge graph. It keeps no
// state of its own; all memory-model state lives on the nodes.
type Scheduler struct {
	cfg   config.FSRSConfig
	graph Graph
}

// NewScheduler creates a scheduler over the given graph.
func NewScheduler(cfg config.FSRSConfig, graph Graph) *Scheduler {
	return &Scheduler{cfg: cfg, graph: graph}
}

// InitSchedule attaches a fresh schedule to a node. A node that already has
// one keeps it unchanged.
func (s *Scheduler) InitSchedule(nodeID string, now time.Time) error {
	node, err := s.graph.Node(nodeID)
	if err != nil {
		return err
	}
	if node.Schedule != nil {
		return nil
	}

	sched := &knowledge.Schedule{
		Stability:      s.cfg.DefaultStability,
		Difficulty:     s.cfg.DefaultDifficulty,
		Retrievability: 1.0,
		DueAt:          now.Add(s.interval(s.cfg.DefaultStability)),
	}
	return s.graph.SetSchedule(nodeID, sched, time.Time{})
}

// Review applies a graded review to a node and returns the updated
// schedule. The node must already be scheduled.
func (s *Scheduler) Review(nodeID string, grade Grade, now time.Time) (knowledge.Schedule, error) {
	if !grade.Valid() {
		return knowledge.Schedule{}, errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown review grade"),
			errors.Fields{"grade": string(grade)},
		)
	}

	node, err := s.graph.Node(nodeID)
	if err != nil {
		return knowledge.Schedule{}, err
	}
	if node.Schedule == nil {
		return knowledge.Schedule{}, errors.WithFields(
			errors.New(errors.InvalidInput, "node has no schedule"),
			errors.Fields{"node_id": nodeID},
		)
	}

	sched := *node.Schedule

	// The curve is anchored at the last review; a first review has no
	// elapsed interval, so the memory reads as fresh.
	elapsed := time.Duration(0)
	if !node.LastReviewedAt.IsZero() {
		elapsed = now.Sub(node.LastReviewedAt)
		if elapsed < 0 {
			elapsed = 0
		}
	}
	r := retrievability(elapsed, sched.Stability)

	if grade == GradeAgain {
		sched.Stability = math.Max(sched.Stability*s.cfg.LapseFactor, minStability)
		sched.Difficulty = math.Min(sched.Difficulty+lapsePenalty, maxDifficulty)
		sched.Lapses++
	} else {
		// Stability grows with the grade bonus, shrinks with difficulty, and
		// grows more when the review happened near the point of forgetting.
		growth := math.Exp(s.cfg.GrowthRate) *
			(11 - sched.Difficulty) *
			math.Pow(r, -s.cfg.DecayRate) *
			(gradeBonus(grade) - 1)
		sched.Stability = math.Max(sched.Stability*(1+growth), minStability)
		sched.Difficulty = clampDifficulty(sched.Difficulty - gradeAdjust(grade))
	}

	sched.Retrievability = r
	sched.ReviewCount++
	sched.DueAt = now.Add(s.interval(sched.Stability))

	if err := s.graph.SetSchedule(nodeID, &sched, now); err != nil {
		return knowledge.Schedule{}, err
	}
	return sched, nil
}

// DueForReview returns scheduled nodes whose due time has passed, most
// overdue first. A limit <= 0 returns them all.
func (s *Scheduler) DueForReview(now time.Time, limit int) []knowledge.Node {
	var due []knowledge.Node
	for _, n := range s.graph.Nodes() {
		if n.Schedule == nil || n.Schedule.DueAt.After(now) {
			continue
		}
		due = append(due, n)
	}

	sort.Slice(due, func(i, j int) bool {
		di, dj := due[i].Schedule.DueAt, due[j].Schedule.DueAt
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return due[i].ID < due[j].ID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// DueCount returns the number of scheduled nodes whose due time has passed.
func (s *Scheduler) DueCount(now time.Time) int {
	count := 0
	for _, n := range s.graph.Nodes() {
		if n.Schedule != nil && !n.Schedule.DueAt.After(now) {
			count++
		}
	}
	return count
}

// Retrievability predicts the current recall probability for a node from
// the time elapsed since its last review.
func (s *Scheduler) Retrievability(nodeID string, now time.Time) (float64, error) {
	node, err := s.graph.Node(nodeID)
	if err != nil {
		return 0, err
	}
	if node.Schedule == nil {
		return 0, errors.WithFields(
			errors.New(errors.InvalidInput, "node has no schedule"),
			errors.Fields{"node_id": nodeID},
		)
	}

	elapsed := time.Duration(0)
	if !node.LastReviewedAt.IsZero() {
		elapsed = now.Sub(node.LastReviewedAt)
		if elapsed < 0 {
			elapsed = 0
		}
	}
	return retrievability(elapsed, node.Schedule.Stability), nil
}

// interval is the time until predicted retrievability decays to the target.
func (s *Scheduler) interval(stability float64) time.Duration {
	days := 9 * stability * math.Log(1/s.cfg.TargetRetention)
	return time.Duration(days * float64(24*time.Hour))
}

// retrievability is the forgetting curve: exp(-t / (9 * S)) with t and S in
// days.
func retrievability(elapsed time.Duration, stability float64) float64 {
	if stability < minStability {
		stability = minStability
	}
	days := elapsed.Hours() / 24
	return math.Exp(-days / (9 * stability))
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
