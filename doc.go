// Package mnemo is a unified learning and memory core for building agent
// plugins that remember what happened, learn which action sequences work,
// and schedule knowledge for review before it goes stale.
//
// Mnemo-Go provides a collection of memory components behind one facade. It
// focuses on making it easy to:
//   - Record agent experiences in a bounded, queryable event log
//   - Accumulate knowledge as a typed graph with confidence scores
//   - Detect recurring action sequences and promote them to reusable patterns
//   - Drive multi-step workflows with declarative state machines
//   - Schedule knowledge review with FSRS-style spaced repetition
//
// Key Components:
//
//   - Experience Store: Bounded append-only log of agent actions and
//     outcomes with monotonic ids, filtered queries and FIFO eviction.
//
//   - Knowledge Graph: Typed nodes and edges with confidence scores that
//     strengthen on repeated observation and decay over time. Capacity is
//     enforced by evicting the weakest nodes together with their edges.
//
//   - Pattern Detector: Sliding-window mining over recorded action
//     sequences. Sequences that recur often enough inside the recency
//     window are promoted into procedural knowledge nodes.
//
//   - State Machine Engine: Generic definitions with guarded transitions
//     and terminal states, instantiated per session and driven by events.
//
//   - Scheduler: FSRS-style spaced repetition over knowledge nodes:
//     retrievability decays exponentially, reviews adjust stability and
//     difficulty per grade, and due dates are solved from target retention.
//
//   - Adapters: Thin operation surfaces (experience, knowledge, pattern,
//     workflow, stats) that map plugin-facing calls onto the core.
//
// Simple Example:
//
//	import (
//	    "fmt"
//	    "log"
//	    "time"
//
//	    "github.com/XiaoConstantine/mnemo-go/pkg/config"
//	    "github.com/XiaoConstantine/mnemo-go/pkg/memory"
//	    "github.com/XiaoConstantine/mnemo-go/pkg/memory/experience"
//	)
//
//	func main() {
//	    core, err := memory.New(*config.GetDefaultConfig())
//	    if err != nil {
//	        log.Fatalf("Failed to create memory core: %v", err)
//	    }
//	    defer core.Close()
//
//	    // Record what the agent did.
//	    id, err := core.RecordExperience(experience.Entry{
//	        SessionID: "session-1",
//	        Action:    "search_docs",
//	        Outcome:   experience.OutcomeSuccess,
//	    })
//	    if err != nil {
//	        log.Fatalf("Error recording experience: %v", err)
//	    }
//
//	    // Mine recurring sequences into knowledge.
//	    promoted, err := core.PromotePatterns(time.Now())
//	    if err != nil {
//	        log.Fatalf("Error promoting patterns: %v", err)
//	    }
//
//	    fmt.Printf("recorded entry %d, promoted %d patterns\n", id, len(promoted))
//	}
//
// Advanced Features:
//
//   - Structured Logging: Severity-filtered, field-rich logging with caller
//     information, shared by every component.
//
//   - Error Taxonomy: Coded errors (validation, not-found, invalid
//     transition, guard rejected, terminated instance, storage failure)
//     that wrap causes and carry contextual fields.
//
//   - Pluggable Persistence: Per-component snapshot stores with memory,
//     file and SQLite backends; components load what exists and keep
//     running from memory when the backing store misbehaves.
//
//   - Workflow Registry: Named state machine definitions registered once
//     and instantiated per session, with built-in definitions for common
//     agent task loops.
//
//   - Background Sweeps: Optional ticker-driven decay and snapshot flushes
//     so long-lived processes stay bounded without manual housekeeping.
//
//   - MCP Server: A stdio server binary exposing the memory core as Model
//     Context Protocol tools for editor and agent integrations.
//
// For more examples and detailed documentation, visit:
// https://github.com/XiaoConstantine/mnemo-go
//
// Mnemo-Go is released under the MIT License.
package mnemo
