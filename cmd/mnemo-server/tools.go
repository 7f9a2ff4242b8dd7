package main

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/XiaoConstantine/mnemo-go/pkg/adapters"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
)

// registerTools wires every adapter operation into the MCP server.
func registerTools(srv *server.MCPServer, core *memory.Core) {
	exp := adapters.NewExperienceAdapter(core)
	know := adapters.NewKnowledgeAdapter(core)
	pat := adapters.NewPatternAdapter(core)
	wf := adapters.NewWorkflowAdapter(core)
	stats := adapters.NewStatsAdapter(core)

	srv.AddTool(mcp.NewTool("memory_record",
		mcp.WithDescription("Records one agent experience (session, action, tools used, outcome) and feeds the pattern detector."),
		mcp.WithString("session_id", mcp.Description("Session the experience belongs to"), mcp.Required()),
		mcp.WithString("action", mcp.Description("High-level action taken"), mcp.Required()),
		mcp.WithString("outcome", mcp.Description("success, failure or partial"), mcp.Required()),
		mcp.WithString("agent", mcp.Description("Agent identifier")),
		mcp.WithArray("tools_used", mcp.Description("Ordered tool names used for the action")),
		mcp.WithArray("tags", mcp.Description("Free-form tags for later filtering")),
		mcp.WithString("timestamp", mcp.Description("RFC3339 timestamp (defaults to now)")),
		mcp.WithString("payload_digest", mcp.Description("Digest of any large payload kept elsewhere")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.RecordRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := exp.Record(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("memory_query",
		mcp.WithDescription("Queries recorded experiences, newest first, with optional session/tag/outcome/time filters."),
		mcp.WithString("session_id", mcp.Description("Restrict to one session")),
		mcp.WithArray("tags_any", mcp.Description("Match entries carrying any of these tags")),
		mcp.WithString("outcome", mcp.Description("Restrict to one outcome")),
		mcp.WithString("since", mcp.Description("RFC3339 lower bound on the timestamp")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (server-clamped)")),
		mcp.WithNumber("offset", mcp.Description("Entries to skip for paging")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.QueryRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		return jsonResult(exp.Query(r))
	})

	srv.AddTool(mcp.NewTool("knowledge_upsert",
		mcp.WithDescription("Inserts a knowledge node or merges it into an existing node with the same kind and normalized content."),
		mcp.WithString("kind", mcp.Description("fact, pattern or heuristic"), mcp.Required()),
		mcp.WithString("content", mcp.Description("Node content; the merge key is its normalized form"), mcp.Required()),
		mcp.WithNumber("confidence", mcp.Description("Initial confidence in [0, 1]")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.UpsertNodeRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := know.UpsertNode(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("knowledge_link",
		mcp.WithDescription("Links two knowledge nodes; repeating the same (from, to, relation) overwrites the weight."),
		mcp.WithString("from_id", mcp.Description("Source node ID"), mcp.Required()),
		mcp.WithString("to_id", mcp.Description("Target node ID"), mcp.Required()),
		mcp.WithString("relation", mcp.Description("supports, contradicts, derivedFrom or relatedTo"), mcp.Required()),
		mcp.WithNumber("weight", mcp.Description("Edge weight")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.AddEdgeRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		if err := know.AddEdge(r); err != nil {
			return nil, err
		}
		return mcp.NewToolResultText("ok"), nil
	})

	srv.AddTool(mcp.NewTool("knowledge_related",
		mcp.WithDescription("Returns a node's direct neighbors in either direction, optionally filtered by relation."),
		mcp.WithString("node_id", mcp.Description("Node whose neighbors to list"), mcp.Required()),
		mcp.WithString("relation", mcp.Description("Restrict to one relation")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.NeighborsRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := know.Neighbors(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("knowledge_traverse",
		mcp.WithDescription("Breadth-first walk over outgoing edges from a start node, bounded by depth and optional relation filters."),
		mcp.WithString("start_id", mcp.Description("Node to start from"), mcp.Required()),
		mcp.WithNumber("max_depth", mcp.Description("Maximum hops from the start node")),
		mcp.WithArray("relations", mcp.Description("Relations to follow (all when empty)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.TraverseRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := know.Traverse(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("knowledge_review",
		mcp.WithDescription("Applies a graded spaced-repetition review (again/hard/good/easy) to a scheduled node."),
		mcp.WithString("node_id", mcp.Description("Node to review"), mcp.Required()),
		mcp.WithString("grade", mcp.Description("again, hard, good or easy"), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.ReviewRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := know.Review(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("knowledge_due",
		mcp.WithDescription("Lists scheduled knowledge nodes whose review is due, most overdue first."),
		mcp.WithNumber("limit", mcp.Description("Maximum nodes to return (0 for all)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.DueRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		return jsonResult(know.Due(r))
	})

	srv.AddTool(mcp.NewTool("pattern_promote",
		mcp.WithDescription("Runs a promotion sweep: recurring action sequences become pattern-kind knowledge nodes."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := pat.Promote(adapters.PromoteRequest{})
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("workflow_start",
		mcp.WithDescription("Starts a state machine instance for a session in the definition's initial state."),
		mcp.WithString("session_id", mcp.Description("Session owning the instance"), mcp.Required()),
		mcp.WithString("definition_id", mcp.Description("Registered definition, e.g. task"), mcp.Required()),
		mcp.WithObject("context", mcp.Description("Initial instance context")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.StartRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := wf.Start(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("workflow_fire",
		mcp.WithDescription("Fires an event at a session's workflow instance and returns the resulting state."),
		mcp.WithString("session_id", mcp.Description("Session owning the instance"), mcp.Required()),
		mcp.WithString("definition_id", mcp.Description("Definition the instance was started from"), mcp.Required()),
		mcp.WithString("event", mcp.Description("Event to apply"), mcp.Required()),
		mcp.WithObject("context", mcp.Description("Context patch merged on success")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.FireRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := wf.Fire(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("workflow_reset",
		mcp.WithDescription("Discards a session's workflow instance, terminal or not."),
		mcp.WithString("session_id", mcp.Description("Session owning the instance"), mcp.Required()),
		mcp.WithString("definition_id", mcp.Description("Definition the instance was started from"), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.ResetRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		if err := wf.Reset(r); err != nil {
			return nil, err
		}
		return mcp.NewToolResultText("ok"), nil
	})

	srv.AddTool(mcp.NewTool("workflow_state",
		mcp.WithDescription("Returns the current state of a session's workflow instance without firing an event."),
		mcp.WithString("session_id", mcp.Description("Session owning the instance"), mcp.Required()),
		mcp.WithString("definition_id", mcp.Description("Definition the instance was started from"), mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r adapters.StateRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		resp, err := wf.CurrentState(r)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})

	srv.AddTool(mcp.NewTool("memory_stats",
		mcp.WithDescription("Returns counts across every memory component: experiences, nodes, edges, candidates, workflows and due reviews."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := stats.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResult(resp)
	})
}

// decodeArgs maps the tool call arguments onto a request struct through
// their shared JSON shape.
func decodeArgs(req mcp.CallToolRequest, v any) error {
	args, _ := req.Params.Arguments.(map[string]any)
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
