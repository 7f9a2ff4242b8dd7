package main

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/mnemo-go/pkg/adapters"
	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/fsm"
)

func TestRegisterTools(t *testing.T) {
	core, err := memory.New(*config.GetDefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close() })
	require.NoError(t, core.Workflows.RegisterDefinition(fsm.TaskWorkflow()))

	srv := server.NewMCPServer("mnemo", version)
	registerTools(srv, core)
}

func TestDecodeArgs(t *testing.T) {
	var req mcp.CallToolRequest
	req.Params.Arguments = map[string]any{
		"session_id":    "s1",
		"definition_id": "task",
	}

	var r adapters.StateRequest
	require.NoError(t, decodeArgs(req, &r))
	assert.Equal(t, "s1", r.SessionID)
	assert.Equal(t, "task", r.DefinitionID)

	t.Run("missing arguments decode to zero values", func(t *testing.T) {
		var empty mcp.CallToolRequest
		var r adapters.StateRequest
		require.NoError(t, decodeArgs(empty, &r))
		assert.Empty(t, r.SessionID)
	})

	t.Run("numbers land in int fields", func(t *testing.T) {
		var req mcp.CallToolRequest
		req.Params.Arguments = map[string]any{"limit": float64(5), "offset": float64(2)}

		var q adapters.QueryRequest
		require.NoError(t, decodeArgs(req, &q))
		assert.Equal(t, 5, q.Limit)
		assert.Equal(t, 2, q.Offset)
	})
}
