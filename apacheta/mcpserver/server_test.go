package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/memory"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/storetest"
)

func newServer(t *testing.T) (*Server, storetest.Fixture) {
	store := memory.New(nil)
	f := storetest.NewFixture()
	storetest.Populate(t, store, f)
	return New(store, zaptest.NewLogger(t).Sugar()), f
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolsListed(t *testing.T) {
	s, _ := newServer(t)
	raw := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.MCPServer().HandleMessage(context.Background(), raw)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range apacheta.QueryNames() {
		assert.Contains(t, string(data), `"`+ToolPrefix+name+`"`)
	}
	assert.Contains(t, string(data), ToolGetStrand)
	assert.Contains(t, string(data), ToolCountRecords)
}

func TestQueryTool(t *testing.T) {
	s, f := newServer(t)
	ctx := context.Background()

	res, err := s.queryHandler(apacheta.QueryTensorsByModel)(ctx, call(map[string]any{apacheta.ParamFamily: "gpt"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var tensors []models.TensorRecord
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &tensors))
	require.Len(t, tensors, 1)
	assert.Equal(t, f.T2.ID, tensors[0].ID)

	res, err = s.queryHandler(apacheta.QueryClaimsAbout)(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "missing parameter is a tool error")

	res, err = s.queryHandler(apacheta.QueryLosses)(ctx, call(map[string]any{apacheta.ParamTensorID: "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRecordTools(t *testing.T) {
	s, f := newServer(t)
	ctx := context.Background()

	res, err := s.handleGetStrand(ctx, call(map[string]any{apacheta.ParamTensorID: f.T1.ID.String(), "strand_index": float64(1)}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	var strand models.TensorRecord
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &strand))
	assert.Equal(t, f.T1.ID, strand.ID)
	require.Len(t, strand.Strands, 1)
	assert.Equal(t, "Error handling", strand.Strands[0].Title)

	res, err = s.handleGetTensor(ctx, call(map[string]any{apacheta.ParamTensorID: storetest.ID("missing").String()}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleCountRecords(ctx, call(nil))
	require.NoError(t, err)
	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &counts))
	assert.Equal(t, 3, counts["tensors"])
	assert.Equal(t, 2, counts["entities"])
}
