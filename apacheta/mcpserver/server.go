// Package mcpserver exposes the read side of a tensor store over the Model
// Context Protocol. Every named query becomes one tool; record lookups and
// counts get their own tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
	"github.com/teranos/yanantin/version"
)

// ToolPrefix starts every tool name.
const ToolPrefix = "apacheta_"

// Fixed tool names.
const (
	ToolListTensors  = ToolPrefix + "list_tensors"
	ToolGetTensor    = ToolPrefix + "get_tensor"
	ToolGetStrand    = ToolPrefix + "get_strand"
	ToolGetEntity    = ToolPrefix + "get_entity"
	ToolCountRecords = ToolPrefix + "count_records"
)

var paramDescriptions = map[string]string{
	apacheta.ParamTopic:      "Topic to match against strand titles, topics and claim text",
	apacheta.ParamClaimID:    "Key claim UUID",
	apacheta.ParamTensorID:   "Tensor UUID",
	apacheta.ParamTag:        "Lineage tag",
	apacheta.ParamEntityUUID: "Entity UUID shared by the resolutions",
	apacheta.ParamFamily:     "Model family, e.g. claude",
	apacheta.ParamInstanceID: "Instance id of the bootstrapped instance",
}

var queryDescriptions = map[string]string{
	apacheta.QueryProjectState:      "Tensor count, lineage tags and model families in the store",
	apacheta.QueryClaimsAbout:       "Key claims about a topic",
	apacheta.QueryCorrectionChain:   "Corrections of one claim in storage order",
	apacheta.QueryEpistemicStatus:   "Original and current text of a claim after corrections",
	apacheta.QueryDisagreements:     "Dissents, negations and corrections",
	apacheta.QueryCompositionGraph:  "Every composition edge",
	apacheta.QueryBridges:           "Composition edges that bridge tensors",
	apacheta.QueryLineage:           "Tensors sharing a lineage tag with the given tensor",
	apacheta.QueryReadingOrder:      "Tensors carrying a tag in timestamp order",
	apacheta.QueryCrossModel:        "All tensors, when more than one model family has authored",
	apacheta.QueryErrorClasses:      "Claims in strands about errors, failures or bugs",
	apacheta.QueryAntiPatterns:      "Claims in strands about anti-patterns",
	apacheta.QueryUnreliableSignals: "Claims with indeterminacy above one half",
	apacheta.QueryLosses:            "Declared losses of one tensor",
	apacheta.QueryLossPatterns:      "Declared loss counts per category",
	apacheta.QueryOpenQuestions:     "Open questions across all tensors",
	apacheta.QueryAuthorship:        "Provenance of one tensor",
	apacheta.QueryEntitiesByUUID:    "Identity resolutions of one entity",
	apacheta.QueryUnlearn:           "Tensors and claims affected by dropping a topic",
	apacheta.QueryCompositions:      "Composition edges touching one tensor",
	apacheta.QueryCorrectionsFor:    "Corrections targeting one tensor",
	apacheta.QueryDissentsFor:       "Dissents targeting one tensor",
	apacheta.QueryTensorsByModel:    "Tensors authored by a model family",
	apacheta.QueryBootstraps:        "Bootstrap records of one instance",
	apacheta.QuerySchemaHistory:     "Schema evolution records",
}

// Server wraps a store in an MCP server.
type Server struct {
	store  apacheta.TensorStore
	server *server.MCPServer
	logger *zap.SugaredLogger
}

// New creates the server and registers its tools.
func New(store apacheta.TensorStore, log *zap.SugaredLogger) *Server {
	s := &Server{
		store:  store,
		logger: logger.OrNop(log).Named("mcp"),
		server: server.NewMCPServer(
			"yanantin-apacheta",
			version.Get().Short(),
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.server
}

// Serve runs the server on stdin/stdout until the input closes.
func (s *Server) Serve() error {
	return server.ServeStdio(s.server)
}

func (s *Server) registerTools() {
	for _, name := range apacheta.QueryNames() {
		opts := []mcp.ToolOption{mcp.WithDescription(queryDescriptions[name])}
		if param := apacheta.QueryParams[name]; param != "" {
			opts = append(opts, mcp.WithString(param,
				mcp.Required(),
				mcp.Description(paramDescriptions[param]),
			))
		}
		s.server.AddTool(mcp.NewTool(ToolPrefix+name, opts...), s.queryHandler(name))
	}

	s.server.AddTool(mcp.NewTool(ToolListTensors,
		mcp.WithDescription("Every tensor in storage order"),
	), s.handleListTensors)
	s.server.AddTool(mcp.NewTool(ToolGetTensor,
		mcp.WithDescription("One tensor by id"),
		mcp.WithString(apacheta.ParamTensorID, mcp.Required(), mcp.Description(paramDescriptions[apacheta.ParamTensorID])),
	), s.handleGetTensor)
	s.server.AddTool(mcp.NewTool(ToolGetStrand,
		mcp.WithDescription("A projection of one tensor holding a single strand"),
		mcp.WithString(apacheta.ParamTensorID, mcp.Required(), mcp.Description(paramDescriptions[apacheta.ParamTensorID])),
		mcp.WithNumber("strand_index", mcp.Required(), mcp.Description("Strand index, zero-based")),
	), s.handleGetStrand)
	s.server.AddTool(mcp.NewTool(ToolGetEntity,
		mcp.WithDescription("One entity resolution by id"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity resolution UUID")),
	), s.handleGetEntity)
	s.server.AddTool(mcp.NewTool(ToolCountRecords,
		mcp.WithDescription("Record counts per kind"),
	), s.handleCountRecords)
}

func (s *Server) queryHandler(name string) server.ToolHandlerFunc {
	param := apacheta.QueryParams[name]
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var arg string
		if param != "" {
			v, err := request.RequireString(param)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			arg = v
		}
		start := time.Now()
		v, err := apacheta.RunQuery(s.store, name, arg)
		if err != nil {
			s.logger.Debugw(sym.Gateway+" mcp query failed", logger.FieldQuery, name, logger.FieldError, err)
		} else {
			s.logger.Debugw(sym.Gateway+" mcp query", logger.FieldQuery, name, logger.FieldDurationMS, time.Since(start).Milliseconds())
		}
		return result(v, err)
	}
}

func (s *Server) handleListTensors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.store.ListTensors())
}

func (s *Server) handleGetTensor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(request, apacheta.ParamTensorID)
	if errResult != nil {
		return errResult, nil
	}
	return result(s.store.GetTensor(id))
}

func (s *Server) handleGetStrand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(request, apacheta.ParamTensorID)
	if errResult != nil {
		return errResult, nil
	}
	index, err := request.RequireInt("strand_index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return result(s.store.GetStrand(id, index))
}

func (s *Server) handleGetEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(request, "id")
	if errResult != nil {
		return errResult, nil
	}
	return result(s.store.GetEntity(id))
}

func (s *Server) handleCountRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.store.CountRecords())
}

func requireID(request mcp.CallToolRequest, param string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := request.RequireString(param)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(err.Error())
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(fmt.Sprintf("invalid %s %q", param, raw))
	}
	return id, nil
}

// result renders v as indented JSON. Store faults become tool errors so
// the model sees them; they are not protocol failures.
func result[T any](v T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
