package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ledgerguard/copilot/internal/firewall"
)

const serverName = "ledgerguard-copilot"

// Server exposes the firewall's tool table over the Model Context
// Protocol. Every call still goes through Gateway.Call, so MCP clients
// get the same validation, shaping and audit trail as HTTP callers.
type Server struct {
	inner   *server.MCPServer
	gateway *firewall.Gateway
	ownerID string
	logger  *slog.Logger
}

func NewServer(gateway *firewall.Gateway, version, ownerID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		inner:   server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
		gateway: gateway,
		ownerID: ownerID,
		logger:  logger,
	}
	for _, tool := range gateway.Tools() {
		srv.inner.AddTool(declareTool(tool), srv.handler(tool.Name))
	}
	return srv
}

// ServeStdio blocks serving the stdio transport until the client closes
// the stream.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.inner)
}

func (s *Server) handler(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestID := uuid.NewString()
		payload, err := s.gateway.Call(ctx, requestID, s.ownerID, toolName, req.GetArguments())
		if err != nil {
			s.logger.Warn("mcp tool call failed",
				slog.String("tool", toolName),
				slog.String("request_id", requestID),
				slog.String("error", err.Error()))
			return mcp.NewToolResultError(err.Error()), nil
		}

		raw, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return mcp.NewToolResultError("failed to encode tool result"), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

// declareTool translates a firewall tool row into its MCP declaration.
// The declaration is advisory for the client; the gateway re-validates
// every call against the same schema.
func declareTool(tool firewall.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(tool.Description)}

	names := make([]string, 0, len(tool.Schema.Properties))
	for name := range tool.Schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	required := map[string]bool{}
	for _, name := range tool.Schema.Required {
		required[name] = true
	}

	for _, name := range names {
		ref := tool.Schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		opts = append(opts, declareProperty(name, ref.Value, required[name]))
	}
	return mcp.NewTool(tool.Name, opts...)
}

func declareProperty(name string, schema *openapi3.Schema, isRequired bool) mcp.ToolOption {
	if schema.Type.Is(openapi3.TypeInteger) || schema.Type.Is(openapi3.TypeNumber) {
		var opts []mcp.PropertyOption
		if isRequired {
			opts = append(opts, mcp.Required())
		}
		if schema.Min != nil {
			opts = append(opts, mcp.Min(*schema.Min))
		}
		if schema.Max != nil {
			opts = append(opts, mcp.Max(*schema.Max))
		}
		return mcp.WithNumber(name, opts...)
	}

	var opts []mcp.PropertyOption
	if isRequired {
		opts = append(opts, mcp.Required())
	}
	if schema.Pattern != "" {
		opts = append(opts, mcp.Pattern(schema.Pattern))
	}
	if schema.MinLength > 0 {
		opts = append(opts, mcp.MinLength(int(schema.MinLength)))
	}
	if schema.MaxLength != nil {
		opts = append(opts, mcp.MaxLength(int(*schema.MaxLength)))
	}
	if len(schema.Enum) > 0 {
		values := make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				values = append(values, s)
			}
		}
		if len(values) > 0 {
			opts = append(opts, mcp.Enum(values...))
		}
	}
	return mcp.WithString(name, opts...)
}
