package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"idnames-go/internal/config"
	"idnames-go/internal/service/naming"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type NamingServer struct {
	server        *mcp.Server
	namingService *naming.NamingService
	config        *config.Config
	logger        *zap.Logger
	handler       *mcp.StreamableHTTPHandler
}

type VariableParams struct {
	Corpus   string `json:"corpus,omitempty" jsonschema:"name of the trained corpus to consult"`
	FilePath string `json:"file_path" jsonschema:"path or file:// URI of the source file"`
	Language string `json:"language,omitempty" jsonschema:"language of the file, detected from the extension when empty"`
	Source   string `json:"source,omitempty" jsonschema:"file content, read from file_path when empty"`
	Line     int    `json:"line,omitempty" jsonschema:"1-based line of an occurrence of the variable"`
	Column   int    `json:"column,omitempty" jsonschema:"1-based column of an occurrence of the variable"`
	Name     string `json:"name,omitempty" jsonschema:"current name of the variable, used when line is not given"`
}

type InspectParams struct {
	Corpus   string `json:"corpus,omitempty" jsonschema:"name of the trained corpus to consult"`
	FilePath string `json:"file_path" jsonschema:"path or file:// URI of the source file"`
	Language string `json:"language,omitempty" jsonschema:"language of the file, detected from the extension when empty"`
	Source   string `json:"source,omitempty" jsonschema:"file content, read from file_path when empty"`
}

type TrainParams struct {
	Corpus   string `json:"corpus" jsonschema:"name of a configured corpus"`
	Override bool   `json:"override,omitempty" jsonschema:"retrain even if a saved model exists"`
}

func NewNamingServer(namingService *naming.NamingService, cfg *config.Config, logger *zap.Logger) *NamingServer {
	server := &NamingServer{
		namingService: namingService,
		config:        cfg,
		logger:        logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "IdentifierNames",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "suggestVariableNames",
		Description: "Suggest names for a local variable, ranked by how naturally each fits every place the variable is used, learned from the file and the project corpus",
	}, server.handleSuggestNames)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "variableNameProbability",
		Description: "Return how plausible the current name of a local variable is, between 0 and 1",
	}, server.handleNameProbability)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "inspectVariableNames",
		Description: "List the local variables in a file whose names are unusually improbable, with suggested replacements",
	}, server.handleInspectFile)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "trainCorpus",
		Description: "Load or train the n-gram model of a configured corpus",
	}, server.handleTrainCorpus)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

func (p VariableParams) request() *naming.VariableRequest {
	return &naming.VariableRequest{
		FileRequest: naming.FileRequest{
			Corpus:   p.Corpus,
			Path:     p.FilePath,
			Language: p.Language,
			Source:   p.Source,
		},
		Line:   p.Line,
		Column: p.Column,
		Name:   p.Name,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string, err error) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf("%s: %v", message, err))
	result.IsError = true
	return result
}

func (s *NamingServer) handleSuggestNames(ctx context.Context, req *mcp.CallToolRequest, args VariableParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling suggestVariableNames request",
		zap.String("file_path", args.FilePath),
		zap.Int("line", args.Line),
		zap.String("name", args.Name))

	response, err := s.namingService.SuggestNames(ctx, args.request())
	if err != nil {
		s.logger.Error("Failed to suggest names", zap.String("file_path", args.FilePath), zap.Error(err))
		return errorResult("Failed to suggest names", err), nil, nil
	}

	return textResult(formatSuggestions(response)), nil, nil
}

func (s *NamingServer) handleNameProbability(ctx context.Context, req *mcp.CallToolRequest, args VariableParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling variableNameProbability request",
		zap.String("file_path", args.FilePath),
		zap.Int("line", args.Line),
		zap.String("name", args.Name))

	response, err := s.namingService.NameProbability(ctx, args.request())
	if err != nil {
		s.logger.Error("Failed to compute name probability", zap.String("file_path", args.FilePath), zap.Error(err))
		return errorResult("Failed to compute name probability", err), nil, nil
	}

	text := fmt.Sprintf("Probability of name '%s' (%s): %.6f", response.Name, response.Category, response.Probability)
	return textResult(text), nil, nil
}

func (s *NamingServer) handleInspectFile(ctx context.Context, req *mcp.CallToolRequest, args InspectParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling inspectVariableNames request", zap.String("file_path", args.FilePath))

	response, err := s.namingService.InspectFile(ctx, &naming.FileRequest{
		Corpus:   args.Corpus,
		Path:     args.FilePath,
		Language: args.Language,
		Source:   args.Source,
	})
	if err != nil {
		s.logger.Error("Failed to inspect file", zap.String("file_path", args.FilePath), zap.Error(err))
		return errorResult("Failed to inspect file", err), nil, nil
	}

	return textResult(formatInspections(response)), nil, nil
}

func (s *NamingServer) handleTrainCorpus(ctx context.Context, req *mcp.CallToolRequest, args TrainParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling trainCorpus request", zap.String("corpus", args.Corpus), zap.Bool("override", args.Override))

	stats, err := s.namingService.TrainCorpus(ctx, args.Corpus, args.Override)
	if err != nil {
		if errors.Is(err, naming.ErrCorpusNotConfigured) {
			return textResult(fmt.Sprintf("Corpus not found: %s", args.Corpus)), nil, nil
		}
		s.logger.Error("Failed to train corpus", zap.String("corpus", args.Corpus), zap.Error(err))
		return errorResult("Failed to train corpus", err), nil, nil
	}

	text := fmt.Sprintf("Corpus '%s' ready: %d files, %d tokens, vocabulary %d, %d remembered names",
		stats.Corpus, stats.Runner.TrainedFiles, stats.Runner.TrainedTokens,
		stats.Runner.VocabularySize, stats.Runner.RememberedNames)
	return textResult(text), nil, nil
}

func formatSuggestions(response *naming.SuggestResponse) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Suggestions for '%s' (%d occurrences):\n", response.Name, response.Occurrences)
	if len(response.Suggestions) == 0 {
		result.WriteString("  No suggestions.\n")
	}
	for i, suggestion := range response.Suggestions {
		fmt.Fprintf(&result, "  %d. %s (%.4f)\n", i+1, suggestion.Name, suggestion.Score)
	}
	for _, timing := range response.Contributors {
		fmt.Fprintf(&result, "  [%s] priority=%d predictions=%d %.1fms\n",
			timing.Contributor, timing.Priority, timing.Predictions, timing.ElapsedMs)
	}
	return result.String()
}

func formatInspections(response *naming.InspectResponse) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Checked %d variables in %s, %d below %.4f\n",
		response.Checked, response.Path, len(response.Inspections), response.Threshold)
	for _, inspection := range response.Inspections {
		names := make([]string, 0, len(inspection.Suggestions))
		for _, suggestion := range inspection.Suggestions {
			names = append(names, suggestion.Name)
		}
		fmt.Fprintf(&result, "  %d:%d %s (%.6f) -> %s\n",
			inspection.Line, inspection.Column, inspection.Name, inspection.Probability, strings.Join(names, ", "))
	}
	return result.String()
}

// Handler returns the streamable HTTP handler serving the MCP protocol
func (s *NamingServer) Handler() http.Handler {
	return s.handler
}

// SetupHTTPRoutes mounts the MCP endpoint on router and, when an MCP port is
// configured, also serves it on its own listener
func (s *NamingServer) SetupHTTPRoutes(router *gin.Engine) {
	router.Any("/mcp", gin.WrapH(s.handler))

	if s.config.Mcp.Port == 0 {
		return
	}
	go func() {
		address := s.config.Mcp.GetAddress()
		s.logger.Info("MCP server going to listen", zap.String("address", address))
		if err := http.ListenAndServe(address, s.handler); err != nil {
			s.logger.Error("MCP server failed", zap.Error(err))
		}
	}()
}
