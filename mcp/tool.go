package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/fyerfyer/smart-rag/internal/services"
)

const (
	descAsk    = "Answer a question against the indexed documents. Returns the answer with source references, or a no_matches/insufficient_evidence outcome when retrieval finds nothing usable."
	descSearch = "Run a raw similarity search over indexed document chunks. Returns matches with their scores, without any quality filtering."
	descStats  = "Return system statistics: document count, vector count, embedding dimension and the last ingestion summary."
)

func registerTools(registry *protoserver.Registry, h *Handler) error {
	if err := protoserver.RegisterTool[*AskInput, *AskOutput](registry, "rag_ask", descAsk, func(ctx context.Context, in *AskInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.ask(ctx, in)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*SearchInput, *SearchOutput](registry, "rag_search", descSearch, func(ctx context.Context, in *SearchInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.search(ctx, in)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*StatsInput, *StatsOutput](registry, "rag_stats", descStats, func(ctx context.Context, in *StatsInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.systemStats(ctx)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	return nil
}

func buildErrorResult(message string) (*schema.CallToolResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewError(jsonrpc.InvalidParams, message, nil)
}

func buildSuccessResult(payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	b, _ := json.Marshal(payload)
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{
			schema.TextContent{Type: "text", Text: string(b)},
		},
		StructuredContent: map[string]any{"result": payload},
	}, nil
}

func (h *Handler) ask(ctx context.Context, in *AskInput) (*AskOutput, error) {
	if h == nil || h.qa == nil {
		return nil, fmt.Errorf("mcp: qa service unavailable")
	}
	if in == nil || strings.TrimSpace(in.Question) == "" {
		return nil, fmt.Errorf("mcp: missing question")
	}

	result, err := h.answer(ctx, in)
	if err != nil {
		return nil, err
	}

	out := &AskOutput{
		Outcome:   string(result.Outcome),
		Answer:    result.Answer,
		Threshold: result.Threshold,
	}
	for _, src := range result.Sources {
		out.Sources = append(out.Sources, SourceInfo{
			ID:       src.ID,
			FileID:   src.FileID,
			FileName: src.FileName,
			Text:     src.Content,
			Score:    src.Score,
		})
	}

	h.logger.WithFields(logrus.Fields{
		"question": in.Question,
		"outcome":  result.Outcome,
		"sources":  len(result.Sources),
	}).Info("mcp ask handled")

	return out, nil
}

func (h *Handler) answer(ctx context.Context, in *AskInput) (*services.AnswerResult, error) {
	if in.FileID != "" {
		return h.qa.AnswerWithFile(ctx, in.Question, in.FileID)
	}
	return h.qa.Answer(ctx, in.Question)
}

func (h *Handler) search(ctx context.Context, in *SearchInput) (*SearchOutput, error) {
	if h == nil || h.qa == nil {
		return nil, fmt.Errorf("mcp: qa service unavailable")
	}
	if in == nil || strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("mcp: missing query")
	}

	results, err := h.qa.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}

	out := &SearchOutput{Matches: make([]SourceInfo, 0, len(results))}
	for _, r := range results {
		out.Matches = append(out.Matches, SourceInfo{
			ID:       r.Document.ID,
			FileID:   r.Document.FileID,
			FileName: r.Document.FileName,
			Text:     r.Document.Text,
			Score:    r.Score,
		})
	}
	return out, nil
}

func (h *Handler) systemStats(ctx context.Context) (*StatsOutput, error) {
	if h == nil || h.stats == nil {
		return nil, fmt.Errorf("mcp: stats service unavailable")
	}

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &StatsOutput{
		DocumentCount: stats.DocumentCount,
		VectorCount:   stats.VectorCount,
		Dimension:     stats.Dimension,
		LastIngest:    stats.LastIngest,
	}, nil
}
