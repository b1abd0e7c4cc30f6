package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ragline/ragline/internal/ai"
	"github.com/ragline/ragline/internal/embedcache"
	"github.com/ragline/ragline/internal/memory"
	"github.com/ragline/ragline/internal/model"
	appErr "github.com/ragline/ragline/internal/pkg/errors"
	"github.com/ragline/ragline/internal/retrieval"
)

const answerPrompt = `You are a helpful assistant that answers questions based on the provided documents. Be natural, conversational, and concise.

Guidelines:
- Answer directly and naturally, like you're having a conversation
- Keep responses short and to the point
- Only use information from the provided context
- If you don't know something, just say so simply

Context from documents:
%s

Question: %s

Answer:`

type ChatConfig struct {
	TopK            int
	MaxContextChars int
	MemoryMaxChars  int
	GenTimeout      time.Duration
}

// ChatService drives one pipeline execution per user turn: greeting
// short-circuit, query embedding, retrieval, context assembly, generation,
// then the memory update.
type ChatService struct {
	batcher   *embedcache.Batcher
	retriever *retrieval.Retriever
	generator ai.IGenerator
	memory    *memory.Memory
	cache     *embedcache.Cache
	cfg       ChatConfig

	statsMu         sync.Mutex
	queries         int64
	totalRetrieval  time.Duration
	totalGeneration time.Duration
}

type TurnStats struct {
	RetrievalTime  float64 `json:"retrieval_time"`
	GenerationTime float64 `json:"generation_time"`
	TotalTime      float64 `json:"total_time"`
}

type ChatResult struct {
	Answer  string                  `json:"answer"`
	Sources []model.RankedCandidate `json:"sources"`
	Stats   TurnStats               `json:"stats"`
}

type PipelineStats struct {
	Queries           int64            `json:"queries"`
	AvgRetrievalSecs  float64          `json:"avg_retrieval_secs"`
	AvgGenerationSecs float64          `json:"avg_generation_secs"`
	Cache             model.CacheStats `json:"cache"`
	MemoryItems       int              `json:"memory_items"`
}

func NewChatService(
	batcher *embedcache.Batcher,
	retriever *retrieval.Retriever,
	generator ai.IGenerator,
	mem *memory.Memory,
	cache *embedcache.Cache,
	cfg ChatConfig,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 8000
	}
	if cfg.MemoryMaxChars <= 0 {
		cfg.MemoryMaxChars = 1200
	}
	return &ChatService{
		batcher:   batcher,
		retriever: retriever,
		generator: generator,
		memory:    mem,
		cache:     cache,
		cfg:       cfg,
	}
}

func (s *ChatService) Chat(ctx context.Context, question string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("question", question))
	start := time.Now()

	if IsGreeting(question) {
		// The turn still lands in memory so follow-ups read naturally.
		s.memory.Append(question, GreetingResponse)
		return &ChatResult{Answer: GreetingResponse, Sources: []model.RankedCandidate{}}, nil
	}

	optimized := optimizeQuery(question)
	retrievalStart := time.Now()
	vectors, err := s.batcher.EmbedAll(ctx, []string{optimized})
	if err != nil {
		logger.Error("failed to embed query", zap.Error(err))
		return nil, fmt.Errorf("%w: embed query: %v", appErr.ErrUnavailable, err)
	}
	ranked, err := s.retriever.Retrieve(ctx, question, vectors[0], s.cfg.TopK)
	if err != nil {
		logger.Error("retrieval failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrUnavailable, err)
	}
	retrievalTime := time.Since(retrievalStart)

	excerpt := s.memory.Excerpt(s.cfg.MemoryMaxChars)
	contextText := retrieval.AssembleContext(ranked, excerpt, s.cfg.MaxContextChars)

	generationStart := time.Now()
	answer, err := s.generate(ctx, contextText, question)
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return nil, err
	}
	generationTime := time.Since(generationStart)

	s.memory.Append(question, answer)
	s.recordTurn(retrievalTime, generationTime)
	logger.Debug("chat turn done",
		zap.Int("sources", len(ranked)),
		zap.Duration("retrieval", retrievalTime),
		zap.Duration("generation", generationTime),
	)
	return &ChatResult{
		Answer:  answer,
		Sources: ranked,
		Stats: TurnStats{
			RetrievalTime:  retrievalTime.Seconds(),
			GenerationTime: generationTime.Seconds(),
			TotalTime:      time.Since(start).Seconds(),
		},
	}, nil
}

func (s *ChatService) generate(ctx context.Context, contextText, question string) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("%w: generator not configured", appErr.ErrUnavailable)
	}
	if s.cfg.GenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenTimeout)
		defer cancel()
	}
	if contextText == "" {
		contextText = "No relevant documents found."
	}
	answer, err := s.generator.Generate(ctx, fmt.Sprintf(answerPrompt, contextText, question))
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) || appErr.IsUnavailable(err) {
			return "", fmt.Errorf("%w: %v", appErr.ErrUnavailable, err)
		}
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("empty model response")
	}
	return answer, nil
}

// optimizeQuery appends the query's top key terms, which improves recall
// on indexes that mix lexical signals into their scoring.
func optimizeQuery(question string) string {
	terms := retrieval.QueryTerms(question)
	if len(terms) == 0 {
		return question
	}
	if len(terms) > 5 {
		terms = terms[:5]
	}
	return question + " " + strings.Join(terms, " ")
}

func (s *ChatService) recordTurn(retrievalTime, generationTime time.Duration) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.queries++
	s.totalRetrieval += retrievalTime
	s.totalGeneration += generationTime
}

func (s *ChatService) Stats(ctx context.Context) PipelineStats {
	s.statsMu.Lock()
	queries := s.queries
	totalRetrieval := s.totalRetrieval
	totalGeneration := s.totalGeneration
	s.statsMu.Unlock()
	stats := PipelineStats{
		Queries:     queries,
		MemoryItems: s.memory.Len(),
	}
	if queries > 0 {
		stats.AvgRetrievalSecs = totalRetrieval.Seconds() / float64(queries)
		stats.AvgGenerationSecs = totalGeneration.Seconds() / float64(queries)
	}
	if s.cache != nil {
		stats.Cache = s.cache.Stats(ctx)
	}
	return stats
}

func (s *ChatService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

func (s *ChatService) ClearMemory() {
	s.memory.Clear()
}
