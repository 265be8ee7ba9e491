package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/chain"
	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/rag"
	"github.com/Rrens/voice-agent/internal/speech"
)

// Messages spoken back to the caller when a turn cannot be answered
const (
	GenericFallback = "Please say something."
	RepeatPrompt    = "Cannot hear properly. Speak again !"
)

var (
	// ErrGeneration is returned when no reply could be generated for a turn
	ErrGeneration = errors.New("failed to generate reply")

	// ErrNoIndex is returned when a call has no document to ground on
	ErrNoIndex = errors.New("no document indexed for call")

	// ErrNoArchive is returned when archived history is asked for but no
	// archive is configured
	ErrNoArchive = errors.New("call archive is not enabled")
)

// TurnInput is one customer utterance, typed or recorded
type TurnInput struct {
	CallID        string
	Text          string
	Audio         []byte
	AudioFilename string
	IncludeAudio  bool
	Voice         string
	Tone          string
}

// TurnResult is the outcome of one turn. When Fallback is set nothing was
// recorded and Fallback is the line to show or speak instead of a reply.
type TurnResult struct {
	Transcription string
	Reply         string
	Source        domain.TurnSource
	Sources       []domain.Chunk
	ShouldEndCall bool
	Fallback      string
	Audio         *speech.Audio
}

// RegroundResult is the outcome of re-grounding the last reply
type RegroundResult struct {
	Replaced bool
	Reply    string
	Source   domain.TurnSource
	Audio    *speech.Audio
}

// CallService runs calls: it owns the session state machine and binds the
// chains, the document registry and the speech adapters together
type CallService struct {
	sessions     domain.SessionStore
	conversation *chain.ConversationChain
	retrieval    *chain.RetrievalChain
	registry     *rag.Registry
	builder      *rag.Builder
	transcriber  speech.Transcriber
	synthesizer  speech.Synthesizer
	persona      llm.Persona
	archive      domain.CallArchive
}

// NewCallService creates a new call service
func NewCallService(
	sessions domain.SessionStore,
	conversation *chain.ConversationChain,
	retrieval *chain.RetrievalChain,
	registry *rag.Registry,
	builder *rag.Builder,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	persona llm.Persona,
) *CallService {
	return &CallService{
		sessions:     sessions,
		conversation: conversation,
		retrieval:    retrieval,
		registry:     registry,
		builder:      builder,
		transcriber:  transcriber,
		synthesizer:  synthesizer,
		persona:      persona,
	}
}

// SetArchive enables writing every recorded turn to a durable archive
func (s *CallService) SetArchive(archive domain.CallArchive) {
	s.archive = archive
}

// IsEndOfCall reports whether the customer is saying goodbye. The flag is
// advisory: the session stays open until the call is ended explicitly.
func IsEndOfCall(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "thank you") || strings.Contains(lower, "bye")
}

// StartCall opens a session and generates the agent's first line from the
// canned greeting. Only the generated reply is recorded.
func (s *CallService) StartCall(ctx context.Context, req domain.StartCallRequest) (*domain.StartCallResponse, error) {
	session := domain.NewSession(uuid.NewString())
	session.CustomerName = req.CustomerName
	session.PhoneNumber = req.PhoneNumber

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	greeting := llm.BuildGreeting(s.persona, req.CustomerName)
	reply, err := s.conversation.Run(ctx, nil, greeting)
	if err != nil {
		log.Error().Err(err).Str("call_id", session.ID).Msg("Failed to generate first message")
		if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil && !errors.Is(delErr, domain.ErrSessionNotFound) {
			log.Warn().Err(delErr).Str("call_id", session.ID).Msg("Failed to discard session")
		}
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	first := domain.NewAssistantTurn(reply, domain.SourceChat)
	if err := s.sessions.Append(ctx, session.ID, first); err != nil {
		return nil, fmt.Errorf("failed to record first message: %w", err)
	}

	session.Turns = append(session.Turns, first)
	s.archiveCall(ctx, session)

	log.Info().
		Str("call_id", session.ID).
		Str("customer", req.CustomerName).
		Msg("Call started")

	return &domain.StartCallResponse{
		CallID:       session.ID,
		Message:      fmt.Sprintf("Call started with %s", req.CustomerName),
		FirstMessage: reply,
	}, nil
}

// Respond answers one typed message
func (s *CallService) Respond(ctx context.Context, callID string, req domain.RespondRequest) (*domain.RespondResponse, error) {
	result, err := s.HandleTurn(ctx, TurnInput{
		CallID:       callID,
		Text:         req.Message,
		IncludeAudio: req.IncludeAudio,
	})
	if err != nil {
		return nil, err
	}

	if result.Fallback != "" {
		return &domain.RespondResponse{Reply: result.Fallback, Fallback: result.Fallback}, nil
	}

	resp := &domain.RespondResponse{
		Reply:         result.Reply,
		ShouldEndCall: result.ShouldEndCall,
		Source:        result.Source,
	}
	if result.Audio != nil {
		resp.AudioBase64 = result.Audio.Base64()
	}
	return resp, nil
}

// HandleTurn runs one turn of the call:
//  1. recorded input is transcribed; failure yields RepeatPrompt and records nothing
//  2. a call with a visible document is answered by the retrieval chain, falling
//     back to the conversation chain when retrieval fails
//  3. user and assistant turns are recorded together once a reply exists
//  4. the reply is optionally synthesized; synthesis failure leaves a text-only reply
func (s *CallService) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	session, err := s.sessions.Get(ctx, in.CallID)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{}
	text := in.Text

	if len(in.Audio) > 0 {
		transcription, err := s.transcriber.Transcribe(ctx, in.Audio, in.AudioFilename)
		if err != nil {
			log.Warn().Err(err).Str("call_id", in.CallID).Msg("Transcription failed")
			result.Fallback = RepeatPrompt
			return result, nil
		}
		text = transcription
		result.Transcription = transcription
	}

	text = strings.TrimSpace(text)
	if text == "" {
		result.Fallback = RepeatPrompt
		return result, nil
	}

	answer, err := s.generate(ctx, in.CallID, session.Turns, text)
	if err != nil {
		log.Error().Err(err).Str("call_id", in.CallID).Msg("Failed to generate reply")
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	turns := []domain.Turn{
		domain.NewUserTurn(text),
		domain.NewAssistantTurn(answer.Text, answer.source),
	}
	if err := s.sessions.Append(ctx, in.CallID, turns...); err != nil {
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}
	s.archiveTurns(ctx, in.CallID, turns)

	result.Reply = answer.Text
	result.Source = answer.source
	result.Sources = answer.Sources
	result.ShouldEndCall = IsEndOfCall(text)

	if in.IncludeAudio {
		result.Audio = s.speak(ctx, in.CallID, answer.Text, speech.SynthesizeOptions{Voice: in.Voice, Tone: in.Tone})
	}

	log.Info().
		Str("call_id", in.CallID).
		Str("source", string(result.Source)).
		Int("sources", len(result.Sources)).
		Bool("should_end_call", result.ShouldEndCall).
		Msg("Turn completed")

	return result, nil
}

type generatedAnswer struct {
	chain.Answer
	source domain.TurnSource
}

// generate picks the chain for the call. History is read, never modified.
func (s *CallService) generate(ctx context.Context, callID string, history []domain.Turn, text string) (*generatedAnswer, error) {
	if idx, done, ok := s.registry.Acquire(callID); ok {
		answer, err := s.retrieval.Run(ctx, idx, history, text)
		done()
		if err == nil {
			return &generatedAnswer{Answer: *answer, source: domain.SourceRetrieval}, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		log.Warn().Err(err).Str("call_id", callID).Msg("Retrieval failed, answering without document")
	}

	reply, err := s.conversation.Run(ctx, history, text)
	if err != nil {
		return nil, err
	}
	return &generatedAnswer{Answer: chain.Answer{Text: reply}, source: domain.SourceChat}, nil
}

// Conversation returns the history of a call
func (s *CallService) Conversation(ctx context.Context, callID string) (*domain.ConversationResponse, error) {
	session, err := s.sessions.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	return &domain.ConversationResponse{
		CallID:  session.ID,
		History: session.History(),
	}, nil
}

// ArchivedConversation returns the history of a call as recorded in the
// archive, which outlives the session
func (s *CallService) ArchivedConversation(ctx context.Context, callID string) (*domain.ConversationResponse, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}

	turns, err := s.archive.ListTurns(ctx, callID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	archived := &domain.Session{ID: callID, Turns: turns}
	return &domain.ConversationResponse{
		CallID:  callID,
		History: archived.History(),
	}, nil
}

// EndCall drops the session and any document uploaded for it
func (s *CallService) EndCall(ctx context.Context, callID string) error {
	if err := s.sessions.Delete(ctx, callID); err != nil {
		return err
	}
	s.registry.RemoveCall(callID)

	log.Info().Str("call_id", callID).Msg("Call ended")
	return nil
}

// RegroundLastReply answers the last question again from the call's document
// and overwrites the last reply with the grounded answer. A reply that already
// came from the document is left alone.
func (s *CallService) RegroundLastReply(ctx context.Context, callID string, includeAudio bool) (*RegroundResult, error) {
	session, err := s.sessions.Get(ctx, callID)
	if err != nil {
		return nil, err
	}

	idx, done, ok := s.registry.Acquire(callID)
	if !ok {
		return nil, ErrNoIndex
	}
	defer done()

	last, ok := session.LastTurn(domain.RoleAssistant)
	if !ok {
		return nil, domain.ErrNoAssistantTurn
	}
	if last.Source == domain.SourceRetrieval {
		return &RegroundResult{Reply: last.Content, Source: last.Source}, nil
	}

	question, history, ok := lastQuestion(session.Turns)
	if !ok {
		// only the greeting so far
		return &RegroundResult{Reply: last.Content, Source: last.Source}, nil
	}

	answer, err := s.retrieval.Run(ctx, idx, history, question)
	if err != nil {
		log.Warn().Err(err).Str("call_id", callID).Msg("Re-grounding failed")
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if err := s.sessions.ReplaceLastAssistant(ctx, callID, answer.Text, domain.SourceRetrieval); err != nil {
		return nil, fmt.Errorf("failed to replace reply: %w", err)
	}
	s.archiveTurns(ctx, callID, []domain.Turn{domain.NewAssistantTurn(answer.Text, domain.SourceRetrieval)})

	result := &RegroundResult{
		Replaced: true,
		Reply:    answer.Text,
		Source:   domain.SourceRetrieval,
	}
	if includeAudio {
		result.Audio = s.speak(ctx, callID, answer.Text, speech.SynthesizeOptions{})
	}

	log.Info().Str("call_id", callID).Int("sources", len(answer.Sources)).Msg("Last reply re-grounded")
	return result, nil
}

// lastQuestion returns the most recent user turn and the history before it
func lastQuestion(turns []domain.Turn) (string, []domain.Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			return turns[i].Content, turns[:i], true
		}
	}
	return "", nil, false
}

// UploadDocument indexes a PDF. An empty callID makes it the global document
// every call can see; otherwise it is visible to that call only. The previous
// document of the same scope stays in place if indexing fails.
func (s *CallService) UploadDocument(ctx context.Context, callID, name string, r io.ReaderAt, size int64) (*domain.UploadResponse, error) {
	if callID != "" {
		if _, err := s.sessions.Get(ctx, callID); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	idx, err := s.builder.Build(ctx, name, r, size)
	if err != nil {
		return nil, err
	}
	s.registry.Set(callID, idx)

	scope := "global"
	if callID != "" {
		scope = "call"
	}
	info := idx.Info()

	log.Info().
		Str("document", name).
		Str("scope", scope).
		Str("call_id", callID).
		Dur("took", time.Since(start)).
		Msg("Document ready for retrieval")

	return &domain.UploadResponse{
		Status:   "PDF uploaded and processed for RAG.",
		Document: info.Name,
		Pages:    info.Pages,
		Chunks:   info.Chunks,
		Scope:    scope,
	}, nil
}

// Transcribe converts recorded audio to text
func (s *CallService) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return s.transcriber.Transcribe(ctx, audio, filename)
}

// Synthesize speaks text with the given voice settings
func (s *CallService) Synthesize(ctx context.Context, text string, opts speech.SynthesizeOptions) (*speech.Audio, error) {
	return s.synthesizer.Synthesize(ctx, text, opts)
}

func (s *CallService) speak(ctx context.Context, callID, text string, opts speech.SynthesizeOptions) *speech.Audio {
	audio, err := s.synthesizer.Synthesize(ctx, text, opts)
	if err != nil {
		log.Warn().Err(err).Str("call_id", callID).Msg("Speech synthesis failed, replying with text only")
		return nil
	}
	log.Debug().Str("call_id", callID).Dur("duration", audio.Duration()).Msg("Synthesized reply")
	return audio
}

func (s *CallService) archiveCall(ctx context.Context, session *domain.Session) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveCall(ctx, session); err != nil {
		log.Error().Err(err).Str("call_id", session.ID).Msg("Failed to archive call")
	}
}

func (s *CallService) archiveTurns(ctx context.Context, callID string, turns []domain.Turn) {
	if s.archive == nil {
		return
	}
	if err := s.archive.AppendTurns(ctx, callID, turns); err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("Failed to archive turns")
	}
}
