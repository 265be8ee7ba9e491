package domain

// StartCallRequest opens a new call
type StartCallRequest struct {
	PhoneNumber  string `json:"phone_number" validate:"required,max=32"`
	CustomerName string `json:"customer_name" validate:"required,max=100"`
}

// StartCallResponse carries the new call id and the agent's opening line
type StartCallResponse struct {
	CallID       string `json:"call_id"`
	Message      string `json:"message"`
	FirstMessage string `json:"first_message"`
}

// RespondRequest is one typed customer utterance
type RespondRequest struct {
	Message      string `json:"message" validate:"required,max=4000"`
	IncludeAudio bool   `json:"include_audio"`
}

// RespondResponse is the agent reply to one utterance. When Fallback is set
// nothing was recorded and Reply carries the fallback line.
type RespondResponse struct {
	Reply         string     `json:"reply"`
	ShouldEndCall bool       `json:"should_end_call"`
	Source        TurnSource `json:"source,omitempty"`
	Fallback      string     `json:"fallback,omitempty"`
	AudioBase64   string     `json:"audio_base64,omitempty"`
}

// ConversationResponse lists the history of a call
type ConversationResponse struct {
	CallID  string        `json:"call_id"`
	History []HistoryItem `json:"history"`
}

// VoiceRequest asks for a spoken rendition of a message
type VoiceRequest struct {
	Message string `json:"message" validate:"required,max=4096"`
	Voice   string `json:"voice,omitempty" validate:"omitempty,oneof=alloy ash ballad coral echo fable onyx nova sage shimmer verse"`
	Tone    string `json:"tone,omitempty" validate:"omitempty,max=100"`
}

// TranscriptionResponse is the result of /transcribe/
type TranscriptionResponse struct {
	Transcription string `json:"transcription"`
}

// VoiceTurnResponse is the result of one spoken turn
type VoiceTurnResponse struct {
	Transcription string     `json:"transcription"`
	Reply         string     `json:"reply"`
	ShouldEndCall bool       `json:"should_end_call"`
	Source        TurnSource `json:"source,omitempty"`
	Fallback      string     `json:"fallback,omitempty"`
	AudioBase64   string     `json:"audio_base64,omitempty"`
}

// UploadResponse reports a successfully indexed document
type UploadResponse struct {
	Status   string `json:"status"`
	Document string `json:"document"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
	Scope    string `json:"scope"`
}

// RegroundResponse reports the outcome of re-grounding the last reply
type RegroundResponse struct {
	Replaced    bool       `json:"replaced"`
	Reply       string     `json:"reply"`
	Source      TurnSource `json:"source"`
	AudioBase64 string     `json:"audio_base64,omitempty"`
}
