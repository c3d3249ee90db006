package gemini

import (
	"encoding/json"
	"fmt"

	"tutorcast/internal/domain"
)

// Wire envelopes for the BidiGenerateContent websocket. The schema mirrors the
// generative language service: one top-level key per message kind.

type inlinePayload struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wirePart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *inlinePayload `json:"inlineData,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type setupPayload struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *wireContent      `json:"systemInstruction,omitempty"`
}

type setupEnvelope struct {
	Setup setupPayload `json:"setup"`
}

type clientContentPayload struct {
	Turns        []wireContent `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type clientContentEnvelope struct {
	ClientContent clientContentPayload `json:"clientContent"`
}

type realtimeInputPayload struct {
	MediaChunks []inlinePayload `json:"mediaChunks"`
}

type realtimeInputEnvelope struct {
	RealtimeInput realtimeInputPayload `json:"realtimeInput"`
}

type serverContentPayload struct {
	ModelTurn    *wireContent `json:"modelTurn,omitempty"`
	TurnComplete bool         `json:"turnComplete,omitempty"`
	Interrupted  bool         `json:"interrupted,omitempty"`
}

type serverEnvelope struct {
	SetupComplete json.RawMessage       `json:"setupComplete,omitempty"`
	ServerContent *serverContentPayload `json:"serverContent,omitempty"`
	ToolCall      json.RawMessage       `json:"toolCall,omitempty"`
}

func buildSetupEnvelope(cfg domain.SessionConfig) setupEnvelope {
	payload := setupPayload{Model: cfg.Model}
	if len(cfg.ResponseModalities) > 0 {
		payload.GenerationConfig = &generationConfig{ResponseModalities: cfg.ResponseModalities}
	}
	if cfg.SystemInstruction != "" {
		payload.SystemInstruction = &wireContent{
			Parts: []wirePart{{Text: cfg.SystemInstruction}},
		}
	}
	return setupEnvelope{Setup: payload}
}

func toWireParts(parts []domain.Part) []wirePart {
	out := make([]wirePart, 0, len(parts))
	for _, part := range parts {
		wp := wirePart{Text: part.Text}
		if part.Inline != nil {
			wp.InlineData = &inlinePayload{MIMEType: part.Inline.MIMEType, Data: part.Inline.Data}
		}
		out = append(out, wp)
	}
	return out
}

func toWireChunks(chunks []domain.MediaChunk) []inlinePayload {
	out := make([]inlinePayload, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, inlinePayload{MIMEType: chunk.MIMEType, Data: chunk.Data})
	}
	return out
}

// serverMessage is the decoded form of one inbound frame.
type serverMessage struct {
	setupComplete bool
	interrupted   bool
	toolCall      bool
	fragments     []domain.InboundFragment
}

func decodeServerMessage(data []byte) (serverMessage, error) {
	var envelope serverEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return serverMessage{}, fmt.Errorf("failed to decode server frame: %w", err)
	}

	msg := serverMessage{
		setupComplete: len(envelope.SetupComplete) > 0,
		toolCall:      len(envelope.ToolCall) > 0,
	}

	content := envelope.ServerContent
	if content == nil {
		return msg, nil
	}

	msg.interrupted = content.Interrupted
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.Text == "" {
				continue
			}
			msg.fragments = append(msg.fragments, domain.InboundFragment{
				Kind: domain.FragmentKindModelTurnPart,
				Text: part.Text,
			})
		}
	}
	if content.TurnComplete {
		msg.fragments = append(msg.fragments, domain.InboundFragment{
			Kind: domain.FragmentKindTurnComplete,
		})
	}
	return msg, nil
}
