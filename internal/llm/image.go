package llm

import (
	"context"
	"encoding/base64"

	"companionbot/internal/session"
	"companionbot/internal/tools"
)

// ImageTurnRequest describes a turn whose newest user message carries an
// inline image alongside its caption. Streaming is never used for this
// shape (deltas are plain text only; a mid-stream tool_use discard-and-rerun
// would have to resend the image anyway), so this always runs the full
// tool-iteration loop non-streaming from the start.
type ImageTurnRequest struct {
	Tier      string
	System    string
	History   []session.Message // prior turns, text only
	Caption   string
	ImageData []byte // raw, not yet base64-encoded
	MediaType string // e.g. "image/jpeg"
	Tools     []*tools.Tool
	Registry  *tools.Registry
}

// RunImageTurn runs one turn whose final user message is a caption plus an
// inline image block, through the same tool-iteration loop RunTurn uses.
func (o *Orchestrator) RunImageTurn(ctx context.Context, req ImageTurnRequest) (*TurnResult, error) {
	tier := o.llmCfg.Tier(req.Tier)
	messages := toWireMessages(req.History)
	messages = append(messages, wireMessage{
		Role: "user",
		Content: []contentBlock{
			{
				Type: "image",
				Source: &imageSource{
					Type:      "base64",
					MediaType: req.MediaType,
					Data:      base64.StdEncoding.EncodeToString(req.ImageData),
				},
			},
			{Type: "text", Text: req.Caption},
		},
	})
	return o.runLoop(ctx, tier, req.System, messages, toWireTools(req.Tools), req.Registry)
}
