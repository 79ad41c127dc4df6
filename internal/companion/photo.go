package companion

import (
	"context"
	"strconv"
	"time"

	"companionbot/internal/llm"
	"companionbot/internal/logging"
	"companionbot/internal/session"
)

// maxImageBytes caps the inline image payload sent to the model. Larger
// photos should be downscaled by the caller (the transport layer) before
// reaching HandlePhoto.
const maxImageBytes = 10 << 20

// defaultPhotoCaption is used when the inbound photo carries no caption
// text at all.
const defaultPhotoCaption = "Here's a photo."

// HandlePhoto runs one inbound-photo turn: the image is attached as an
// inline content block alongside its caption and run through the
// non-streaming orchestration path, since tool-use discard-and-rerun
// during a stream would otherwise have to resend the image. Only the
// caption, never the image itself, is persisted to history and the JSONL
// log.
func (h *Handler) HandlePhoto(ctx context.Context, chatID int64, caption string, imageData []byte, mediaType string) (string, error) {
	if len(imageData) == 0 {
		return "", nil
	}
	if len(imageData) > maxImageBytes {
		return "That photo is too large for me to look at. Try sending a smaller one.", nil
	}
	if caption == "" {
		caption = defaultPhotoCaption
	}

	mu := h.lockFor(chatID)
	mu.Lock()
	defer mu.Unlock()

	ctx = session.WithChatID(ctx, chatID)
	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	h.recordActivity(chatID)
	chatKey := strconv.FormatInt(chatID, 10)
	start := time.Now()
	logging.TurnStart(chatKey, len(caption))

	priorHistory := h.sessions.GetHistory(chatID)
	h.sessions.AddMessage(chatID, "user", caption)

	model := h.sessions.Model(chatID)
	toolList := h.registry.All()
	system := h.buildSystemPrompt(ctx, chatID, model, priorHistory, toolList)

	result, err := h.orch.RunImageTurn(ctx, llm.ImageTurnRequest{
		Tier:      model,
		System:    system,
		History:   priorHistory,
		Caption:   caption,
		ImageData: imageData,
		MediaType: mediaType,
		Tools:     toolList,
		Registry:  h.registry,
	})
	if err != nil {
		friendly := h.recordTurnError(chatID, err)
		logging.TurnEnd(chatKey, time.Since(start).Milliseconds(), false, err.Error())
		return friendly, nil
	}

	h.sessions.AddMessage(chatID, "assistant", result.Text)
	h.sessions.SmartTrim(chatID, h.summarizeOldest)
	logging.TurnEnd(chatKey, time.Since(start).Milliseconds(), true, "")
	return result.Text, nil
}
