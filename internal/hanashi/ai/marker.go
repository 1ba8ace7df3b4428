package ai

import (
	"encoding/json"
	"strings"
)

// Text markers used by providers that cannot return structured tool calls,
// and by older deployments that stored tool calls as plain reply text.
const (
	toolCallPrefix = "[TOOL_CALL:" + ImageToolName + ":"
	toolCallSuffix = "]"
	pictureMarker  = "[REQUEST_PICTURE]"
)

// imageHintOpenAI is appended to the system prompt when the model can call the
// image tool natively.
const imageHintOpenAI = " If you want to generate and send a picture or image, use the request_picture tool with a detailed description of what image you want to create."

// imageHintMarker is appended to the system prompt for models that signal an
// image request in plain text.
const imageHintMarker = " If you want to generate and send a picture, just say " + pictureMarker + " followed by your description."

// encodeToolCall renders an image request in the legacy text form
// [TOOL_CALL:request_picture:{"description":"..."}].
func encodeToolCall(description string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(imageToolArgs{Description: description})
	return toolCallPrefix + strings.TrimSuffix(b.String(), "\n") + toolCallSuffix
}

// ParseToolCall recognizes the legacy text form produced by encodeToolCall.
// ok is false when text is not a well-formed image request.
func ParseToolCall(text string) (Reply, bool) {
	if !strings.HasPrefix(text, toolCallPrefix) || !strings.HasSuffix(text, toolCallSuffix) {
		return Reply{}, false
	}
	args := text[len(toolCallPrefix) : len(text)-len(toolCallSuffix)]
	reply, err := ImageRequestFromArgs([]byte(args))
	if err != nil {
		return Reply{}, false
	}
	return reply, true
}

// parsePictureMarker turns model output containing [REQUEST_PICTURE] into an
// image request whose description is the rest of the text.
func parsePictureMarker(content string) (Reply, bool) {
	if !strings.Contains(content, pictureMarker) {
		return Reply{}, false
	}
	desc := strings.TrimSpace(strings.ReplaceAll(content, pictureMarker, ""))
	if desc == "" {
		return Reply{}, false
	}
	return ImageRequest(desc), true
}

// decodeTextReply interprets free-form model output, honoring both legacy
// image markers.
func decodeTextReply(content string) Reply {
	trimmed := strings.TrimSpace(content)
	if r, ok := ParseToolCall(trimmed); ok {
		return r
	}
	if r, ok := parsePictureMarker(trimmed); ok {
		return r
	}
	return TextReply(content)
}
