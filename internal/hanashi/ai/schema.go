package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ImageToolName is the function name models call to request a picture.
const ImageToolName = "request_picture"

const imageToolDescription = "Generate and send a picture to the chat using DALL-E"

// imageToolSchema describes the arguments of the request_picture tool. It is
// sent to providers as the tool's parameters and used to validate what they
// send back.
const imageToolSchema = `{
	"type": "object",
	"properties": {
		"description": {
			"type": "string",
			"minLength": 1,
			"description": "Detailed description of the picture to generate using DALL-E"
		}
	},
	"required": ["description"]
}`

var compiledImageTool = jsonschema.MustCompileString("request_picture.json", imageToolSchema)

type imageToolArgs struct {
	Description string `json:"description"`
}

// ImageRequestFromArgs validates raw request_picture arguments and returns the
// corresponding Reply.
func ImageRequestFromArgs(args []byte) (Reply, error) {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return Reply{}, fmt.Errorf("%w: decode %s arguments: %v", ErrAI, ImageToolName, err)
	}
	if err := compiledImageTool.Validate(doc); err != nil {
		return Reply{}, fmt.Errorf("%w: invalid %s arguments: %v", ErrAI, ImageToolName, err)
	}

	var parsed imageToolArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return Reply{}, fmt.Errorf("%w: decode %s arguments: %v", ErrAI, ImageToolName, err)
	}
	desc := strings.TrimSpace(parsed.Description)
	if desc == "" {
		return Reply{}, fmt.Errorf("%w: %s without description", ErrAI, ImageToolName)
	}
	return ImageRequest(desc), nil
}

// imageToolParameters returns the schema as a raw JSON value for embedding in
// provider requests.
func imageToolParameters() json.RawMessage {
	return json.RawMessage(imageToolSchema)
}
