package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commands the agent can choose from
const (
	CommandGetStationVisits = "GetStationVisits"
	CommandGetVisitDetails  = "GetVisitDetails"
	CommandGeneralQuery     = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName       string `json:"command_name" jsonschema_description:"The command to execute: GetStationVisits, GetVisitDetails or GeneralQuery"`
	StationIdentifier string `json:"station_identifier" jsonschema_description:"The identifier of the gauging station from the known list, if applicable"`
	VisitKey          string `json:"visit_key" jsonschema_description:"The key of a field visit the user mentioned, if applicable"`
	UserMessage       string `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, knownStations []string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey string) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
	}, nil
}

func systemPrompt(knownStations []string) string {
	return fmt.Sprintf(`You are the assistant of a hydrometric team. The team gauges rivers with an OTT acoustic meter and imports the QReview discharge measurement exports into this bot.

Your job is to understand what the user wants to see about the imported discharge measurements.

Requirements:
- You understand any language and reply in the same language the user used.
- Keep replies short and factual. You know stream gauging well: verticals, mid-section and mean-section methods, stage, discharge uncertainty.

Known station identifiers: %s

Behavior:
1. If the user wants the latest measurements of a station:
   - command_name = "GetStationVisits"
   - station_identifier: the matching identifier from the list; if it is missing or dubious, leave it empty.
   - user_message: a one-line confirmation in the user's language.
2. If the user asks about one specific field visit by its key (keys look like "0123-20230501t080000z"):
   - command_name = "GetVisitDetails"
   - visit_key: the key as written by the user.
   - user_message: a one-line confirmation in the user's language.
3. Anything else (greetings, general hydrometry questions, nonsense):
   - command_name = "GeneralQuery"
   - station_identifier = "" and visit_key = ""
   - user_message: your answer in the user's language.

Output **strictly** in JSON.`, strings.Join(knownStations, ", "))
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, knownStations []string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, station identifier, visit key and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(knownStations)),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})

	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	return parseAgentResponse(chat.Choices[0].Message.Content)
}

func parseAgentResponse(content string) (*AgentResponse, error) {
	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(content), &agentResp); err != nil {
		return nil, fmt.Errorf("error unmarshalling OpenAI response %q: %w", content, err)
	}
	return &agentResp, nil
}
