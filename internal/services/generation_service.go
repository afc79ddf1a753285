package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
)

// GenerationErrorKind classifies generation failures. Only Unavailable is worth retrying.
type GenerationErrorKind int

const (
	Unavailable GenerationErrorKind = iota + 1
	MalformedResponse
)

func (k GenerationErrorKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case MalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// GenerationError is returned by every failed Generate call.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("plan generation %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a generation failure a caller may retry as-is.
func IsRetryable(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Kind == Unavailable
}

func unavailable(err error) error {
	return &GenerationError{Kind: Unavailable, Err: err}
}

func malformed(format string, args ...any) error {
	return &GenerationError{Kind: MalformedResponse, Err: fmt.Errorf(format, args...)}
}

// GenerationRequest carries the profile attributes the plan is generated from.
// Age 0 and an empty Goal are treated as unspecified.
type GenerationRequest struct {
	Email  string
	Age    int
	Weight float64 // kg
	Height float64 // m
	Goal   string
}

// GenerationRequestFromUser builds a request from a complete profile.
func GenerationRequestFromUser(u *models.User) GenerationRequest {
	req := GenerationRequest{Email: u.Email}
	if u.Age != nil {
		req.Age = *u.Age
	}
	if u.Weight != nil {
		req.Weight = *u.Weight
	}
	if u.Height != nil {
		req.Height = *u.Height
	}
	if u.Goal != nil {
		req.Goal = *u.Goal
	}
	return req
}

// Generator produces a daily plan for one user and date.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest, date string) (*models.DailyPlan, error)
}

// GenerationService calls an OpenAI-compatible chat completion endpoint and parses the
// reply into plan rows. It never retries.
type GenerationService struct {
	client      *openai.Client
	model       string
	temperature float32
	validate    *validator.Validate
}

// NewGenerationService creates a GenerationService from cfg.
func NewGenerationService(cfg *config.Config) *GenerationService {
	timeout := cfg.AITimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.OpenAIBaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &GenerationService{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.OpenAIModel,
		temperature: float32(cfg.OpenAITemperature),
		validate:    validator.New(),
	}
}

// Generate asks the service for a plan and stamps every row with req.Email and date.
func (s *GenerationService) Generate(ctx context.Context, req GenerationRequest, date string) (plan *models.DailyPlan, err error) {
	ctx, span := startSpan(ctx, "generation.Generate")
	span.SetAttributes(attribute.String("plan.date", date), attribute.String("llm.model", s.model))
	start := time.Now()
	defer func() {
		generationDuration.Observe(time.Since(start).Seconds())
		generationTotal.WithLabelValues(generationResult(err)).Inc()
		endSpan(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	systemPrompt, userPrompt := buildPlanPrompt(req)
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: s.temperature,
	})
	if err != nil {
		if isDecodeError(err) {
			return nil, malformed("decode completion envelope: %w", err)
		}
		slog.Warn("generation request failed", "email", req.Email, "date", date, "error", err)
		return nil, unavailable(err)
	}

	if len(resp.Choices) == 0 {
		return nil, malformed("empty choices in completion")
	}

	return s.parsePlan(resp.Choices[0].Message.Content, req.Email, date)
}

// isDecodeError reports whether a 2xx response carried an undecodable envelope. Non-2xx
// replies surface as RequestError or APIError even when their body is not JSON.
func isDecodeError(err error) bool {
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	if errors.As(err, &reqErr) || errors.As(err, &apiErr) {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func generationResult(err error) string {
	var ge *GenerationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ge):
		return ge.Kind.String()
	default:
		return "error"
	}
}

const planSystemPrompt = "You are a fitness and diet planner. Return ONLY valid JSON, no markdown or explanation."

// buildPlanPrompt renders the system and user messages. Output depends only on req.
func buildPlanPrompt(req GenerationRequest) (string, string) {
	var b strings.Builder
	b.WriteString("Based on the following user details:\n")
	if req.Age > 0 {
		fmt.Fprintf(&b, "- Age: %d\n", req.Age)
	} else {
		b.WriteString("- Age: not specified\n")
	}
	fmt.Fprintf(&b, "- Weight: %.1f kg\n", req.Weight)
	fmt.Fprintf(&b, "- Height: %.2f m\n", req.Height)
	if req.Goal != "" {
		fmt.Fprintf(&b, "- Goal: %s\n", req.Goal)
	} else {
		b.WriteString("- Goal: not specified\n")
	}

	b.WriteString(`
Generate:
1. Recommended daily calorie intake and burn values.
2. A fitness plan for the day, including warmup, strength training, cardio, and stretching (if needed).
3. A diet plan for the day, including breakfast, lunch, dinner, and optional snacks.
4. Ensure the calorie intake respects the goal: below the daily maintenance level for weight loss, above it for muscle gain.
5. Ensure "calorie_goal" is always an object with "intakeCalories" and "burnCalories" as keys, both being integers.

Return a JSON object with the following structure:
{
    "calorie_goal": {
        "intakeCalories": <int>,
        "burnCalories": <int>
    },
    "fitness_plan": [
        {"type": "warmup", "content": "string", "calories": <int>},
        {"type": "strength_training", "content": "string", "calories": <int>}
    ],
    "diet_plan": [
        {"type": "breakfast", "content": "string", "calories": <int>},
        {"type": "lunch", "content": "string", "calories": <int>}
    ]
}
Ensure that calorie values match the user's goal.`)

	return planSystemPrompt, b.String()
}

type planPayload struct {
	CalorieGoal *goalPayload  `json:"calorie_goal" validate:"required"`
	FitnessPlan []itemPayload `json:"fitness_plan" validate:"required,dive"`
	DietPlan    []itemPayload `json:"diet_plan" validate:"required,dive"`
}

type goalPayload struct {
	IntakeCalories *float64 `json:"intakeCalories" validate:"required,gte=0"`
	BurnCalories   *float64 `json:"burnCalories" validate:"required,gte=0"`
}

type itemPayload struct {
	Type     string   `json:"type" validate:"required"`
	Content  string   `json:"content" validate:"required"`
	Calories *float64 `json:"calories" validate:"required,gte=0"`
}

// parsePlan strictly decodes the completion content. Any date the model includes is
// ignored; the caller's date is authoritative.
func (s *GenerationService) parsePlan(content, email, date string) (*models.DailyPlan, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload planPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, malformed("parse plan content: %w", err)
	}
	if err := s.validate.Struct(&payload); err != nil {
		return nil, malformed("invalid plan content: %w", err)
	}

	plan := &models.DailyPlan{
		Goal: &models.CalorieGoal{
			Intake: *payload.CalorieGoal.IntakeCalories,
			Burn:   *payload.CalorieGoal.BurnCalories,
		},
		Fitness: make([]models.FitnessPlanItem, 0, len(payload.FitnessPlan)),
		Diet:    make([]models.DietPlanItem, 0, len(payload.DietPlan)),
	}
	for _, it := range payload.FitnessPlan {
		plan.Fitness = append(plan.Fitness, models.FitnessPlanItem{
			Type:     it.Type,
			Content:  it.Content,
			Calories: *it.Calories,
		})
	}
	for _, it := range payload.DietPlan {
		plan.Diet = append(plan.Diet, models.DietPlanItem{
			Type:     it.Type,
			Content:  it.Content,
			Calories: *it.Calories,
		})
	}
	plan.Stamp(email, date)
	return plan, nil
}
