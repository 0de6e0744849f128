package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/llm"
	"cora-trainer-go/pkg/log"
)

const evaluatorSystemPrompt = "You are a customer service quality evaluator. Respond only with valid JSON."

const rubricTemplate = `You are a customer service quality evaluator. Analyze the following conversation between a customer service agent and a customer (Cora).

CONVERSATION:
%s

Evaluate the agent's performance using these 5 criteria. Score each criterion from 1-5 (1=Poor, 2=Below Average, 3=Average, 4=Good, 5=Excellent):

1. **Professionalism & Courtesy** (1-5): Tone, respect, politeness, professional language
2. **Communication Clarity** (1-5): Clear explanations, easy to understand, avoids jargon
3. **Problem Resolution** (1-5): Addressed customer needs, provided solutions, followed through
4. **Empathy & Active Listening** (1-5): Showed understanding, acknowledged concerns, personalized responses
5. **Efficiency & Responsiveness** (1-5): Timely responses, concise answers, stayed on topic

Provide your response in this EXACT JSON format (do not include markdown code blocks):
{
    "scores": {
        "professionalism": <1-5>,
        "communication": <1-5>,
        "problem_resolution": <1-5>,
        "empathy": <1-5>,
        "efficiency": <1-5>
    },
    "total_score": <sum of all 5 scores>,
    "strengths": ["strength 1", "strength 2", "strength 3"],
    "improvements": ["improvement 1", "improvement 2", "improvement 3"],
    "overall_feedback": "Brief summary of performance (2-3 sentences)"
}`

// 兜底结果中的固定文本。
const (
	FallbackStrength    = "Unable to analyze - error occurred"
	FallbackImprovement = "Please try analyzing again"
	fallbackScore       = 3
)

// ScoringService 定义了对话评估的接口。Evaluate 从不返回错误，失败时返回确定性的兜底结果。
type ScoringService interface {
	Evaluate(ctx context.Context, transcript []model.ChatMessage) model.ScoreCore
}

type scoringService struct {
	llmClient llm.Client
	schema    *llm.JSONSchema
}

// NewScoringService 创建一个新的 ScoringService 实例。
// structuredOutput 为 true 时请求模型按严格 JSON Schema 输出；解析与校验逻辑不变。
func NewScoringService(llmClient llm.Client, structuredOutput bool) ScoringService {
	s := &scoringService{llmClient: llmClient}
	if structuredOutput {
		schema, err := llm.GenerateSchema[model.ScoreCore]()
		if err != nil {
			log.Warnf("[ScoringService] 生成评分 JSON Schema 失败，改用普通文本输出: %v", err)
		} else {
			s.schema = &llm.JSONSchema{
				Name:        "conversation_score",
				Description: "Five-criterion customer service evaluation",
				Schema:      schema,
			}
		}
	}
	return s
}

// Evaluate 按固定评分标准评估一段对话。
func (s *scoringService) Evaluate(ctx context.Context, transcript []model.ChatMessage) model.ScoreCore {
	core, err := s.evaluate(ctx, transcript)
	if err != nil {
		log.Errorf("[ScoringService] 对话评估失败，返回兜底结果: %v", err)
		return FallbackScore(err.Error())
	}
	return core
}

func (s *scoringService) evaluate(ctx context.Context, transcript []model.ChatMessage) (model.ScoreCore, error) {
	if s.llmClient == nil {
		return model.ScoreCore{}, errors.New("no evaluator model configured")
	}
	messages := []llm.Message{
		{Role: model.RoleSystem, Content: evaluatorSystemPrompt},
		{Role: model.RoleUser, Content: fmt.Sprintf(rubricTemplate, RenderTranscript(transcript))},
	}
	var gen *llm.GenerationParams
	if s.schema != nil {
		gen = &llm.GenerationParams{JSONSchema: s.schema}
	}
	completion, err := s.llmClient.Chat(ctx, messages, gen)
	if err != nil {
		return model.ScoreCore{}, err
	}
	return ParseEvaluation(completion.Content)
}

// RenderTranscript 把对话渲染为 "ROLE: content" 行。
func RenderTranscript(transcript []model.ChatMessage) string {
	lines := make([]string, 0, len(transcript))
	for _, m := range transcript {
		role := strings.ToUpper(m.Role)
		if role == "" {
			role = "UNKNOWN"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// FallbackScore 返回评估失败时的确定性结果，reason 写入 overall_feedback 便于排查。
func FallbackScore(reason string) model.ScoreCore {
	scores := model.CriteriaScores{
		Professionalism:   fallbackScore,
		Communication:     fallbackScore,
		ProblemResolution: fallbackScore,
		Empathy:           fallbackScore,
		Efficiency:        fallbackScore,
	}
	return model.ScoreCore{
		Scores:          scores,
		TotalScore:      scores.Sum(),
		Strengths:       []string{FallbackStrength},
		Improvements:    []string{FallbackImprovement},
		OverallFeedback: "Analysis failed: " + reason,
	}
}

type criteriaPayload struct {
	Professionalism   *float64 `json:"professionalism"`
	Communication     *float64 `json:"communication"`
	ProblemResolution *float64 `json:"problem_resolution"`
	Empathy           *float64 `json:"empathy"`
	Efficiency        *float64 `json:"efficiency"`
}

type evaluationPayload struct {
	Scores          *criteriaPayload `json:"scores"`
	TotalScore      *float64         `json:"total_score"`
	Strengths       []string         `json:"strengths"`
	Improvements    []string         `json:"improvements"`
	OverallFeedback string           `json:"overall_feedback"`
}

// ParseEvaluation 解析模型返回的评分文本：去掉代码围栏，解析 JSON，失败时再尝试首个 '{' 到最后一个 '}' 之间的内容，
// 最后校验五项得分并重新计算总分。
func ParseEvaluation(text string) (model.ScoreCore, error) {
	body := stripCodeFence(text)
	if body == "" {
		return model.ScoreCore{}, errors.New("empty evaluation response")
	}
	var payload evaluationPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return model.ScoreCore{}, fmt.Errorf("evaluation is not valid JSON: %w", err)
		}
		payload = evaluationPayload{}
		if err := json.Unmarshal([]byte(body[start:end+1]), &payload); err != nil {
			return model.ScoreCore{}, fmt.Errorf("evaluation is not valid JSON: %w", err)
		}
	}
	return payload.toScoreCore()
}

func (p evaluationPayload) toScoreCore() (model.ScoreCore, error) {
	if p.Scores == nil {
		return model.ScoreCore{}, errors.New("evaluation has no scores object")
	}
	var scores model.CriteriaScores
	fields := []struct {
		name  string
		value *float64
		dst   *int
	}{
		{"professionalism", p.Scores.Professionalism, &scores.Professionalism},
		{"communication", p.Scores.Communication, &scores.Communication},
		{"problem_resolution", p.Scores.ProblemResolution, &scores.ProblemResolution},
		{"empathy", p.Scores.Empathy, &scores.Empathy},
		{"efficiency", p.Scores.Efficiency, &scores.Efficiency},
	}
	for _, f := range fields {
		n, err := criterionValue(f.name, f.value)
		if err != nil {
			return model.ScoreCore{}, err
		}
		*f.dst = n
	}

	total := scores.Sum()
	if p.TotalScore != nil && *p.TotalScore != float64(total) {
		log.Warnf("[ScoringService] 模型给出的总分 %v 与各项之和 %d 不一致，使用各项之和", *p.TotalScore, total)
	}

	core := model.ScoreCore{
		Scores:          scores,
		TotalScore:      total,
		Strengths:       p.Strengths,
		Improvements:    p.Improvements,
		OverallFeedback: p.OverallFeedback,
	}
	if core.Strengths == nil {
		core.Strengths = []string{}
	}
	if core.Improvements == nil {
		core.Improvements = []string{}
	}
	return core, nil
}

func criterionValue(name string, v *float64) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("missing criterion %q", name)
	}
	if *v != math.Trunc(*v) {
		return 0, fmt.Errorf("criterion %q is not a whole number: %v", name, *v)
	}
	if *v < model.MinCriterionScore || *v > model.MaxCriterionScore {
		return 0, fmt.Errorf("criterion %q out of range [%d,%d]: %v", name, model.MinCriterionScore, model.MaxCriterionScore, *v)
	}
	return int(*v), nil
}

// stripCodeFence 去掉 ```lang ... ``` 围栏；不带围栏的文本原样返回（去首尾空白）。
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	} else {
		s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
	}
	if j := strings.LastIndex(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}
