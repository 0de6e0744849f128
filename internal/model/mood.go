package model

import (
	"fmt"
	"strings"
)

// Mood 是模拟客户的情绪标签，取值封闭。
type Mood string

const (
	MoodNeutral    Mood = "neutral"
	MoodHappy      Mood = "happy"
	MoodCurious    Mood = "curious"
	MoodFrustrated Mood = "frustrated"
	MoodConfused   Mood = "confused"
	MoodImpatient  Mood = "impatient"
)

// AllMoods 按界面展示顺序列出所有情绪。
var AllMoods = []Mood{MoodNeutral, MoodHappy, MoodCurious, MoodFrustrated, MoodConfused, MoodImpatient}

var moodDirectives = map[Mood]string{
	MoodHappy:      "You are speaking as a happy and satisfied customer. You're pleased with the service, speak positively, and express gratitude. You're cooperative and friendly.",
	MoodCurious:    "You are speaking as a curious and inquisitive customer. You ask many questions, want to understand details, and show genuine interest in learning more. You're engaged and thoughtful.",
	MoodFrustrated: "You are speaking as a frustrated and upset customer. You've had a bad experience, express disappointment or anger, and may be impatient. However, you're still looking for resolution.",
	MoodConfused:   "You are speaking as a confused and unsure customer. You don't fully understand the situation, need clear explanations, and may ask for clarification multiple times. You appreciate patience.",
	MoodImpatient:  "You are speaking as an impatient customer with an urgent need. You want quick answers, express time pressure, and may seem rushed. You need efficient and direct responses.",
	MoodNeutral:    "You are speaking as a neutral customer with a standard inquiry. You're polite and professional, seeking assistance without strong emotional overtones.",
}

func init() {
	if err := checkMoodDirectives(); err != nil {
		panic(err)
	}
}

// checkMoodDirectives 保证每个情绪都有且只有一条非空的行为指令。
func checkMoodDirectives() error {
	if len(moodDirectives) != len(AllMoods) {
		return fmt.Errorf("mood directives: have %d entries for %d moods", len(moodDirectives), len(AllMoods))
	}
	for _, m := range AllMoods {
		if strings.TrimSpace(moodDirectives[m]) == "" {
			return fmt.Errorf("mood directives: missing directive for %q", m)
		}
	}
	return nil
}

// ParseMood 将任意字符串映射为 Mood，无法识别的值（包括空串）回退为 neutral。
func ParseMood(s string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := moodDirectives[m]; ok {
		return m
	}
	return MoodNeutral
}

// Directive 返回该情绪对应的行为指令。
func (m Mood) Directive() string {
	if d, ok := moodDirectives[m]; ok {
		return d
	}
	return moodDirectives[MoodNeutral]
}
