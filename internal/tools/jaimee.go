package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// registerTherapistTools wires the jaimee persona's self-guided exercises.
// These run entirely in-process; the persona's value is in how the model
// weaves the structured output into conversation.
func (r *Registry) registerTherapistTools() {
	r.register(moodCheckInTool())
	r.register(copingStrategiesTool())
	r.register(breathingExerciseTool())
}

func moodCheckInTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "mood_check_in",
			Desc: "Guide user through a mood assessment and provide insights",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"current_mood": {
					Type:     schema.String,
					Desc:     "User's current mood description",
					Required: true,
				},
				"mood_scale": {
					Type:     schema.Integer,
					Desc:     "Mood rating on 1-10 scale",
					Required: true,
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			mood := args.String("current_mood")
			scale := args.Int("mood_scale", 0)

			var insights []string
			switch {
			case scale <= 3:
				insights = []string{
					"I notice you're having a difficult time. That takes courage to share.",
					"Remember that difficult emotions are temporary and valid.",
				}
			case scale <= 6:
				insights = []string{
					"It sounds like you're experiencing some challenges today.",
					"Let's explore what might help you feel more balanced.",
				}
			default:
				insights = []string{
					"I'm glad to hear you're feeling relatively well today.",
					"What's contributing to this positive mood?",
				}
			}

			return map[string]any{
				"mood":     mood,
				"scale":    scale,
				"insights": insights,
				"suggestions": []string{
					"Consider journaling about this mood",
					"Practice gratitude",
					"Connect with supportive people",
				},
			}, nil
		},
	}
}

func copingStrategiesTool() Tool {
	return Tool{
		Info: &schema.ToolInfo{
			Name: "coping_strategies",
			Desc: "Provide personalized coping strategies based on user's current situation",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"situation": {
					Type:     schema.String,
					Desc:     "Description of the current situation or challenge",
					Required: true,
				},
				"preferred_techniques": {
					Type:     schema.Array,
					Desc:     "User's preferred coping techniques (if any)",
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			return map[string]any{
				"situation_acknowledged": args.String("situation"),
				"strategies": map[string]any{
					"immediate": []string{
						"Take three deep breaths",
						"Ground yourself using the 5-4-3-2-1 technique",
						"Practice progressive muscle relaxation",
					},
					"short_term": []string{
						"Go for a walk or light exercise",
						"Call a trusted friend or family member",
						"Engage in a creative activity",
					},
					"long_term": []string{
						"Establish a regular sleep schedule",
						"Practice mindfulness meditation",
						"Consider journaling regularly",
					},
				},
				"personalized_note": "These strategies are tailored to help you navigate this situation. Try what feels right for you.",
				"reminder":          "Remember, it's okay to ask for professional help if you need additional support.",
			}, nil
		},
	}
}

func breathingExerciseTool() Tool {
	exercises := map[string]map[string]any{
		"box_breathing": {
			"name":        "Box Breathing",
			"pattern":     "Inhale for 4, hold for 4, exhale for 4, hold for 4",
			"description": "Breathe in a square pattern to promote calm and focus",
		},
		"4_7_8": {
			"name":        "4-7-8 Breathing",
			"pattern":     "Inhale for 4, hold for 7, exhale for 8",
			"description": "This technique helps activate your body's relaxation response",
		},
		"belly_breathing": {
			"name":        "Belly Breathing",
			"pattern":     "Slow, deep breaths expanding your belly",
			"description": "Focus on breathing deeply into your diaphragm",
		},
	}

	return Tool{
		Info: &schema.ToolInfo{
			Name: "breathing_exercise",
			Desc: "Guide user through a breathing exercise for relaxation",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"exercise_type": {
					Type: schema.String,
					Desc: "Type of breathing exercise",
					Enum: []string{"box_breathing", "4_7_8", "belly_breathing"},
				},
				"duration_minutes": {
					Type: schema.Integer,
					Desc: "Duration of exercise in minutes (1-15)",
				},
			}),
		},
		Run: func(ctx context.Context, inv *Invocation, args Args) (any, error) {
			exercise, ok := exercises[args.StringDefault("exercise_type", "box_breathing")]
			if !ok {
				exercise = exercises["box_breathing"]
			}
			duration := args.Int("duration_minutes", 5)

			return map[string]any{
				"exercise": exercise,
				"duration": duration,
				"instructions": []string{
					"Find a comfortable position, sitting or lying down",
					"Close your eyes or soften your gaze",
					fmt.Sprintf("Follow this pattern: %s", exercise["pattern"]),
					"Continue for the recommended duration",
					"Notice how you feel afterward",
				},
				"benefits": "This exercise can help reduce stress, anxiety, and promote relaxation",
			}, nil
		},
	}
}
