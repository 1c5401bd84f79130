// Package emotion maps upstream semantic signals to avatar poses. The
// mapping is table-driven and total: any input, including garbage, resolves
// to a pose, so callers never need an error path.
package emotion

import (
	"strings"

	"github.com/charmbracelet/log"
)

// Pose is an avatar expression/motion selection with intensity.
type Pose struct {
	Primary    string             // canonical emotion name
	Intensity  float64            // in [0,1]
	Expression string             // expression name from the model vocabulary
	Motion     string             // motion name from the model vocabulary
	Overrides  map[string]float64 // optional animation parameter overrides
}

// Vocabulary is the set of valid expression and motion names, supplied by the
// model descriptor loader. The bridge table must stay consistent with it.
type Vocabulary struct {
	Expressions []string
	Motions     []string
}

// Neutral is the documented default pose. Absent or unrecognized input
// always degrades to it.
var Neutral = Pose{
	Primary:    "neutral",
	Intensity:  0.3,
	Expression: "exp_normal",
	Motion:     "idle",
}

// baseTable maps canonical emotions to poses. Aliases (including the Korean
// hint vocabulary the chat service emits) are resolved first.
var baseTable = map[string]Pose{
	"neutral": Neutral,
	"joy": {
		Primary: "joy", Intensity: 0.8,
		Expression: "exp_smile", Motion: "bounce",
		Overrides: map[string]float64{"cheek_raise": 0.6},
	},
	"sadness": {
		Primary: "sadness", Intensity: 0.7,
		Expression: "exp_sad", Motion: "droop",
		Overrides: map[string]float64{"brow_lower": 0.5},
	},
	"anger": {
		Primary: "anger", Intensity: 0.9,
		Expression: "exp_angry", Motion: "shake",
		Overrides: map[string]float64{"brow_lower": 0.8},
	},
	"surprise": {
		Primary: "surprise", Intensity: 0.9,
		Expression: "exp_surprised", Motion: "jump",
		Overrides: map[string]float64{"eye_wide": 0.9},
	},
	"fear": {
		Primary: "fear", Intensity: 0.7,
		Expression: "exp_worried", Motion: "shiver",
	},
	"mystical": {
		Primary: "mystical", Intensity: 0.6,
		Expression: "exp_mystic", Motion: "sway",
		Overrides: map[string]float64{"eye_half": 0.4},
	},
	"thinking": {
		Primary: "thinking", Intensity: 0.5,
		Expression: "exp_thinking", Motion: "tilt",
	},
}

// aliases maps hint spellings to canonical emotion names.
var aliases = map[string]string{
	"happy":     "joy",
	"happiness": "joy",
	"excited":   "joy",
	"기쁨":        "joy",
	"sad":       "sadness",
	"슬픔":        "sadness",
	"angry":     "anger",
	"화남":        "anger",
	"분노":        "anger",
	"surprised": "surprise",
	"놀람":        "surprise",
	"scared":    "fear",
	"worried":   "fear",
	"두려움":       "fear",
	"mystery":   "mystical",
	"신비":        "mystical",
	"curious":   "thinking",
	"생각":        "thinking",
	"calm":      "neutral",
	"중립":        "neutral",
}

// Bridge resolves emotion hints against a vocabulary-checked table.
type Bridge struct {
	table  map[string]Pose
	logger *log.Logger
}

// NewBridge builds a bridge whose table is reconciled with the model
// vocabulary: entries referring to expression or motion names the model does
// not declare fall back to the neutral pose's names at construction time. A
// nil vocabulary accepts the table as-is.
func NewBridge(vocab *Vocabulary, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("emotion")

	table := make(map[string]Pose, len(baseTable))
	for name, pose := range baseTable {
		if vocab != nil {
			if !contains(vocab.Expressions, pose.Expression) {
				logger.Warn("expression not in model vocabulary, using neutral",
					"emotion", name, "expression", pose.Expression)
				pose.Expression = Neutral.Expression
			}
			if !contains(vocab.Motions, pose.Motion) {
				logger.Warn("motion not in model vocabulary, using neutral",
					"emotion", name, "motion", pose.Motion)
				pose.Motion = Neutral.Motion
			}
		}
		table[name] = pose
	}

	return &Bridge{table: table, logger: logger}
}

// Map resolves a semantic signal to a pose. It is total: empty or unknown
// hints return the neutral default and the function never fails.
func (b *Bridge) Map(hint string) Pose {
	key := strings.ToLower(strings.TrimSpace(hint))
	if key == "" {
		return b.table["neutral"]
	}
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	if pose, ok := b.table[key]; ok {
		return pose
	}
	b.logger.Debug("unrecognized emotion hint, using neutral", "hint", hint)
	return b.table["neutral"]
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
