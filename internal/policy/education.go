package policy

import "github.com/duru-ai/converse/internal/session"

// Education is the tutoring domain. Learner preferences stick across
// topic changes; the topic itself is episodic and is cut when the
// conversation moves on.
type Education struct{}

func NewEducation() *Education { return &Education{} }

func (*Education) Name() string { return "education" }

func (*Education) StickySlots() []string {
	return []string{
		"level",
		"subject",
		"style",
		"language",
		"length",
		"tone",
		"include_examples",
		"request_type",
		"target_improvements",
		"native_language",
		"target_exam",
	}
}

func (*Education) EpisodicSlots() []string { return []string{"topic"} }

func (*Education) Intents() []string {
	return []string{
		"ask_knowledge",
		"evaluate_submission",
		"process_content",
		"create_practice",
		"chitchat",
		"fallback",
	}
}

func (*Education) FallbackIntent() string { return "ask_knowledge" }

var educationRequiredSlots = map[string][]string{
	"ask_knowledge":       {"topic"},
	"evaluate_submission": {"student_answer"},
	"process_content":     {"content"},
	"create_practice":     {"topic"},
}

func (*Education) RequiredSlots(intent string) []string {
	return educationRequiredSlots[intent]
}

func (*Education) UsesPendingClarification() bool { return false }

func (*Education) CheckValidity(string, session.Slots, map[string]string, []string) CheckResult {
	return CheckResult{Outcome: ValidityOK}
}

var educationTaskKinds = map[string]string{
	"ask_knowledge":       "edu_answer",
	"evaluate_submission": "edu_evaluate",
	"process_content":     "edu_process",
	"create_practice":     "edu_practice",
	"chitchat":            "edu_chat",
}

func (*Education) BuildCommand(intent string, slots session.Slots) Command {
	kind := educationTaskKinds[intent]
	if kind == "" {
		kind = "edu_answer"
	}
	params := map[string]any{
		"kind":     kind,
		"topic":    slots.String("topic"),
		"question": slots.String("question"),
		"level":    slots.String("level"),
		"subject":  slots.String("subject"),
		"style":    slots.String("style"),
		"tone":     slots.String("tone"),
		"length":   slots.String("length"),
	}
	switch intent {
	case "evaluate_submission":
		params["student_answer"] = slots.String("student_answer")
		params["evaluation_type"] = slots.String("evaluation_type")
	case "process_content":
		params["content"] = slots.String("content")
		params["process_type"] = slots.String("process_type")
	case "create_practice":
		params["num_questions"] = slots.Value("num_questions")
		params["difficulty"] = slots.String("difficulty")
	}
	return Command{Type: "edu_task", Params: params}
}
