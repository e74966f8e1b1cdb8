// Package inference implements the single-shot inference orchestrator: one
// task, one input, one request, one result slot.
package inference

// TaskID selects a fixed model and payload shape.
type TaskID string

const (
	TaskSentiment         TaskID = "sentiment-analysis"
	TaskClassification    TaskID = "text-classification"
	TaskSummarization     TaskID = "summarization"
	TaskQuestionAnswering TaskID = "question-answering"
)

// DefaultTask is selected until the user picks another.
const DefaultTask = TaskSentiment

// leadQualityQuestion is asked of every question-answering input.
const leadQualityQuestion = "What is the quality of this lead?"

// Task describes one entry of the catalog.
type Task struct {
	ID          TaskID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Model       string `json:"model"`

	build func(input string) any
}

// Payload builds the request body for input.
func (t Task) Payload(input string) any {
	return t.build(input)
}

type textPayload struct {
	Inputs string `json:"inputs"`
}

type summarizationParams struct {
	MaxLength int `json:"max_length"`
	MinLength int `json:"min_length"`
}

type summarizationPayload struct {
	Inputs     string              `json:"inputs"`
	Parameters summarizationParams `json:"parameters"`
}

type qaInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaPayload struct {
	Inputs qaInputs `json:"inputs"`
}

var catalog = []Task{
	{
		ID:          TaskSentiment,
		Name:        "Sentiment Analysis",
		Description: "Analyze lead communication sentiment",
		Model:       "cardiffnlp/twitter-roberta-base-sentiment-latest",
		build:       func(in string) any { return textPayload{Inputs: in} },
	},
	{
		ID:          TaskClassification,
		Name:        "Text Classification",
		Description: "Classify lead quality and type",
		Model:       "microsoft/DialoGPT-medium",
		build:       func(in string) any { return textPayload{Inputs: in} },
	},
	{
		ID:          TaskSummarization,
		Name:        "Text Summarization",
		Description: "Summarize lead profiles and interactions",
		Model:       "facebook/bart-large-cnn",
		build: func(in string) any {
			return summarizationPayload{
				Inputs:     in,
				Parameters: summarizationParams{MaxLength: 100, MinLength: 30},
			}
		},
	},
	{
		ID:          TaskQuestionAnswering,
		Name:        "Q&A System",
		Description: "Answer questions about leads",
		Model:       "deepset/roberta-base-squad2",
		build: func(in string) any {
			return qaPayload{Inputs: qaInputs{Question: leadQualityQuestion, Context: in}}
		},
	},
}

// Tasks returns the catalog in display order.
func Tasks() []Task {
	out := make([]Task, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a task by id.
func Lookup(id TaskID) (Task, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
