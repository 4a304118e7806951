// Package analysis turns extracted text into an LLM analysis. It validates
// the request, assembles the prompt and runs the provider's call plan.
package analysis

// Task is the user-facing analysis choice
type Task string

const (
	TaskSummarize Task = "Summarize in 3 key points"
	TaskEntities  Task = "Identify main entities"
	TaskTranslate Task = "Translate to English"

	// DefaultTask is preselected in the form
	DefaultTask = TaskSummarize
)

// Tasks lists the predefined tasks in display order
var Tasks = []Task{TaskSummarize, TaskEntities, TaskTranslate}

const genericInstruction = "Analyze the following text:"

var instructions = map[Task]string{
	TaskSummarize: "Summarize the following text in 3 clear and concise key points:",
	TaskEntities:  "Identify the main entities (people, places, organizations, dates):",
	TaskTranslate: "Translate the following text into English naturally and accurately:",
}

// Instruction returns the instruction sentence for the task. Unknown tasks
// get a generic analysis instruction.
func (t Task) Instruction() string {
	if s, ok := instructions[t]; ok {
		return s
	}
	return genericInstruction
}

// Known reports whether the task is one of the predefined ones
func (t Task) Known() bool {
	_, ok := instructions[t]
	return ok
}
