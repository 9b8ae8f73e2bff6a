package pipeline

// Step is a state of the run state machine. A run moves forward through
// the steps in declaration order and ends in Complete or Error.
type Step int

// Run steps.
const (
	StepToolCheck Step = iota
	StepInput
	StepProbe
	StepInfo
	StepSelect
	StepTranscode
	StepPackage
	StepComplete
	StepError
)

var stepNames = [...]string{
	StepToolCheck: "tool_check",
	StepInput:     "input",
	StepProbe:     "probe",
	StepInfo:      "info",
	StepSelect:    "select",
	StepTranscode: "transcode",
	StepPackage:   "package",
	StepComplete:  "complete",
	StepError:     "error",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// Terminal reports whether the run has ended.
func (s Step) Terminal() bool {
	return s == StepComplete || s == StepError
}
