package query

// Question is the structured form of one free-text question.
type Question struct {
	Text     string
	Date     DateQuery
	DateRule string
	Metals   Selection
	Intent   Intent
}

// Analyze runs the date parser and the detectors over text.
func Analyze(text string, parser *Parser, detector *Detector) Question {
	date, rule := parser.ParseRule(text)
	return Question{
		Text:     text,
		Date:     date,
		DateRule: rule,
		Metals:   detector.DetectMetals(text),
		Intent:   DetectIntent(text),
	}
}
