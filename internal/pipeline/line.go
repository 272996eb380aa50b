package pipeline

import "time"

// LogLine is one ingested line. Sequence is zero until the pipeline assigns it.
type LogLine struct {
	Text        string
	Sequence    uint64
	ArrivalTime time.Time
	// Number is the source's own position for the line, e.g. a file line
	// number or a Kafka offset plus one.
	Number uint64
	Source string
}

func NewLogLine(text, source string, number uint64) LogLine {
	return LogLine{
		Text:        text,
		ArrivalTime: time.Now(),
		Number:      number,
		Source:      source,
	}
}
