package entity

import "time"

// Outcome: результат одной задачи пакета. Ровно одно из Result/Err значимо:
// при Err != nil карточка считается необновлённой.
type Outcome struct {
	Index    int             `json:"index"`
	Card     CardQuery       `json:"card"`
	Result   FairValueResult `json:"result"`
	Err      error           `json:"-"`
	TraceID  string          `json:"trace_id"`
	Attempts int             `json:"attempts"`
	Duration time.Duration   `json:"duration"`
}

func (o Outcome) OK() bool {
	return o.Err == nil
}
