package model

import (
	"time"
)

// JSONSubmissionHeaderV1 contains the summary data of a stored submission
type JSONSubmissionHeaderV1 struct {
	ID      string    `json:"id"`
	Form    string    `json:"form"`
	Created time.Time `json:"created"`
	Fields  int       `json:"fields"`
}

// JSONSubmissionV1 contains the header data plus the submitted fields in form order
type JSONSubmissionV1 struct {
	ID      string         `json:"id"`
	Form    string         `json:"form"`
	Created time.Time      `json:"created"`
	Fields  []*JSONFieldV1 `json:"fields"`
}

// JSONFieldV1 is one submitted value
type JSONFieldV1 struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
