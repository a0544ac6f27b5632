package model

// Progress is a point-in-time view of a running batch.
type Progress struct {
	CurrentFileName string `json:"currentFileName,omitempty"`
	Current         int    `json:"current"`
	Total           int    `json:"total"`
}

// Done reports whether every document of the batch has completed.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Current >= p.Total
}

// DocumentOutcome is the result of one document in a batch. Skipped documents
// were left pending because the batch was canceled.
type DocumentOutcome struct {
	Err       error
	InvoiceID string
	FileName  string
	Success   bool
	Skipped   bool
}
