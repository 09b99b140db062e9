package domain

// MinSearchTermLength is the shortest trimmed term, in runes, that is searched.
const MinSearchTermLength = 2

// TokenSearch describes an exact-match lookup over search token columns.
// A nil Assignee searches every record.
type TokenSearch struct {
	Field    SearchField
	Token    string
	Assignee *string
	Limit    int
	Offset   int
}

// RecordPage is one page of records with the total match count.
type RecordPage struct {
	Records []Record
	Total   int
	HasMore bool
}
