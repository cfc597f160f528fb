// File path: internal/ingest/sections.go
package ingest

import (
	"fmt"

	"github.com/graphdesk/graphdesk/internal/ticket"
)

const (
	mainTextMinLen    = 20
	mainTextMaxLen    = 10000
	sectionMinLen     = 10
	sectionMaxLen     = 5000
	maxCommentEntries = 10
)

// ParsedTicket is one loader output: the ticket record plus its extracted
// text sections.
type ParsedTicket struct {
	Ticket   ticket.Ticket
	Sections []ticket.Section
}

// sectionMapping lists field aliases per canonical section key, in priority
// order. The first populated alias wins.
type sectionMapping struct {
	key     string
	aliases []string
}

var csvSectionMappings = []sectionMapping{
	{key: "issue_summary", aliases: []string{"title", "summary", "Summary", "Title", "Subject"}},
	{key: "issue_description", aliases: []string{"description", "Description", "Details"}},
	{key: "steps_to_reproduce", aliases: []string{"steps_to_reproduce", "Steps to Reproduce", "Reproduction Steps"}},
	{key: "root_cause", aliases: []string{"root_cause", "Root Cause", "Cause", "Analysis"}},
	{key: "resolution", aliases: []string{"resolution", "Resolution", "Solution", "Fix"}},
	{key: "priority", aliases: []string{"priority", "Priority", "Severity"}},
	{key: "comments", aliases: []string{"comments", "Comment", "Notes"}},
}

var jsonlSectionMappings = []sectionMapping{
	{key: "issue_summary", aliases: []string{"summary", "title", "subject"}},
	{key: "issue_description", aliases: []string{"description", "details", "body"}},
	{key: "steps_to_reproduce", aliases: []string{"steps_to_reproduce", "reproduction_steps", "how_to_reproduce"}},
	{key: "root_cause", aliases: []string{"root_cause", "cause", "analysis", "diagnosis"}},
	{key: "resolution", aliases: []string{"resolution", "solution", "fix", "workaround"}},
	{key: "priority", aliases: []string{"priority", "severity", "urgency"}},
	{key: "comments", aliases: []string{"comments", "notes", "discussion"}},
}

func mappedSection(ticketID, key, text string) (ticket.Section, bool) {
	cleaned := CleanText(text)
	if len(cleaned) < sectionMinLen {
		return ticket.Section{}, false
	}
	return ticket.Section{
		ID:       fmt.Sprintf("%s_%s", ticketID, key),
		TicketID: ticketID,
		Key:      key,
		Text:     truncate(cleaned, sectionMaxLen),
	}, true
}

func mainSection(ticketID, id, key, text string) (ticket.Section, bool) {
	cleaned := CleanText(text)
	if len(cleaned) < mainTextMinLen {
		return ticket.Section{}, false
	}
	return ticket.Section{
		ID:       id,
		TicketID: ticketID,
		Key:      key,
		Text:     truncate(cleaned, mainTextMaxLen),
	}, true
}
