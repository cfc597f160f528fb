// File path: internal/ingest/csv.go
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

// LoadCSV parses a ticket export with a header row. Rows missing every id
// alias get a synthetic CSV-<n> id; rows that fail to parse are skipped and
// counted, matching the tolerant posture of the surrounding pipeline.
// maxRows <= 0 means no cap.
func LoadCSV(r io.Reader, maxRows int) ([]ParsedTicket, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}

	var parsed []ParsedTicket
	errCount := 0
	for i := 0; ; i++ {
		if maxRows > 0 && i >= maxRows {
			break
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			common.Logger().Warn("ingest: csv row skipped", "row", i, "error", err)
			errCount++
			continue
		}
		row := make(map[string]string, len(header))
		for j, field := range header {
			if j < len(record) {
				row[field] = record[j]
			}
		}
		parsed = append(parsed, parseCSVRow(row, i))
	}
	return parsed, errCount, nil
}

func parseCSVRow(row map[string]string, index int) ParsedTicket {
	id := firstNonEmpty(row, "key", "Issue key", "id", "Key")
	id = CleanText(id)
	if id == "" {
		id = fmt.Sprintf("CSV-%d", index)
	}
	id = ticket.NormalizeID(id)

	t := ticket.Ticket{
		ID:        id,
		Project:   CleanText(firstNonEmpty(row, "project", "Project key")),
		Priority:  CleanText(firstNonEmpty(row, "priority", "Priority")),
		Status:    CleanText(firstNonEmpty(row, "status", "Status")),
		IssueType: CleanText(firstNonEmpty(row, "type", "Issue Type")),
		Summary:   CleanText(firstNonEmpty(row, "title", "Summary")),
	}
	attrs := map[string]string{}
	if v := CleanText(firstNonEmpty(row, "created", "Created")); v != "" {
		attrs["created"] = v
	}
	if v := CleanText(firstNonEmpty(row, "updated", "Updated")); v != "" {
		attrs["updated"] = v
	}
	if v := CleanText(firstNonEmpty(row, "reporter_id", "Reporter")); v != "" {
		attrs["reporter"] = v
	}
	if v := CleanText(firstNonEmpty(row, "assignee_id", "Assignee")); v != "" {
		attrs["assignee"] = v
	}
	if len(attrs) > 0 {
		t.Attrs = attrs
	}

	var sections []ticket.Section
	if main, ok := mainSection(id, id+"_text_for_rag", "text_for_rag", row["text_for_rag"]); ok {
		sections = append(sections, main)
	}
	for _, mapping := range csvSectionMappings {
		for _, alias := range mapping.aliases {
			if row[alias] == "" {
				continue
			}
			if section, ok := mappedSection(id, mapping.key, row[alias]); ok {
				sections = append(sections, section)
			}
			break
		}
	}
	return ParsedTicket{Ticket: t, Sections: sections}
}

func firstNonEmpty(row map[string]string, keys ...string) string {
	for _, key := range keys {
		if row[key] != "" {
			return row[key]
		}
	}
	return ""
}
