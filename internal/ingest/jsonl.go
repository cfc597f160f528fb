// File path: internal/ingest/jsonl.go
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

// LoadJSONL parses one JSON object per line. Malformed lines are skipped and
// counted. maxRows <= 0 means no cap.
func LoadJSONL(r io.Reader, maxRows int) ([]ParsedTicket, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var parsed []ParsedTicket
	errCount := 0
	for i := 0; scanner.Scan(); i++ {
		if maxRows > 0 && i >= maxRows {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			common.Logger().Warn("ingest: jsonl line skipped", "line", i, "error", err)
			errCount++
			continue
		}
		parsed = append(parsed, parseJSONLRecord(data, i))
	}
	if err := scanner.Err(); err != nil {
		return parsed, errCount, fmt.Errorf("read jsonl: %w", err)
	}
	return parsed, errCount, nil
}

func parseJSONLRecord(data map[string]any, index int) ParsedTicket {
	id := CleanText(stringField(data, "issue_key", "id", "key"))
	if id == "" {
		id = fmt.Sprintf("JSONL-%d", index)
	}
	id = ticket.NormalizeID(id)

	t := ticket.Ticket{
		ID:        id,
		Project:   CleanText(stringField(data, "project")),
		Priority:  CleanText(stringField(data, "priority")),
		Status:    CleanText(stringField(data, "status")),
		IssueType: CleanText(stringField(data, "issue_type", "type")),
		Summary:   truncate(CleanText(stringField(data, "summary")), 500),
	}
	attrs := map[string]string{}
	if v := CleanText(stringField(data, "created", "created_date")); v != "" {
		attrs["created"] = v
	}
	if v := CleanText(stringField(data, "updated", "updated_date")); v != "" {
		attrs["updated"] = v
	}
	if v := CleanText(stringField(data, "reporter")); v != "" {
		attrs["reporter"] = v
	}
	if v := CleanText(stringField(data, "assignee")); v != "" {
		attrs["assignee"] = v
	}
	if len(attrs) > 0 {
		t.Attrs = attrs
	}

	var sections []ticket.Section
	if main, ok := mainSection(id, id+"_main_text", "issue_description", stringField(data, "text")); ok {
		sections = append(sections, main)
	}
	for _, mapping := range jsonlSectionMappings {
		for _, alias := range mapping.aliases {
			value, ok := data[alias]
			if !ok || value == nil {
				continue
			}
			if list, isList := value.([]any); isList && mapping.key == "comments" {
				// Each comment becomes its own section so one long thread
				// does not crowd out the rest of the ticket.
				limit := len(list)
				if limit > maxCommentEntries {
					limit = maxCommentEntries
				}
				for c := 0; c < limit; c++ {
					key := fmt.Sprintf("%s_%d", mapping.key, c)
					if section, ok := mappedSection(id, key, fmt.Sprint(list[c])); ok {
						sections = append(sections, section)
					}
				}
				break
			}
			text := flattenValue(value)
			if CleanText(text) == "" {
				continue
			}
			if mapping.key != "comments" {
				if section, ok := mappedSection(id, mapping.key, text); ok {
					sections = append(sections, section)
				}
			}
			break
		}
	}
	return ParsedTicket{Ticket: t, Sections: sections}
}

func stringField(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key]; ok && v != nil {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func flattenValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		if body, ok := v["body"].(string); ok && body != "" {
			return body
		}
		if text, ok := v["text"].(string); ok && text != "" {
			return text
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}
