package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// ReadReplyCSV loads canned automated-partner lines from a two column CSV
// file: kind ("reply" or "question") and text. Invalid records are skipped.
func ReadReplyCSV(filePath string) (replies, questions []string, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read reply file %s: %w", filePath, err)
	}
	defer f.Close()

	csvReader := csv.NewReader(f)
	csvReader.FieldsPerRecord = -1
	csvReader.Comment = '#'

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse %s as CSV: %w", filePath, err)
	}

	for _, record := range records {
		if len(record) < 2 || strings.TrimSpace(record[1]) == "" {
			log.Debug().Strs("record", record).Msg("[ReadReplyCSV] skipping invalid record")
			continue
		}
		text := strings.TrimSpace(record[1])
		switch strings.ToLower(strings.TrimSpace(record[0])) {
		case "reply":
			replies = append(replies, text)
		case "question":
			questions = append(questions, text)
		default:
			log.Debug().Str("kind", record[0]).Msg("[ReadReplyCSV] unknown kind")
		}
	}

	if len(replies) == 0 {
		return nil, nil, fmt.Errorf("%s has no reply records", filePath)
	}
	return replies, questions, nil
}
