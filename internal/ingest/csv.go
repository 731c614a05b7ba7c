package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/reviewqa/internal/store"
)

// minTokens is the minimum whitespace-token count a review must keep after
// cleaning. Shorter reviews carry too little signal to embed or quote.
const minTokens = 10

// specialCharRe matches everything except letters, digits, underscores,
// whitespace, and commas. Emoji and punctuation-heavy noise fall out here.
var specialCharRe = regexp.MustCompile(`[^\p{L}\p{N}_\s,]`)

// CleanText strips emoji and special characters from a review text.
func CleanText(text string) string {
	return specialCharRe.ReplaceAllString(text, "")
}

// timestampLayouts are tried in order when parsing review timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ParseReviews reads the review CSV from r and returns the cleaned corpus:
// rows with empty texts, fewer than 10 tokens after cleaning, or unparsable
// ratings/timestamps are dropped. The first column without a header (or one
// named "id") supplies the review id; otherwise ids are sequential.
func ParseReviews(r io.Reader) ([]store.Review, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	textIdx, ok := col["review_text"]
	if !ok {
		return nil, fmt.Errorf("CSV has no review_text column")
	}
	ratingIdx, ok := col["review_rating"]
	if !ok {
		return nil, fmt.Errorf("CSV has no review_rating column")
	}
	tsIdx, hasTS := col["review_timestamp"]
	idIdx, hasID := col["id"]
	if !hasID {
		idIdx, hasID = col[""]
	}

	field := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	colIdx := func(name string) int {
		if i, ok := col[name]; ok {
			return i
		}
		return -1
	}

	var reviews []store.Review
	nextID := int64(0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		text := CleanText(field(record, textIdx))
		if len(strings.Fields(text)) < minTokens {
			continue
		}

		rating, err := strconv.Atoi(field(record, ratingIdx))
		if err != nil {
			continue
		}

		var year, month, day int
		if hasTS {
			t, err := parseTimestamp(field(record, tsIdx))
			if err != nil {
				continue
			}
			year, month, day = t.Year(), int(t.Month()), t.Day()
		}

		id := nextID
		if hasID {
			parsed, err := strconv.ParseInt(field(record, idIdx), 10, 64)
			if err != nil {
				continue
			}
			id = parsed
		}
		nextID++

		reviews = append(reviews, store.Review{
			ID:             id,
			PseudoAuthorID: field(record, colIdx("pseudo_author_id")),
			ReviewID:       field(record, colIdx("review_id")),
			Text:           text,
			Rating:         rating,
			Sentiment:      store.SentimentForRating(rating),
			Year:           year,
			Month:          month,
			Day:            day,
		})
	}
	return reviews, nil
}

// LoadCSV parses the review CSV at path and inserts the cleaned corpus into
// the store, returning the number of reviews kept.
func LoadCSV(path string, st *store.Store) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()

	reviews, err := ParseReviews(f)
	if err != nil {
		return 0, err
	}
	if err := st.InsertReviews(reviews); err != nil {
		return 0, fmt.Errorf("inserting reviews: %w", err)
	}
	return len(reviews), nil
}
