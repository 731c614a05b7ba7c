package store

import (
	"fmt"
)

// Review is one persisted user review. Sentiment is derived from the rating
// at ingestion: 1-2 negative, 3 neutral, 4-5 positive.
type Review struct {
	ID             int64
	PseudoAuthorID string
	ReviewID       string
	Text           string
	Rating         int
	Sentiment      string
	Year           int
	Month          int
	Day            int
}

// SentimentForRating maps a 1-5 star rating to its sentiment label.
func SentimentForRating(rating int) string {
	switch {
	case rating == 1 || rating == 2:
		return "negative"
	case rating == 3:
		return "neutral"
	case rating == 4 || rating == 5:
		return "positive"
	}
	return "unknown"
}

// InsertReviews writes a batch of reviews in a single transaction.
func (s *Store) InsertReviews(reviews []Review) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO user_review (id, pseudo_author_id, review_id, review_text, review_rating, sentiment, year, month, day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range reviews {
		if _, err := stmt.Exec(r.ID, r.PseudoAuthorID, r.ReviewID, r.Text, r.Rating, r.Sentiment, r.Year, r.Month, r.Day); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting review %d: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// ListReviews returns all reviews in id order. Used by the offline embedding
// build, which walks the whole corpus once.
func (s *Store) ListReviews() ([]Review, error) {
	rows, err := s.db.Query(`
		SELECT id, pseudo_author_id, review_id, review_text, review_rating, sentiment, year, month, day
		FROM user_review ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.PseudoAuthorID, &r.ReviewID, &r.Text, &r.Rating, &r.Sentiment, &r.Year, &r.Month, &r.Day); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CountReviews returns the number of stored reviews.
func (s *Store) CountReviews() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM user_review").Scan(&count)
	return count, err
}
