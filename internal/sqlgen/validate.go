package sqlgen

import (
	"fmt"
	"strings"
)

// filterQueryPrefix is the only SELECT clause the filter prompt permits.
const filterQueryPrefix = "select id from user_review"

// ValidateFilterQuery checks that a query generated on the filter path kept
// its contract: select only the id column from user_review, edit only the
// WHERE clause, add no aggregation, ordering, or limiting. The prompt states
// these rules but nothing forces the model to obey them, so they are enforced
// here before the query reaches execution.
func ValidateFilterQuery(query string) error {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	normalized = strings.TrimSuffix(normalized, ";")

	if !strings.HasPrefix(normalized, filterQueryPrefix) {
		return fmt.Errorf("filter query must start with %q", "SELECT id FROM user_review")
	}

	for _, clause := range []string{"group by", "order by", "limit", "having", "union", "join"} {
		if strings.Contains(normalized, clause) {
			return fmt.Errorf("filter query must not contain %s", strings.ToUpper(clause))
		}
	}

	return nil
}
