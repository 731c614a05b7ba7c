package sqlgen

import "fmt"

// QueryKind selects which prompt variant the agent renders. Aggregate asks
// for a free-form counting/averaging query; Filter asks for an ID-selecting
// query whose WHERE clause encodes the question, feeding the hybrid path.
type QueryKind string

const (
	KindAggregate QueryKind = "aggregate"
	KindFilter    QueryKind = "filter"
)

// schemaDescription is the fixed table description embedded in every
// generation prompt. It names only the canonical ingested columns; the model
// is told not to reach outside them.
const schemaDescription = `Table: 'user_review'
Columns: id, pseudo_author_id, review_id, review_text, review_rating, sentiment, year, month, day
Example values: 1, 152618553977019693742, 14a011a8-7544-47b4-8480-c502af0ac26f, "Use it every day", 5, positive, 2014, 5, 27`

// AggregatePrompt renders the prompt asking for one best SQLite query
// answering the question.
func AggregatePrompt(question string) string {
	return fmt.Sprintf(`Question: %s

%s

Instructions: Build a query based on user question. Identify the relevant and only essential columns to retrieve and apply only essential filters. Then, provide directly the one best SQLite query in backticks (strictly inside backticks) to answer the question. Use a simple query, avoiding any complex structures, and don't use any table or columns outside those mentioned above. Don't add limit if it is not mentioned in the question.`,
		question, schemaDescription)
}

// FilterPrompt renders the prompt constraining the model to edit only the
// WHERE clause of an ID-selecting query. The constraint is prompt-level; the
// returned text is validated by ValidateFilterQuery before execution.
func FilterPrompt(question string) string {
	return fmt.Sprintf(`Question: %s

%s

Instructions:
- Your task is ONLY to edit the WHERE clause to match the question's intent.
- Do NOT change 'SELECT id FROM user_review'. Only add conditions in the WHERE clause to filter results appropriately.
- Do NOT add new columns, GROUP BY, ORDER BY, or LIMIT statements.
- Do NOT reference tables or columns outside those listed above.

Now, follow this (strict format) because I will aggregate or do further step later:
`+"```"+`
SELECT id FROM user_review
WHERE [Your conditions here based on question]
`+"```"+`
Put the query also inside backticks (strictly inside backticks)`,
		question, schemaDescription)
}

// RelaxPrompt renders the prompt asking for a less restrictive version of a
// query that matched nothing.
func RelaxPrompt(question, previousQuery string) string {
	return fmt.Sprintf(`Question: %s
Previous query: %s

Instructions: It produced an empty result. Edit your query to make the filter more relaxed or remove unnecessary filters, but still fulfill my question. Don't add limit if it is not mentioned in the question.`,
		question, previousQuery)
}

// RepairPrompt renders the prompt asking the model to fix a query the engine
// rejected, quoting the engine's diagnostic verbatim.
func RepairPrompt(question, query, errMsg string) string {
	return fmt.Sprintf(`I have a question: %s
And you provided this query based on the question: %s
However, I encountered this error: %s

Please fix the query to address the error and provide the correct version. Don't add limit if it is not mentioned in the question.`,
		question, query, errMsg)
}
