package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent is the retrieval strategy chosen for a question.
type Intent string

const (
	// IntentAggregate: the question needs counting or averaging over the corpus.
	IntentAggregate Intent = "aggregate"
	// IntentFilter: the question narrows by sentiment or date before reading texts.
	IntentFilter Intent = "filter"
	// IntentDirect: plain similarity search, no SQL involved.
	IntentDirect Intent = "direct"
)

const routerPromptTemplate = `User question: "%s"

Classify the question as one of the following:
- "` + "`aggregate`" + `" if it requires counting or averaging numbers, or begins with "how many" or a similar question
- "` + "`filter`" + `" if it needs filtering by sentiment or date
- "` + "`direct`" + `" if it doesn't need filtering or aggregation

Give a brief explanation of max 50 words and give the final answer inside backticks with only: ` +
	"`aggregate`, `filter`, or `direct`" + `
Format
Brief Explanation: ...
Final Answer: ` + "`...`"

// RouterPrompt renders the classification prompt for a question. The model is
// asked to explain briefly and finish with one backticked keyword, which keeps
// parsing independent of whatever reasoning it produces first.
func RouterPrompt(question string) string {
	return fmt.Sprintf(routerPromptTemplate, question)
}

// intentRe matches the last backticked keyword at the very end of a response.
var intentRe = regexp.MustCompile("`(aggregate|filter|direct)`\\s*$")

// ParseIntent reads the classification out of a model response. Anything that
// does not end with a recognized backticked keyword falls back to direct,
// which degrades to plain similarity search rather than failing the question.
func ParseIntent(response string) Intent {
	m := intentRe.FindStringSubmatch(strings.ToLower(response))
	if m == nil {
		return IntentDirect
	}
	return Intent(m[1])
}
