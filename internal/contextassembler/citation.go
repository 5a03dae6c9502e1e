package contextassembler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const welcomePostTitle = "Welcome to Piazza!"

// Citation is shared with the streaming answerer, which forwards these over
// the websocket transport as part of an AnswerEvent.
type Citation = types.Citation

func postURL(courseID, rootID string) string {
	return fmt.Sprintf("https://piazza.com/class/%s/post/%s", courseID, rootID)
}

// CitationMap builds citation_map (post_number string -> Citation) and
// post_to_post_number (root_id -> post_number string) from the raw top
// chunks. Only the first top_chunk seen for each root_id contributes; posts
// lacking a post number, or titled the stock welcome post, are skipped
// entirely.
func CitationMap(topChunks []interfaces.VectorHit, courseID string) (map[string]Citation, map[string]string) {
	citationMap := map[string]Citation{}
	postToPostNumber := map[string]string{}
	seenRoots := map[string]bool{}

	for _, hit := range topChunks {
		if hit.RootID == "" || seenRoots[hit.RootID] {
			continue
		}
		seenRoots[hit.RootID] = true

		if hit.RootPostNum <= 0 || hit.Title == welcomePostTitle {
			continue
		}
		postNumber := strconv.Itoa(hit.RootPostNum)

		citationMap[postNumber] = Citation{
			Title: hit.Title, URL: postURL(courseID, hit.RootID),
			PostNumber: hit.RootPostNum, HasPostNumber: true,
		}
		postToPostNumber[hit.RootID] = postNumber
	}
	return citationMap, postToPostNumber
}

// CitationsList builds the client-facing, deduplicated citations list:
// ordered by first appearance, gated at score >= citationMultiplier *
// top_score, deduped by (url, title), with a later post_number upgrading an
// earlier citation that lacked one.
func (a *Assembler) CitationsList(topChunks []interfaces.VectorHit, courseID string) []Citation {
	if len(topChunks) == 0 {
		return nil
	}
	topScore := topChunks[0].Score

	var citations []Citation
	index := map[[2]string]int{}

	for _, hit := range topChunks {
		if hit.Title == welcomePostTitle {
			continue
		}
		if hit.Score < a.citationMul*topScore {
			continue
		}
		url := postURL(courseID, hit.RootID)
		key := [2]string{url, hit.Title}

		if i, ok := index[key]; ok {
			if hit.RootPostNum > 0 && !citations[i].HasPostNumber {
				citations[i].PostNumber = hit.RootPostNum
				citations[i].HasPostNumber = true
			}
			continue
		}

		c := Citation{Title: hit.Title, URL: url}
		if hit.RootPostNum > 0 {
			c.PostNumber = hit.RootPostNum
			c.HasPostNumber = true
		}
		citations = append(citations, c)
		index[key] = len(citations) - 1
	}
	return citations
}

// FormatContext renders the assembled chunks and citation map into the
// prompt's wire format.
func FormatContext(chunks []ContextChunk, citationMap map[string]Citation, postToPostNumber map[string]string) string {
	var lines []string
	lines = append(lines, "===== CONTEXT START =====")

	if len(citationMap) > 0 {
		nums := make([]string, 0, len(citationMap))
		for n := range citationMap {
			nums = append(nums, n)
		}
		sort.Slice(nums, func(i, j int) bool {
			a, _ := strconv.Atoi(nums[i])
			b, _ := strconv.Atoi(nums[j])
			return a < b
		})
		tagged := make([]string, 0, len(nums))
		for _, n := range nums {
			tagged = append(tagged, "@"+n)
		}
		lines = append(lines, "Available citations: "+strings.Join(tagged, ", "), "")
	}

	for i, c := range chunks {
		citationInfo := ""
		if postNumber, ok := postToPostNumber[c.RootID]; ok {
			if citation, ok := citationMap[postNumber]; ok {
				title := citation.Title
				if title == "" {
					title = "Piazza Post"
				}
				citationInfo = fmt.Sprintf(" [From Post @%s: %q]", postNumber, title)
			}
		}
		lines = append(lines,
			fmt.Sprintf("[Relevance Rank: %d/%d] [Updated date: %s]%s", i+1, len(chunks), c.Date, citationInfo),
			fmt.Sprintf("---\n%s\n---", c.Text),
		)
	}

	if len(chunks) == 0 {
		lines = append(lines, "There is no relevant context on Piazza which helps answer this question.")
	}

	lines = append(lines, "===== CONTEXT END =====")
	return strings.Join(lines, "\n")
}
