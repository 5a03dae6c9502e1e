// Package contextassembler turns a course's top-ranked vector hits into the
// prompt-ready context string plus the citation metadata the streaming
// answerer and the client need.
package contextassembler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const chunkTable = "chunks"

// Default tunables for context assembly.
const (
	DefaultChunksToUse         = 9
	DefaultClosenessThreshold  = 0.35
	DefaultCitationMultiplier  = 0.7
)

// Assembler retrieves, hydrates, and formats context for a course query.
type Assembler struct {
	vector      interfaces.VectorStore
	kv          interfaces.KVStore
	namespace   string
	chunksToUse int
	closeness   float64
	citationMul float64
}

// New builds an Assembler. Zero-valued tunables fall back to the defaults
// (9, 0.35, 0.7).
func New(vector interfaces.VectorStore, kv interfaces.KVStore, namespace string, chunksToUse int, closeness, citationMul float64) *Assembler {
	if chunksToUse <= 0 {
		chunksToUse = DefaultChunksToUse
	}
	if closeness <= 0 {
		closeness = DefaultClosenessThreshold
	}
	if citationMul <= 0 {
		citationMul = DefaultCitationMultiplier
	}
	return &Assembler{vector: vector, kv: kv, namespace: namespace, chunksToUse: chunksToUse, closeness: closeness, citationMul: citationMul}
}

// ContextChunk pairs one hydrated piece of context with the metadata the
// formatter needs: the source blob's date, its root post, and which ranked
// top_chunk produced it.
type ContextChunk struct {
	Date          string
	Text          string
	RootID        string
	TopChunkIndex int
}

// TopChunks vector-searches the course's namespace, keeping only hits at or
// above the closeness threshold, in the store's returned (score-descending)
// order.
func (a *Assembler) TopChunks(ctx context.Context, courseID string, queryEmbedding []float32) ([]interfaces.VectorHit, error) {
	hits, err := a.vector.Search(ctx, a.namespace, a.chunksToUse, courseID, queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("contextassembler: search: %w", err)
	}
	filtered := make([]interfaces.VectorHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= a.closeness {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

// Hydrate runs step 2: dispatch each top chunk to the builder matching its
// blob type and flatten the results into (date, text, root_id, index)
// tuples, in top-chunk order.
func (a *Assembler) Hydrate(ctx context.Context, topChunks []interfaces.VectorHit, prioritizeInstructor bool) ([]ContextChunk, error) {
	var out []ContextChunk
	for idx, hit := range topChunks {
		var texts []string
		var err error
		switch hit.Type {
		case string(types.BlobIAnswer), string(types.BlobSAnswer), "answer":
			texts, err = a.answerContext(ctx, hit.ParentBlobID, hit.ID)
		case string(types.BlobQuestion):
			var text string
			text, err = a.questionContext(ctx, hit.BlobID, prioritizeInstructor)
			if text != "" {
				texts = []string{text}
			}
		case string(types.BlobFollowup), string(types.BlobFeedback), "discussion":
			var text string
			text, err = a.discussionContext(ctx, hit.ParentBlobID, hit.BlobID, hit.ID)
			if text != "" {
				texts = []string{text}
			}
		default:
			texts, err = a.fallbackContext(ctx, hit.ParentBlobID, hit.ID)
		}
		if err != nil {
			return nil, err
		}
		for _, text := range texts {
			out = append(out, ContextChunk{Date: hit.Date, Text: text, RootID: hit.RootID, TopChunkIndex: idx})
		}
	}
	return out, nil
}

// answerContext is the exact-chunk lookup shared by every answer blob type.
func (a *Assembler) answerContext(ctx context.Context, parentID, chunkID string) ([]string, error) {
	var c types.Chunk
	ok, err := a.kv.Get(ctx, chunkTable, parentID, chunkID, &c)
	if err != nil {
		return nil, fmt.Errorf("contextassembler: answer context: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return []string{c.ChunkText}, nil
}

// fallbackContext is identical to answerContext: chunk types this system
// doesn't recognize still resolve to their own text.
func (a *Assembler) fallbackContext(ctx context.Context, parentID, chunkID string) ([]string, error) {
	return a.answerContext(ctx, parentID, chunkID)
}

// questionContext assembles a question's full answer set: every chunk whose
// blob's parent is the question blob.
func (a *Assembler) questionContext(ctx context.Context, blobID string, prioritizeInstructor bool) (string, error) {
	rows, _, err := a.kv.Query(ctx, chunkTable, blobID, nil, interfaces.Page{}, 0)
	if err != nil {
		return "", fmt.Errorf("contextassembler: question context: %w", err)
	}

	var (
		title, questionText                string
		instructorChunks, studentChunks    []string
		instructorName                     string
		studentIsEndorsed                  bool
	)
	titleSet := false
	for _, row := range rows {
		c, err := decodeChunk(row)
		if err != nil {
			continue
		}
		switch c.Type {
		case types.BlobQuestion:
			if !titleSet {
				title = c.Title
				questionText = c.ChunkText
				titleSet = true
			}
		case types.BlobIAnswer:
			instructorChunks = append(instructorChunks, c.ChunkText)
			if instructorName == "" {
				instructorName = defaultStr(c.AuthorName, "<unknown instructor name>")
			}
		case types.BlobSAnswer:
			if !studentIsEndorsed && c.Endorsement == types.EndorsementYes {
				studentIsEndorsed = true
			}
			studentChunks = append(studentChunks, c.ChunkText)
		}
	}
	if title == "" {
		title = "Unknown title"
	}
	return formatQuestionContext(title, instructorChunks, studentChunks, instructorName, studentIsEndorsed, prioritizeInstructor, questionText), nil
}

// formatQuestionContext renders a question's title, body, and instructor/
// student answers into the prompt-facing text block.
func formatQuestionContext(
	title string, instructorChunks, studentChunks []string, instructorName string,
	studentIsEndorsed, prioritizeInstructor bool, questionText string,
) string {
	var parts []string

	var instructorAnswer, studentAnswer string
	hasInstructor := len(instructorChunks) > 0
	hasStudent := len(studentChunks) > 0
	if hasInstructor {
		instructorAnswer = strings.Join(instructorChunks, " ")
	}
	if hasStudent {
		studentAnswer = strings.Join(studentChunks, " ")
	}

	if hasInstructor {
		parts = append(parts,
			fmt.Sprintf("Instructor's (name=%s) answer to question with title: %q:", instructorName, title),
			"", instructorAnswer, "",
		)
	}

	shouldIncludeStudent := hasStudent && (!hasInstructor || !prioritizeInstructor || studentIsEndorsed)
	if shouldIncludeStudent {
		endorsementText := ""
		if studentIsEndorsed {
			endorsementText = "instructor-endorsed "
		}
		parts = append(parts,
			fmt.Sprintf("Peer student's %sanswer to question with title: %q:", endorsementText, title),
			"", studentAnswer, "",
		)
	} else if !hasInstructor {
		parts = append(parts,
			"Someone asked the following question but there are no answers yet:",
			"", questionText, "",
		)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// discussionContext fetches the specific reply chunk, then every chunk whose
// blob is a child of it, joined with a discussion-reply separator.
func (a *Assembler) discussionContext(ctx context.Context, parentID, blobID, chunkID string) (string, error) {
	var chunks []string
	self, err := a.answerContext(ctx, parentID, chunkID)
	if err != nil {
		return "", err
	}
	chunks = append(chunks, self...)

	rows, _, err := a.kv.Query(ctx, chunkTable, blobID, nil, interfaces.Page{}, 0)
	if err != nil {
		return "", fmt.Errorf("contextassembler: discussion context: %w", err)
	}
	for _, row := range rows {
		c, err := decodeChunk(row)
		if err != nil {
			continue
		}
		chunks = append(chunks, c.ChunkText)
	}
	return strings.Join(chunks, "\n\n(--- discussion reply ---)\n\n"), nil
}

func decodeChunk(row map[string]interface{}) (types.Chunk, error) {
	var c types.Chunk
	b, err := json.Marshal(row)
	if err != nil {
		return c, err
	}
	return c, json.Unmarshal(b, &c)
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
