// Package types holds the domain entities shared across every component, and
// the small set of cross-component value objects (stream frames, embedding
// vectors) that cross package boundaries.
package types

import "time"

// EpochSentinel is the "never summarized" / "never updated" value used
// throughout the post and summarizer components so a zero-value timestamp
// compares correctly against real UTC timestamps.
var EpochSentinel = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// BlobType is the type of a logical unit inside a forum post.
type BlobType string

const (
	BlobQuestion   BlobType = "question"
	BlobIAnswer    BlobType = "i_answer"
	BlobSAnswer    BlobType = "s_answer"
	BlobFollowup   BlobType = "followup"
	BlobFeedback   BlobType = "feedback"
)

// Endorsement is the endorsement state of a blob. Only BlobSAnswer may be
// "yes" or "no"; every other blob type is "n/a".
type Endorsement string

const (
	EndorsementYes   Endorsement = "yes"
	EndorsementNo    Endorsement = "no"
	EndorsementNA    Endorsement = "n/a"
)

// Course is an immutable course identifier plus display metadata.
type Course struct {
	ID          string
	DisplayName string
	Active      bool
	Ignored     bool
}

// Post is identified by (CourseID, PostID).
type Post struct {
	CourseID          string
	PostID            string
	PostNumber        int
	Title             string
	Created           time.Time
	IsAnnouncement    bool
	CurrentSummary    string
	SummaryLastUpdated time.Time
	LastUpdated       time.Time
	LastMajorUpdate   time.Time
	NumChanges        int
	NeedsNewSummary   bool
}

// Blob is a logical unit inside a post: question, instructor answer, student
// answer, followup, or feedback.
type Blob struct {
	ID           string
	ParentID     string
	RootID       string
	RootPostNum  int
	Type         BlobType
	Title        string
	Content      string
	Date         time.Time
	AuthorID     string
	AuthorName   string
	Endorsement  Endorsement
}

// Chunk is a bounded-size text unit derived from a Blob; the unit of dedup
// and the unit indexed in the vector store.
type Chunk struct {
	CourseID     string
	BlobID       string
	ParentBlobID string // the owning Blob's ParentID, not the chunk's own blob id
	ChunkIndex   int
	RootID       string
	RootPostNum  int
	Type         BlobType
	Title        string
	Date         time.Time
	ContentHash  string
	ChunkText    string
	AuthorID     string
	AuthorName   string
	Endorsement  Endorsement
}

// ParentID is the chunk's KV partition key: the parent blob's id, so the
// context assembler can query "every chunk whose blob hangs off this parent"
// (an entire question's answer set, or a discussion thread's replies).
func (c Chunk) ParentID() string { return c.ParentBlobID }

// ID is the chunk's KV sort key, "<blob_id>#<index>".
func (c Chunk) ID() string { return chunkID(c.BlobID, c.ChunkIndex) }

func chunkID(blobID string, index int) string {
	return blobID + "#" + itoa(index)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// DiffType enumerates the kinds of change a Diff record may describe.
type DiffType string

const (
	DiffNewQuestion            DiffType = "NEW_QUESTION"
	DiffQuestionUpdate         DiffType = "QUESTION_UPDATE"
	DiffInstructorAnswer       DiffType = "INSTRUCTOR_ANSWER"
	DiffInstructorAnswerUpdate DiffType = "INSTRUCTOR_ANSWER_UPDATE"
	DiffStudentAnswer          DiffType = "STUDENT_ANSWER"
	DiffStudentAnswerUpdate    DiffType = "STUDENT_ANSWER_UPDATE"
	DiffFollowup               DiffType = "FOLLOWUP"
	DiffFeedback               DiffType = "FEEDBACK"
)

// IsMajor reports whether d moves a Post's LastMajorUpdate: a change is
// major iff it is a new question, a new instructor answer, or a new student
// answer.
func (d DiffType) IsMajor() bool {
	switch d {
	case DiffNewQuestion, DiffInstructorAnswer, DiffStudentAnswer:
		return true
	default:
		return false
	}
}

// Diff is an append-only record of one observed change to a post.
type Diff struct {
	CourseID  string
	PostID    string
	Timestamp time.Time
	Seq       int
	Type      DiffType
	Subject   string
	Content   string
}

// SortKey is the Diff table's sort key: "{timestamp RFC3339Nano, UTC}#{seq}".
func (d Diff) SortKey() string {
	return d.Timestamp.UTC().Format(time.RFC3339Nano) + "#" + itoa(d.Seq)
}

// StandingQuery is a user-registered natural-language query that produces
// emails when new matching chunks arrive.
type StandingQuery struct {
	UserID                string
	CourseID              string
	Query                 string
	CourseDisplayName     string
	ClosestScore          float64
	NotificationThreshold float64
	MaxNotifications      int // monotone counter: search width AND lifetime sent count
}

// SortKey is the StandingQuery table's sort key: "{course_id}#{query}".
func (sq StandingQuery) SortKey() string { return sq.CourseID + "#" + sq.Query }

// NotificationKey is the opaque (u, c, q) identity SentNotification rows are
// partitioned under: "{user_id}#{course_id}#{query}".
func (sq StandingQuery) NotificationKey() string {
	return sq.UserID + "#" + sq.CourseID + "#" + sq.Query
}

// SentNotification records that a chunk has already produced an email for a
// given standing query; its mere existence is the at-most-once dedup set.
type SentNotification struct {
	UserID   string
	CourseID string
	Query    string
	ChunkID  string
}

// NotificationKey mirrors StandingQuery.NotificationKey so a SentNotification
// row can be addressed without rebuilding the string by hand.
func (n SentNotification) NotificationKey() string {
	return n.UserID + "#" + n.CourseID + "#" + n.Query
}

// User is looked up only to resolve a notification destination address.
type User struct {
	UserID      string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Tab and Message round out the persisted KV schema; their CRUD handlers
// are out of scope here, but the storage layer below is real and exercised
// by the KV store's tests.
type Tab struct {
	UserID    string
	TabID     string
	Title     string
	CreatedAt time.Time
}

type Message struct {
	UserID    string
	TabID     string
	MessageID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// StudentQuery is the best-effort audit row persisted after every chat
// handler invocation.
type StudentQuery struct {
	CourseID          string
	QueryID           string
	UserID            string
	RawQuery          string
	NormalizedQuery   string
	Embedding         []float64
	EmbeddingModel    string
	Intent            Intent
	ChatModel         string
	ConnectionID      string
	CreatedAt         time.Time
	ProcessingTimeMS  int64

	// General-intent fields.
	PrioritizeInstructor bool
	NeedsMoreContext     bool
	NumChunksRetrieved   int
	TopScore             float64
	AvgScore             float64
	AllScores            []float64
	CitationCount        int
	CitedPostNumbers     []int

	// Summarize-intent fields.
	NumSummariesProcessed int
	SummaryDays           int
}

// Intent is the classification produced by the intent router (C7).
type Intent string

const (
	IntentGeneral   Intent = "general"
	IntentSummarize Intent = "summarize"
	IntentOverview  Intent = "overview"
	IntentUnknown   Intent = "unknown"
)

// ModelSource distinguishes a locally-hosted model (Ollama) from a remote
// provider-hosted one.
type ModelSource string

const (
	ModelSourceLocal  ModelSource = "local"
	ModelSourceRemote ModelSource = "remote"
)
