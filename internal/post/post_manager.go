// Package post implements C4: maintaining the Post record and its diff log,
// and fanning out new-announcement emails.
package post

import (
	"context"
	"fmt"
	"time"

	"github.com/dfroberg/coursepilot/internal/common"
	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const (
	postsTable = "posts"
	diffsTable = "diffs"
)

// raw change_log type strings as returned by the forum, grouped into the
// QUESTION/I_ANSWER/S_ANSWER/DISCUSSION buckets.
var (
	questionTypes    = map[string]types.DiffType{"create": types.DiffNewQuestion, "update": types.DiffQuestionUpdate}
	iAnswerTypes     = map[string]types.DiffType{"i_answer": types.DiffInstructorAnswer, "i_answer_update": types.DiffInstructorAnswerUpdate}
	sAnswerTypes     = map[string]types.DiffType{"s_answer": types.DiffStudentAnswer, "s_answer_update": types.DiffStudentAnswerUpdate}
	discussionTypes  = map[string]types.DiffType{"followup": types.DiffFollowup, "feedback": types.DiffFeedback}
)

// Manager maintains post state and diff logs.
type Manager struct {
	kv             interfaces.KVStore
	email          interfaces.EmailSender
	recipientEmail string
	announceWindow time.Duration
	courseNames    map[string]string
	now            func() time.Time
}

// New builds a Manager. announceWindow is the "creation time within N of
// now" gate for new-announcement fan-out (48h). courseNames
// maps course id to display name for the announcement email; an unknown id
// falls back to the id itself.
func New(
	kv interfaces.KVStore, email interfaces.EmailSender, recipientEmail string,
	announceWindow time.Duration, courseNames map[string]string,
) *Manager {
	return &Manager{
		kv: kv, email: email, recipientEmail: recipientEmail,
		announceWindow: announceWindow, courseNames: courseNames, now: time.Now,
	}
}

func (m *Manager) courseName(courseID string) string {
	if name, ok := m.courseNames[courseID]; ok {
		return name
	}
	return courseID
}

// ProcessPost diffs node against the previously-persisted Post record,
// appends at most one diff per bucket from the new change_log tail (plus
// one-per for discussion changes), updates the Post record, and fans out an
// announcement email for qualifying new posts.
func (m *Manager) ProcessPost(ctx context.Context, courseID string, node *interfaces.PostNode) error {
	existing, found, err := m.loadPost(ctx, courseID, node.ID)
	if err != nil {
		return fmt.Errorf("post: load %s#%s: %w", courseID, node.ID, err)
	}

	oldNumChanges := 0
	if found {
		oldNumChanges = existing.NumChanges
	}
	tail := tailChangeLog(node.ChangeLog, oldNumChanges)

	now := m.now().UTC()
	diffs := m.buildDiffs(node, tail, now)

	if len(diffs) > 0 {
		if err := m.writeDiffs(ctx, courseID, node.ID, diffs); err != nil {
			return err
		}
	}

	updated := existing
	updated.CourseID = courseID
	updated.PostID = node.ID
	updated.PostNumber = node.PostNumber
	updated.Title = firstSubject(node)
	updated.IsAnnouncement = node.IsAnnouncement
	updated.NumChanges = len(node.ChangeLog)
	if !found {
		updated.LastMajorUpdate = types.EpochSentinel
		updated.SummaryLastUpdated = types.EpochSentinel
		if created, err := time.Parse(time.RFC3339, node.Created); err == nil {
			updated.Created = created.UTC()
		}
	} else {
		// Legacy non-UTC timestamps are normalized to UTC in the same update.
		updated.LastMajorUpdate = existing.LastMajorUpdate.UTC()
		updated.LastUpdated = existing.LastUpdated.UTC()
	}

	hasMajor := false
	for _, d := range diffs {
		if d.Type.IsMajor() {
			hasMajor = true
		}
	}
	if len(diffs) > 0 {
		updated.LastUpdated = now
	}
	if hasMajor {
		updated.LastMajorUpdate = now
		updated.NeedsNewSummary = updated.NeedsNewSummary || !found
	}

	if err := m.kv.Put(ctx, postsTable, courseID, node.ID, updated); err != nil {
		return fmt.Errorf("post: put %s#%s: %w", courseID, node.ID, err)
	}

	if !found && node.IsAnnouncement {
		m.maybeAnnounce(ctx, courseID, node, now)
	}
	return nil
}

func (m *Manager) loadPost(ctx context.Context, courseID, postID string) (types.Post, bool, error) {
	var p types.Post
	ok, err := m.kv.Get(ctx, postsTable, courseID, postID, &p)
	if err != nil {
		return types.Post{}, false, err
	}
	return p, ok, nil
}

func tailChangeLog(log []interfaces.ChangeLogEntry, oldLen int) []interfaces.ChangeLogEntry {
	if oldLen >= len(log) {
		return nil
	}
	return log[oldLen:]
}

// buildDiffs processes at most one change each of question/i_answer/
// s_answer from tail, plus one diff per discussion-kind change, so a single
// pass never emits duplicate diffs for the same bucket.
func (m *Manager) buildDiffs(node *interfaces.PostNode, tail []interfaces.ChangeLogEntry, now time.Time) []types.Diff {
	var diffs []types.Diff
	seq := 0
	var sawQuestion, sawIAnswer, sawSAnswer bool

	for _, change := range tail {
		switch {
		case !sawQuestion && isIn(change.Type, questionTypes):
			sawQuestion = true
			history := firstHistory(node.History)
			diffs = append(diffs, types.Diff{
				Timestamp: now, Seq: seq, Type: questionTypes[change.Type],
				Subject: history.Subject, Content: history.Content,
			})
			seq++
		case !sawIAnswer && isIn(change.Type, iAnswerTypes):
			sawIAnswer = true
			if child := findChildByType(node, "i_answer"); child != nil {
				history := firstHistory(child.History)
				diffs = append(diffs, types.Diff{
					Timestamp: now, Seq: seq, Type: iAnswerTypes[change.Type],
					Subject: history.Subject, Content: history.Content,
				})
				seq++
			}
		case !sawSAnswer && isIn(change.Type, sAnswerTypes):
			sawSAnswer = true
			if child := findChildByType(node, "s_answer"); child != nil {
				history := firstHistory(child.History)
				diffs = append(diffs, types.Diff{
					Timestamp: now, Seq: seq, Type: sAnswerTypes[change.Type],
					Subject: history.Subject, Content: history.Content,
				})
				seq++
			}
		case isIn(change.Type, discussionTypes):
			if child := findChildByID(node, change.ChangeID); child != nil {
				history := firstHistory(child.History)
				diffs = append(diffs, types.Diff{
					Timestamp: now, Seq: seq, Type: discussionTypes[change.Type],
					Content: history.Subject, // forum quirk: reply text lives in subject
				})
				seq++
			}
		}
	}
	return diffs
}

func (m *Manager) writeDiffs(ctx context.Context, courseID, postID string, diffs []types.Diff) error {
	partition := courseID + "#" + postID
	items := make([]interfaces.KVItem, 0, len(diffs))
	for i := range diffs {
		diffs[i].CourseID = courseID
		diffs[i].PostID = postID
		items = append(items, interfaces.KVItem{PartitionKey: partition, SortKey: diffs[i].SortKey(), Value: diffs[i]})
	}
	if err := m.kv.BatchPut(ctx, diffsTable, items); err != nil {
		return fmt.Errorf("post: write diffs for %s: %w", partition, err)
	}
	return nil
}

// maybeAnnounce fans out a new-post email when the post is flagged as an
// announcement and was created within the announce window. Failures are
// logged, not propagated: an announcement email is best-effort.
func (m *Manager) maybeAnnounce(ctx context.Context, courseID string, node *interfaces.PostNode, now time.Time) {
	created, err := time.Parse(time.RFC3339, node.Created)
	if err != nil {
		return
	}
	if now.Sub(created.UTC()) > m.announceWindow {
		return
	}
	history := firstHistory(node.History)
	textBody, htmlBody := RenderAnnouncement(AnnouncementPost{
		CourseID:    courseID,
		CourseName:  m.courseName(courseID),
		PostID:      node.ID,
		PostNumber:  node.PostNumber,
		Subject:     history.Subject,
		HTMLContent: history.Content,
	})
	if err := m.email.Send(ctx, m.recipientEmail, "New announcement: "+history.Subject, textBody, htmlBody); err != nil {
		common.PipelineError(ctx, "post_manager", "announce_fail", map[string]interface{}{
			"course_id": courseID, "post_id": node.ID, "error": err.Error(),
		})
	}
}

func isIn(t string, set map[string]types.DiffType) bool {
	_, ok := set[t]
	return ok
}

func firstHistory(history []interfaces.HistoryEntry) interfaces.HistoryEntry {
	if len(history) == 0 {
		return interfaces.HistoryEntry{}
	}
	return history[0]
}

func firstSubject(node *interfaces.PostNode) string {
	return firstHistory(node.History).Subject
}

func findChildByType(node *interfaces.PostNode, typ string) *interfaces.PostNode {
	for _, child := range node.Children {
		if child.Type == typ {
			return child
		}
		if found := findChildByType(child, typ); found != nil {
			return found
		}
	}
	return nil
}

func findChildByID(node *interfaces.PostNode, id string) *interfaces.PostNode {
	for _, child := range node.Children {
		if child.ID == id {
			return child
		}
		if found := findChildByID(child, id); found != nil {
			return found
		}
	}
	return nil
}
