package ingest

import (
	"context"
	"time"

	"github.com/dfroberg/coursepilot/internal/blob"
	"github.com/dfroberg/coursepilot/internal/common"
	"github.com/dfroberg/coursepilot/internal/post"
	"github.com/dfroberg/coursepilot/internal/tracing"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// PostProcessor is the C4 collaborator the scraper drives after C2/C3 for
// incremental updates. It is the subset of *post.Manager the scraper needs.
type PostProcessor interface {
	ProcessPost(ctx context.Context, courseID string, node *interfaces.PostNode) error
}

var _ PostProcessor = (*post.Manager)(nil)

// Scraper drives blob extraction and the chunk manager over a forum, in
// full-course and incremental-queue-drain modes.
type Scraper struct {
	forum     interfaces.ForumClient
	extractor *blob.Extractor
	chunks    *ChunkManager
	posts     PostProcessor
	queue     interfaces.UpdateQueue
	ignored   map[string]bool
	pause     time.Duration
}

// NewScraper builds a Scraper. ignoredCourses lists course ids to skip
// entirely in both modes.
func NewScraper(
	forum interfaces.ForumClient, chunks *ChunkManager, posts PostProcessor, queue interfaces.UpdateQueue,
	ignoredCourses []string, pause time.Duration,
) *Scraper {
	ignored := make(map[string]bool, len(ignoredCourses))
	for _, id := range ignoredCourses {
		ignored[id] = true
	}
	return &Scraper{
		forum: forum, extractor: blob.NewExtractor(forum), chunks: chunks, posts: posts,
		queue: queue, ignored: ignored, pause: pause,
	}
}

// FullScrape iterates every post of courseID, running extractor -> chunk
// manager only; it never touches the Post/Diff store. Intended for initial
// index build.
func (s *Scraper) FullScrape(ctx context.Context, courseID string) error {
	ctx, span := tracing.StartSpan(ctx, "scraper", "full_scrape")
	defer span.End()

	if s.ignored[courseID] {
		common.PipelineInfo(ctx, "scraper", "skip_ignored_course", map[string]interface{}{"course_id": courseID})
		return nil
	}

	postIDs, err := s.forum.ListPostIDs(ctx, courseID)
	if err != nil {
		return err
	}

	for _, postID := range postIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		node, err := s.forum.FetchPost(ctx, courseID, postID)
		if err != nil {
			common.PipelineWarn(ctx, "scraper", "fetch_post_failed", map[string]interface{}{
				"course_id": courseID, "post_id": postID, "error": err.Error(),
			})
			continue
		}
		blobs := s.extractor.Extract(ctx, node)
		if err := s.chunks.Process(ctx, courseID, blobs); err != nil {
			common.PipelineWarn(ctx, "scraper", "chunk_process_failed", map[string]interface{}{
				"course_id": courseID, "post_id": postID, "error": err.Error(),
			})
			continue
		}
		sleepPoliteInterval(ctx, s.pause)
	}
	return s.chunks.Finalize(ctx)
}

// IncrementalScrape drains the update queue in batches of 10 with a short
// poll, processing each (course, post) message through extractor -> chunk
// manager -> post manager, deleting the message only on success.
func (s *Scraper) IncrementalScrape(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "scraper", "incremental_scrape")
	defer span.End()

	for {
		messages, err := s.queue.Receive(ctx, 10, 1)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			break
		}

		byCourse := map[string][]interfaces.QueueMessage{}
		for _, msg := range messages {
			byCourse[msg.CourseID] = append(byCourse[msg.CourseID], msg)
		}

		for courseID, msgs := range byCourse {
			if s.ignored[courseID] {
				for _, msg := range msgs {
					_ = s.queue.Delete(ctx, msg.Handle)
				}
				continue
			}
			for _, msg := range msgs {
				s.processIncrementalMessage(ctx, courseID, msg)
			}
		}
	}
	return s.chunks.Finalize(ctx)
}

// processIncrementalMessage runs the per-message pipeline. A failure at any
// stage is logged and the message is left undeleted so it retries.
func (s *Scraper) processIncrementalMessage(ctx context.Context, courseID string, msg interfaces.QueueMessage) {
	node, err := s.forum.FetchPost(ctx, courseID, msg.PostID)
	if err != nil {
		common.PipelineWarn(ctx, "scraper", "fetch_post_failed", map[string]interface{}{
			"course_id": courseID, "post_id": msg.PostID, "error": err.Error(),
		})
		return
	}

	blobs := s.extractor.Extract(ctx, node)
	if err := s.chunks.Process(ctx, courseID, blobs); err != nil {
		common.PipelineWarn(ctx, "scraper", "chunk_process_failed", map[string]interface{}{
			"course_id": courseID, "post_id": msg.PostID, "error": err.Error(),
		})
		return
	}

	if err := s.posts.ProcessPost(ctx, courseID, node); err != nil {
		common.PipelineWarn(ctx, "scraper", "post_process_failed", map[string]interface{}{
			"course_id": courseID, "post_id": msg.PostID, "error": err.Error(),
		})
		return
	}

	if err := s.queue.Delete(ctx, msg.Handle); err != nil {
		common.PipelineWarn(ctx, "scraper", "queue_delete_failed", map[string]interface{}{
			"course_id": courseID, "post_id": msg.PostID, "error": err.Error(),
		})
	}
}

func sleepPoliteInterval(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
