// Package db provides GORM-based database operations for contextd.
package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/contextd/pkg/models"
)

// ErrThreadNotFound is returned when a thread id does not exist.
var ErrThreadNotFound = errors.New("thread not found")

// ThreadStore provides thread, message, summary, and archive operations.
type ThreadStore struct {
	db *gorm.DB
}

// NewThreadStore creates a new thread store.
func NewThreadStore(store *Store) *ThreadStore {
	return &ThreadStore{db: store.DB}
}

// CreateThread creates a thread with the given selected categories.
func (s *ThreadStore) CreateThread(ctx context.Context, userID int64, title string, categoryIDs []int64) (*models.Thread, error) {
	thread := &Thread{
		UserID: userID,
		Title:  nullString(title),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(thread).Error; err != nil {
			return err
		}
		for _, categoryID := range categoryIDs {
			link := &ThreadCategory{ThreadID: thread.ID, CategoryID: categoryID}
			if err := tx.Create(link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toModelThread(thread, categoryIDs), nil
}

// GetThread retrieves a thread with its selected category ids.
func (s *ThreadStore) GetThread(ctx context.Context, threadID int64) (*models.Thread, error) {
	var thread Thread
	err := s.db.WithContext(ctx).First(&thread, threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}

	categoryIDs, err := s.threadCategoryIDs(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return toModelThread(&thread, categoryIDs), nil
}

func (s *ThreadStore) threadCategoryIDs(ctx context.Context, threadID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&ThreadCategory{}).
		Where("thread_id = ?", threadID).
		Order("category_id").
		Pluck("category_id", &ids).Error
	return ids, err
}

// AppendMessage inserts a live message and adds its estimated token cost to
// the thread's running counter.
func (s *ThreadStore) AppendMessage(ctx context.Context, threadID int64, role, content, citations string, tokens int) (*models.Message, error) {
	msg := &Message{
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		Citations: nullString(citations),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Thread{}).
			Where("id = ?", threadID).
			UpdateColumn("running_tokens", gorm.Expr("running_tokens + ?", tokens)).Error
	})
	if err != nil {
		return nil, err
	}
	return toModelMessage(msg), nil
}

// GetMessagesForThread retrieves all live messages oldest-first.
func (s *ThreadStore) GetMessagesForThread(ctx context.Context, threadID int64) ([]*models.Message, error) {
	var rows []Message
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	messages := make([]*models.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, toModelMessage(&rows[i]))
	}
	return messages, nil
}

// MessagesNewestFirst retrieves up to limit live messages newest-first.
// A limit <= 0 returns all messages.
func (s *ThreadStore) MessagesNewestFirst(ctx context.Context, threadID int64, limit int) ([]*models.Message, error) {
	query := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	messages := make([]*models.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, toModelMessage(&rows[i]))
	}
	return messages, nil
}

// ArchiveMessages performs the compression pass's four-effect transaction:
// insert the summary row, insert one archived row per message (skipped when
// archive is false), delete the live rows, and mark the thread summarized.
// A failure anywhere rolls back every effect.
func (s *ThreadStore) ArchiveMessages(ctx context.Context, summary *models.ThreadSummary, msgs []*models.Message, archive bool) (*models.ThreadSummary, error) {
	row := &ThreadSummary{
		ThreadID:           summary.ThreadID,
		Summary:            summary.Summary,
		MessagesSummarized: summary.MessagesSummarized,
		TokensBefore:       summary.TokensBefore,
		TokensAfter:        summary.TokensAfter,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		ids := make([]int64, 0, len(msgs))
		now := time.Now()
		for _, msg := range msgs {
			ids = append(ids, msg.ID)
			if !archive {
				continue
			}
			archived := &ArchivedMessage{
				OriginalMessageID: msg.ID,
				ThreadID:          msg.ThreadID,
				SummaryID:         nullInt64Ptr(&row.ID),
				Role:              msg.Role,
				Content:           msg.Content,
				Citations:         nullString(msg.Citations),
				CreatedAt:         msg.CreatedAt,
				CreatedAtEpoch:    msg.CreatedAtEpoch,
				ArchivedAt:        now.Format(time.RFC3339),
				ArchivedAtEpoch:   now.UnixMilli(),
			}
			if err := tx.Create(archived).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("id IN ?", ids).Delete(&Message{}).Error; err != nil {
			return err
		}

		return tx.Model(&Thread{}).
			Where("id = ?", summary.ThreadID).
			UpdateColumn("summarized", true).Error
	})
	if err != nil {
		return nil, err
	}
	return toModelSummary(row), nil
}

// LatestSummary retrieves the most recent summary for a thread, or nil when
// the thread has never been summarized.
func (s *ThreadStore) LatestSummary(ctx context.Context, threadID int64) (*models.ThreadSummary, error) {
	var row ThreadSummary
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at_epoch DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelSummary(&row), nil
}

// GetSummaries retrieves all summaries for a thread, newest first.
func (s *ThreadStore) GetSummaries(ctx context.Context, threadID int64) ([]*models.ThreadSummary, error) {
	var rows []ThreadSummary
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at_epoch DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.ThreadSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, toModelSummary(&rows[i]))
	}
	return summaries, nil
}

// GetArchivedMessages retrieves archived messages for a thread in original
// chronological order.
func (s *ThreadStore) GetArchivedMessages(ctx context.Context, threadID int64) ([]*models.ArchivedMessage, error) {
	var rows []ArchivedMessage
	err := s.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("original_message_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	archived := make([]*models.ArchivedMessage, 0, len(rows))
	for i := range rows {
		archived = append(archived, toModelArchived(&rows[i]))
	}
	return archived, nil
}
